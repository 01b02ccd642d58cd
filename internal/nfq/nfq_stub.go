// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package nfq

import (
	"context"
	stderrors "errors"
	"syscall"

	"grimm.is/hostblock/internal/errors"
)

var errNotLinux = errors.New(errors.KindUnsupported, "nfqueue is only supported on Linux")

func dialNetlink() (nlConn, error) {
	return nil, errNotLinux
}

func isLoss(err error) bool {
	return stderrors.Is(err, syscall.ENOBUFS)
}

func openLibrary(ctx context.Context, opts Options) (conn, error) {
	return nil, openError(StepHandle, errNotLinux)
}
