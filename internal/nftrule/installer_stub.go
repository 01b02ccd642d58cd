// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package nftrule

import "grimm.is/hostblock/internal/errors"

// Installer is a stub for non-Linux systems.
type Installer struct{}

// New returns an error on non-Linux systems.
func New(opts Options) (*Installer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return nil, errors.New(errors.KindUnsupported, "nftables is only supported on Linux")
}

// Install is a no-op on non-Linux.
func (i *Installer) Install() error { return nil }

// Remove is a no-op on non-Linux.
func (i *Installer) Remove() error { return nil }
