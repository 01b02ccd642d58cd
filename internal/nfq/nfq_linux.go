// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package nfq

import (
	"context"
	stderrors "errors"

	nfqueue "github.com/florianl/go-nfqueue/v2"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/hostblock/internal/errors"
	"grimm.is/hostblock/internal/logging"
)

func dialNetlink() (nlConn, error) {
	c, err := netlink.Dial(unix.NETLINK_NETFILTER, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// isLoss reports the kernel dropping messages because the socket
// receive buffer was full.
func isLoss(err error) bool {
	return stderrors.Is(err, unix.ENOBUFS)
}

// nfqueueHandle adapts *nfqueue.Nfqueue to libHandle.
type nfqueueHandle struct {
	q   *nfqueue.Nfqueue
	log *logging.Logger
}

// deliver hands a to hook. A message without a packet id cannot be
// answered and is logged and skipped.
func (h nfqueueHandle) deliver(a nfqueue.Attribute, hook func(Frame) int) int {
	if a.PacketID == nil {
		payload := 0
		if a.Payload != nil {
			payload = len(*a.Payload)
		}
		h.log.Warn("dropping queue message without packet id", "len", payload)
		return 0
	}
	return hook(frameFromAttribute(a))
}

func (h nfqueueHandle) register(ctx context.Context, hook func(Frame) int, onErr func(error) int) error {
	fn := func(a nfqueue.Attribute) int {
		return h.deliver(a, hook)
	}
	errfn := func(err error) int {
		if isLoss(err) {
			err = errors.Wrap(err, errors.KindLoss, "nfqueue receive buffer overrun")
		}
		return onErr(err)
	}
	return h.q.RegisterWithErrorFunc(ctx, fn, errfn)
}

func (h nfqueueHandle) setVerdict(id uint32, code int) error {
	return h.q.SetVerdict(id, code)
}

func (h nfqueueHandle) close() error {
	return h.q.Close()
}

func frameFromAttribute(a nfqueue.Attribute) Frame {
	f := Frame{ID: *a.PacketID}
	if a.HwProtocol != nil {
		f.HwProtocol = *a.HwProtocol
	}
	if a.Hook != nil {
		f.Hook = *a.Hook
	}
	if a.Mark != nil {
		f.Mark = *a.Mark
	}
	if a.InDev != nil {
		f.InDev = *a.InDev
	}
	if a.OutDev != nil {
		f.OutDev = *a.OutDev
	}
	if a.PhysInDev != nil {
		f.PhysInDev = *a.PhysInDev
	}
	if a.PhysOutDev != nil {
		f.PhysOutDev = *a.PhysOutDev
	}
	if a.HwAddr != nil {
		f.HwAddr = append(f.HwAddr, (*a.HwAddr)...)
	}
	if a.Payload != nil {
		f.Payload = *a.Payload
	}
	return f
}

// openLibrary opens the queue through go-nfqueue. The library folds
// unbind, bind, create and copy mode into Register, so only two steps
// can be told apart.
func openLibrary(ctx context.Context, opts Options) (conn, error) {
	cfg := nfqueue.Config{
		NfQueue:      opts.Queue,
		MaxPacketLen: opts.CopyRange,
		MaxQueueLen:  opts.MaxLen,
		Copymode:     nfqueue.NfQnlCopyPacket,
	}
	if opts.FailOpen {
		cfg.Flags = nfqueue.NfQaCfgFlagFailOpen
	}

	q, err := nfqueue.Open(&cfg)
	if err != nil {
		return nil, openError(StepHandle, err)
	}
	if opts.ReadBuffer > 0 {
		if err := q.Con.SetReadBuffer(opts.ReadBuffer); err != nil {
			_ = q.Close()
			return nil, openError(StepHandle, err)
		}
	}

	c, err := newLibConn(ctx, nfqueueHandle{
		q:   q,
		log: opts.Logger.WithComponent("nfq").With("backend", BackendNFQueue, "queue", opts.Queue),
	})
	if err != nil {
		_ = q.Close()
		return nil, openError(StepRegister, err)
	}
	return c, nil
}
