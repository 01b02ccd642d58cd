// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nfq

import (
	"context"
	"sync"

	"grimm.is/hostblock/internal/errors"
	"grimm.is/hostblock/internal/verdict"
)

// errInterrupted is returned by libConn.Receive after Interrupt.
var errInterrupted = errors.New(errors.KindInternal, "receive interrupted")

// libHandle is the part of a go-nfqueue handle the adapter drives. The
// Linux build wraps *nfqueue.Nfqueue.
type libHandle interface {
	register(ctx context.Context, hook func(Frame) int, onErr func(error) int) error
	setVerdict(id uint32, code int) error
	close() error
}

// libConn turns go-nfqueue's callback API into the pull-style conn. The
// library goroutine hands one frame over and waits until Verdict was
// called for it, so frames are answered in delivery order.
type libConn struct {
	h      libHandle
	cancel context.CancelFunc

	frames chan Frame
	errs   chan error
	acks   chan struct{}

	done     chan struct{}
	doneOnce sync.Once
}

func newLibConn(ctx context.Context, h libHandle) (*libConn, error) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &libConn{
		h:      h,
		cancel: cancel,
		frames: make(chan Frame),
		errs:   make(chan error),
		acks:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if err := h.register(ctx, c.hook, c.onError); err != nil {
		cancel()
		return nil, err
	}
	return c, nil
}

func (c *libConn) hook(f Frame) int {
	select {
	case c.frames <- f:
	case <-c.done:
		return 1
	}
	select {
	case <-c.acks:
		return 0
	case <-c.done:
		return 1
	}
}

// onError keeps the library loop alive on loss and stops it otherwise.
func (c *libConn) onError(err error) int {
	stop := 1
	if errors.HasKind(err, errors.KindLoss) {
		stop = 0
	}
	select {
	case c.errs <- err:
	case <-c.done:
		return 1
	}
	return stop
}

func (c *libConn) Receive() ([]Frame, error) {
	select {
	case f := <-c.frames:
		return []Frame{f}, nil
	case err := <-c.errs:
		return nil, err
	case <-c.done:
		return nil, errInterrupted
	}
}

func (c *libConn) Verdict(id uint32, v verdict.Verdict) error {
	err := c.h.setVerdict(id, int(v.NetfilterCode()))
	select {
	case c.acks <- struct{}{}:
	default:
	}
	return err
}

func (c *libConn) Interrupt() error {
	c.doneOnce.Do(func() { close(c.done) })
	return nil
}

func (c *libConn) Close() error {
	_ = c.Interrupt()
	c.cancel()
	return c.h.close()
}
