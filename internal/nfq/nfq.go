// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package nfq binds a netfilter NFQUEUE queue and runs the
// receive/verdict loop for it.
//
// A Session answers every delivered packet exactly once, in delivery
// order, before it receives the next one.
package nfq

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"grimm.is/hostblock/internal/errors"
	"grimm.is/hostblock/internal/logging"
	"grimm.is/hostblock/internal/verdict"
)

// Backend names accepted by Options.Backend.
const (
	BackendNetlink = "netlink"
	BackendNFQueue = "nfqueue"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultMaxLen    = 1024
	DefaultCopyRange = 0xffff
)

// Frame is one packet delivered by the kernel. Payload starts at the
// network header and is only valid until the verdict is sent.
type Frame struct {
	ID         uint32
	HwProtocol uint16
	Hook       uint8
	Mark       uint32
	InDev      uint32
	OutDev     uint32
	PhysInDev  uint32
	PhysOutDev uint32
	HwAddr     net.HardwareAddr
	Payload    []byte
}

// Handler decides the verdict for a frame.
type Handler interface {
	Handle(f Frame) verdict.Verdict
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(f Frame) verdict.Verdict

// Handle calls fn(f).
func (fn HandlerFunc) Handle(f Frame) verdict.Verdict { return fn(f) }

// Recorder receives loop events that never reach a Handler.
type Recorder interface {
	RecordLoss()
	RecordVerdictError()
}

type nopRecorder struct{}

func (nopRecorder) RecordLoss()         {}
func (nopRecorder) RecordVerdictError() {}

// Options configures Open.
type Options struct {
	Queue      uint16
	Backend    string
	MaxLen     uint32
	CopyRange  uint32
	FailOpen   bool
	ReadBuffer int

	Logger   *logging.Logger
	Recorder Recorder
}

func (o *Options) applyDefaults() {
	if o.Backend == "" {
		o.Backend = BackendNetlink
	}
	if o.MaxLen == 0 {
		o.MaxLen = DefaultMaxLen
	}
	if o.CopyRange == 0 || o.CopyRange > DefaultCopyRange {
		o.CopyRange = DefaultCopyRange
	}
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
}

// Step identifies a stage of the queue setup handshake.
type Step int

const (
	StepHandle Step = iota
	StepUnbind
	StepBind
	StepCreateQueue
	StepCopyMode
	StepFlags
	StepRegister
)

func (s Step) String() string {
	switch s {
	case StepHandle:
		return "open handle"
	case StepUnbind:
		return "unbind family"
	case StepBind:
		return "bind family"
	case StepCreateQueue:
		return "create queue"
	case StepCopyMode:
		return "set copy mode"
	case StepFlags:
		return "set flags"
	case StepRegister:
		return "register"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// OpenError reports which setup step failed.
type OpenError struct {
	Step Step
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("nfqueue setup failed at %s: %v", e.Step, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Kind returns errors.KindSetup.
func (e *OpenError) Kind() errors.Kind { return errors.KindSetup }

func openError(step Step, err error) error {
	return &OpenError{Step: step, Err: err}
}

// ReceiveError is returned by Run when the kernel connection fails for a
// reason other than queue overrun.
type ReceiveError struct {
	Err error
}

func (e *ReceiveError) Error() string {
	return fmt.Sprintf("nfqueue receive failed: %v", e.Err)
}

func (e *ReceiveError) Unwrap() error { return e.Err }

// Kind returns errors.KindFatal.
func (e *ReceiveError) Kind() errors.Kind { return errors.KindFatal }

// ErrInvalidState is returned by Run on a session that is not open.
var ErrInvalidState = errors.New(errors.KindInvalidState, "session is not open")

// State is the lifecycle position of a Session.
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of loop counters.
type Stats struct {
	Received      uint64 `json:"received"`
	Verdicts      uint64 `json:"verdicts"`
	LossEvents    uint64 `json:"loss_events"`
	VerdictErrors uint64 `json:"verdict_errors"`
}

// conn is the backend contract. Receive blocks until at least one frame
// or an error is available; Interrupt makes a blocked or future Receive
// return promptly. A KindLoss error from Receive is recoverable.
type conn interface {
	Receive() ([]Frame, error)
	Verdict(id uint32, v verdict.Verdict) error
	Interrupt() error
	Close() error
}

// Session is a bound queue.
type Session struct {
	id    string
	queue uint16
	conn  conn
	log   *logging.Logger
	rec   Recorder

	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error

	received      atomic.Uint64
	verdicts      atomic.Uint64
	lossEvents    atomic.Uint64
	verdictErrors atomic.Uint64
}

// Open performs the setup handshake for the configured backend. On
// failure it returns an *OpenError and leaves nothing bound.
func Open(ctx context.Context, opts Options) (*Session, error) {
	opts.applyDefaults()

	var (
		c   conn
		err error
	)
	switch opts.Backend {
	case BackendNetlink:
		c, err = openNetlink(opts, dialNetlink)
	case BackendNFQueue:
		c, err = openLibrary(ctx, opts)
	default:
		return nil, openError(StepHandle, errors.Errorf(errors.KindValidation, "unknown backend %q", opts.Backend))
	}
	if err != nil {
		return nil, err
	}

	s := newSession(c, opts)
	s.log.Info("queue bound", "backend", opts.Backend, "max_len", opts.MaxLen, "copy_range", opts.CopyRange, "fail_open", opts.FailOpen)
	return s, nil
}

func newSession(c conn, opts Options) *Session {
	opts.applyDefaults()
	id := uuid.NewString()
	s := &Session{
		id:    id,
		queue: opts.Queue,
		conn:  c,
		log:   opts.Logger.WithComponent("nfq").With("session", id, "queue", opts.Queue),
		rec:   opts.Recorder,
	}
	s.state.Store(int32(StateOpen))
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Queue returns the bound queue number.
func (s *Session) Queue() uint16 { return s.queue }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Stats returns a snapshot of the loop counters.
func (s *Session) Stats() Stats {
	return Stats{
		Received:      s.received.Load(),
		Verdicts:      s.verdicts.Load(),
		LossEvents:    s.lossEvents.Load(),
		VerdictErrors: s.verdictErrors.Load(),
	}
}

// Run receives frames and answers each with h's verdict until ctx is
// cancelled or the connection fails. The session is closed when Run
// returns. Cancellation returns nil; connection failure returns a
// *ReceiveError.
func (s *Session) Run(ctx context.Context, h Handler) error {
	if !s.state.CompareAndSwap(int32(StateOpen), int32(StateRunning)) {
		return errors.Attr(errors.Wrap(ErrInvalidState, errors.KindInvalidState, "cannot run"), "state", s.State().String())
	}
	defer s.Close()

	stop := context.AfterFunc(ctx, func() {
		if err := s.conn.Interrupt(); err != nil {
			s.log.WithError(err).Warn("failed to interrupt receive")
		}
	})
	defer stop()

	s.log.Info("receive loop started")
	for {
		if ctx.Err() != nil {
			s.log.Info("receive loop stopped", "reason", context.Cause(ctx))
			return nil
		}

		frames, err := s.conn.Receive()
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("receive loop stopped", "reason", context.Cause(ctx))
				return nil
			}
			if s.State() == StateClosed {
				s.log.Info("receive loop stopped", "reason", "session closed")
				return nil
			}
			if errors.HasKind(err, errors.KindLoss) {
				s.lossEvents.Add(1)
				s.rec.RecordLoss()
				s.log.WithError(err).Warn("packets lost, queue overrun")
				continue
			}
			s.log.WithError(err).Error("receive failed")
			return &ReceiveError{Err: err}
		}

		for _, f := range frames {
			s.received.Add(1)
			v := h.Handle(f)
			if err := s.conn.Verdict(f.ID, v); err != nil {
				s.verdictErrors.Add(1)
				s.rec.RecordVerdictError()
				s.log.WithError(err).Warn("failed to send verdict", "id", f.ID, "verdict", v.String())
				continue
			}
			s.verdicts.Add(1)
		}
	}
}

// Close unbinds the queue and releases the kernel connection. Only the
// first call has an effect; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.closeErr = s.conn.Close()
		if s.closeErr != nil {
			s.log.WithError(s.closeErr).Warn("queue close failed")
			return
		}
		st := s.Stats()
		s.log.Info("queue closed", "received", st.Received, "verdicts", st.Verdicts, "loss_events", st.LossEvents, "verdict_errors", st.VerdictErrors)
	})
	return s.closeErr
}
