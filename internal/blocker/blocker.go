// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package blocker ties the packet filter to an NFQUEUE session.
package blocker

import (
	"context"
	"fmt"

	"grimm.is/hostblock/internal/errors"
	"grimm.is/hostblock/internal/filter"
	"grimm.is/hostblock/internal/logging"
	"grimm.is/hostblock/internal/metrics"
	"grimm.is/hostblock/internal/netutil"
	"grimm.is/hostblock/internal/nfq"
	"grimm.is/hostblock/internal/verdict"
)

// RuleInstaller manages the traffic steering rule.
type RuleInstaller interface {
	Install() error
	Remove() error
}

// Session is the part of *nfq.Session the service drives.
type Session interface {
	ID() string
	Run(ctx context.Context, h nfq.Handler) error
	Close() error
	Stats() nfq.Stats
}

// OpenFunc opens a queue session.
type OpenFunc func(ctx context.Context, opts nfq.Options) (Session, error)

func openQueue(ctx context.Context, opts nfq.Options) (Session, error) {
	s, err := nfq.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Options configures a Service.
type Options struct {
	Filter *filter.Filter
	Queue  nfq.Options

	// Optional.
	Rule      RuleInstaller
	Collector *metrics.Collector
	Resolver  *netutil.IfaceResolver
	Logger    *logging.Logger
	Open      OpenFunc
}

// Service evaluates queued packets and answers them.
type Service struct {
	filter    *filter.Filter
	queue     nfq.Options
	rule      RuleInstaller
	collector *metrics.Collector
	resolver  *netutil.IfaceResolver
	logger    *logging.Logger
	open      OpenFunc
}

// New validates opts and fills in defaults.
func New(opts Options) (*Service, error) {
	if opts.Filter == nil {
		return nil, errors.New(errors.KindInternal, "blocker requires a filter")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Collector == nil {
		opts.Collector = metrics.NewCollector()
	}
	if opts.Resolver == nil {
		opts.Resolver = netutil.NewIfaceResolver(nil)
	}
	if opts.Open == nil {
		opts.Open = openQueue
	}

	q := opts.Queue
	q.Logger = opts.Logger
	q.Recorder = opts.Collector

	return &Service{
		filter:    opts.Filter,
		queue:     q,
		rule:      opts.Rule,
		collector: opts.Collector,
		resolver:  opts.Resolver,
		logger:    opts.Logger.WithComponent("blocker"),
		open:      opts.Open,
	}, nil
}

// Collector returns the metrics collector the service records into.
func (s *Service) Collector() *metrics.Collector {
	return s.collector
}

// Handle implements nfq.Handler.
func (s *Service) Handle(f nfq.Frame) verdict.Verdict {
	res := s.filter.Evaluate(f.Payload)
	s.collector.RecordFrame(res.Verdict, res.Reason.String())

	if s.logger.Enabled(context.Background(), logging.LevelDebug) {
		s.logger.Debug("packet",
			"id", f.ID,
			"hw_protocol", fmt.Sprintf("0x%04x", f.HwProtocol),
			"hook", f.Hook,
			"hw_addr", netutil.FormatMAC(f.HwAddr),
			"mark", f.Mark,
			"indev", s.resolver.Name(f.InDev),
			"outdev", s.resolver.Name(f.OutDev),
			"physindev", s.resolver.Name(f.PhysInDev),
			"physoutdev", s.resolver.Name(f.PhysOutDev),
			"payload_len", len(f.Payload),
			"verdict", res.Verdict.String(),
			"reason", res.Reason.String(),
		)
		if res.Err != nil {
			s.logger.WithError(res.Err).Debug("packet not inspected", "id", f.ID, "attrs", errors.GetAttributes(res.Err))
		}
	}

	if res.Verdict == verdict.Discard {
		if res.Reason == filter.ReasonMatched {
			s.logger.Warn("blocked request", "host", res.Host, "dst_port", res.DstPort, "id", f.ID)
		} else {
			s.logger.Warn("discarded packet", "reason", res.Reason.String(), "id", f.ID)
		}
	}
	return res.Verdict
}

// Run opens the queue, installs the steering rule when configured, and
// processes packets until ctx is cancelled or the queue fails. The rule
// is removed and the queue closed on every return path.
func (s *Service) Run(ctx context.Context) (err error) {
	sess, err := s.open(ctx, s.queue)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	log := s.logger.With("session", sess.ID())

	if s.rule != nil {
		if err := s.rule.Install(); err != nil {
			return err
		}
		defer func() {
			if rerr := s.rule.Remove(); rerr != nil {
				log.WithError(rerr).Warn("failed to remove steering rule")
			}
		}()
	}

	log.Info("blocking", "queue", s.queue.Queue, "ports", s.filter.Ports())
	err = sess.Run(ctx, s)

	st := s.collector.Stats()
	log.Info("stopped",
		"received", st.Received,
		"forwarded", st.Forwarded,
		"discarded", st.Discarded,
		"loss_events", st.LossEvents,
		"verdict_errors", st.VerdictErrors,
	)
	return err
}
