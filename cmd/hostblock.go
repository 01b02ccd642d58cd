// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/hostblock/internal/blocker"
	"grimm.is/hostblock/internal/config"
	"grimm.is/hostblock/internal/errors"
	"grimm.is/hostblock/internal/filter"
	"grimm.is/hostblock/internal/logging"
	"grimm.is/hostblock/internal/matcher"
	"grimm.is/hostblock/internal/metrics"
	"grimm.is/hostblock/internal/nfq"
	"grimm.is/hostblock/internal/nftrule"
	"grimm.is/hostblock/internal/verdict"
)

// Version is set at build time with -ldflags "-X grimm.is/hostblock/cmd.Version=...".
var Version = "dev"

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

type flags struct {
	configPath    string
	queue         uint
	backend       string
	onTruncated   string
	failOpen      bool
	installRule   bool
	metricsListen string
	logLevel      string
	logJSON       bool
	version       bool
	check         bool
}

func newFlagSet(stderr io.Writer) (*flag.FlagSet, *flags) {
	f := &flags{}
	fs := flag.NewFlagSet("hostblock", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "HCL configuration file")
	fs.UintVar(&f.queue, "queue", 0, "NFQUEUE queue number")
	fs.StringVar(&f.backend, "backend", config.BackendNetlink, "queue backend: netlink or nfqueue")
	fs.StringVar(&f.onTruncated, "on-truncated", "forward", "verdict for truncated packets: forward or discard")
	fs.BoolVar(&f.failOpen, "fail-open", false, "let the kernel accept packets when the queue is full")
	fs.BoolVar(&f.installRule, "install-rule", false, "install an nftables rule steering TCP/80 into the queue")
	fs.StringVar(&f.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.BoolVar(&f.logJSON, "log-json", false, "log in JSON")
	fs.BoolVar(&f.version, "version", false, "print version and exit")
	fs.BoolVar(&f.check, "check-config", false, "validate the configuration and exit; <host> is optional")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: hostblock [flags] <host>\n\nDiscards HTTP requests for <host> delivered through NFQUEUE.\n\nflags:\n")
		fs.PrintDefaults()
	}
	return fs, f
}

// applyFlags overrides file configuration with the flags that were set
// explicitly on the command line.
func applyFlags(cfg *config.Config, fs *flag.FlagSet, f *flags) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "queue":
			cfg.Queue.Number = int(f.queue)
		case "backend":
			cfg.Queue.Backend = f.backend
		case "on-truncated":
			cfg.Filter.OnTruncated = f.onTruncated
		case "fail-open":
			cfg.Queue.FailOpen = f.failOpen
		case "install-rule":
			cfg.Rule.Enabled = f.installRule
		case "metrics-listen":
			cfg.Metrics.Enabled = f.metricsListen != ""
			if f.metricsListen != "" {
				cfg.Metrics.Listen = f.metricsListen
			}
		case "log-level":
			cfg.Log.Level = f.logLevel
		case "log-json":
			cfg.Log.JSON = f.logJSON
		}
	})
}

// Run is the hostblock entry point. It returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, stdout, stderr, nil)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, open blocker.OpenFunc) int {
	fs, f := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitOK
		}
		return ExitUsage
	}

	if f.version {
		fmt.Fprintf(stdout, "hostblock %s\n", Version)
		return ExitOK
	}

	if f.check && fs.NArg() == 0 {
		cfg, err := loadConfig(f.configPath)
		if err != nil {
			fmt.Fprintf(stderr, "hostblock: %v\n", err)
			return ExitUsage
		}
		applyFlags(cfg, fs, f)
		return checkConfig(cfg, stdout, stderr)
	}

	if fs.NArg() != 1 {
		fmt.Fprintf(stderr, "hostblock: expected exactly one host, got %d arguments\n", fs.NArg())
		fs.Usage()
		return ExitUsage
	}
	host := fs.Arg(0)

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "hostblock: %v\n", err)
		return ExitUsage
	}
	applyFlags(cfg, fs, f)
	cfg.Filter.Hosts = append([]string{host}, cfg.Filter.Hosts...)
	if f.check {
		return checkConfig(cfg, stdout, stderr)
	}
	if err := cfg.Validate().Err(); err != nil {
		fmt.Fprintf(stderr, "hostblock: %v\n", err)
		return ExitUsage
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logger := logging.New(logging.Config{
		Level:      level,
		Output:     stderr,
		JSON:       cfg.Log.JSON,
		Timestamps: true,
	})
	logging.SetDefault(logger)

	svc, exporter, err := build(cfg, logger, open)
	if err != nil {
		logger.WithError(err).Error("setup failed", "kind", errors.GetKind(err).String())
		if errors.GetKind(err) == errors.KindValidation {
			return ExitUsage
		}
		return ExitFailure
	}

	if exporter != nil {
		if err := exporter.Start(ctx); err != nil {
			logger.WithError(err).Error("setup failed")
			return ExitFailure
		}
	}

	logger.Info("hostblock starting", "version", Version, "hosts", cfg.Filter.Hosts, "queue", cfg.Queue.Number, "backend", cfg.Queue.Backend)
	return exitCode(logger, svc.Run(ctx))
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFile(path)
}

// build assembles the service from a validated configuration.
func build(cfg *config.Config, logger *logging.Logger, open blocker.OpenFunc) (*blocker.Service, *metrics.Exporter, error) {
	rules, err := matcher.NewRuleSet(cfg.Filter.Hosts...)
	if err != nil {
		return nil, nil, err
	}
	policy, err := verdict.ParsePolicy(cfg.Filter.OnTruncated)
	if err != nil {
		return nil, nil, err
	}
	flt := filter.New(filter.Options{
		Rules:       rules,
		Ports:       cfg.Ports(),
		OnTruncated: policy,
	})

	collector := metrics.NewCollector()

	opts := blocker.Options{
		Filter: flt,
		Queue: nfq.Options{
			Queue:      uint16(cfg.Queue.Number),
			Backend:    cfg.Queue.Backend,
			MaxLen:     uint32(cfg.Queue.MaxLen),
			CopyRange:  uint32(cfg.Queue.CopyRange),
			FailOpen:   cfg.Queue.FailOpen,
			ReadBuffer: cfg.Queue.ReadBuffer,
		},
		Collector: collector,
		Logger:    logger,
		Open:      open,
	}

	if cfg.Rule.Enabled {
		inst, err := nftrule.New(nftrule.Options{
			Table:  cfg.Rule.Table,
			Hook:   cfg.Rule.Hook,
			Queue:  uint16(cfg.Queue.Number),
			Ports:  flt.Ports(),
			Logger: logger,
		})
		if err != nil {
			return nil, nil, err
		}
		opts.Rule = inst
	}

	var exporter *metrics.Exporter
	if cfg.Metrics.Enabled {
		if cfg.Rule.Enabled {
			if err := collector.WatchRules(cfg.Rule.Table, logger); err != nil {
				return nil, nil, errors.Wrap(err, errors.KindInternal, "failed to register rule counters")
			}
		}
		exporter = metrics.NewExporter(collector, metrics.ExportConfig{
			Listen: cfg.Metrics.Listen,
			Path:   cfg.Metrics.Path,
		}, logger)
	}

	svc, err := blocker.New(opts)
	if err != nil {
		return nil, nil, err
	}
	return svc, exporter, nil
}

func exitCode(logger *logging.Logger, err error) int {
	if err == nil {
		logger.Info("hostblock stopped")
		return ExitOK
	}

	var oerr *nfq.OpenError
	var rerr *nfq.ReceiveError
	switch {
	case errors.As(err, &oerr):
		logger.WithError(oerr.Err).Error("queue setup failed", "step", oerr.Step.String())
	case errors.As(err, &rerr):
		logger.WithError(rerr.Err).Error("queue receive failed")
	default:
		logger.WithError(err).Error("hostblock failed", "kind", errors.GetKind(err).String())
	}
	return ExitFailure
}
