// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"fmt"
	"io"

	"grimm.is/hostblock/internal/config"
)

// checkConfig validates cfg and prints one line per problem, or a summary
// of the effective settings when there are none.
func checkConfig(cfg *config.Config, stdout, stderr io.Writer) int {
	errs := cfg.Validate()
	if errs.HasErrors() {
		fmt.Fprintf(stderr, "configuration has %d error(s):\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(stderr, "  - %s\n", e.Error())
		}
		return ExitUsage
	}

	fmt.Fprintln(stdout, "configuration ok")
	fmt.Fprintf(stdout, "  queue:   %d (%s, max_len %d, copy_range %d, fail_open %t)\n",
		cfg.Queue.Number, cfg.Queue.Backend, cfg.Queue.MaxLen, cfg.Queue.CopyRange, cfg.Queue.FailOpen)
	fmt.Fprintf(stdout, "  hosts:   %v\n", cfg.Filter.Hosts)
	fmt.Fprintf(stdout, "  ports:   %v (truncated: %s)\n", cfg.Filter.Ports, cfg.Filter.OnTruncated)
	if cfg.Rule.Enabled {
		fmt.Fprintf(stdout, "  rule:    table ip %s, hook %s\n", cfg.Rule.Table, cfg.Rule.Hook)
	} else {
		fmt.Fprintln(stdout, "  rule:    not managed")
	}
	if cfg.Metrics.Enabled {
		fmt.Fprintf(stdout, "  metrics: http://%s%s\n", cfg.Metrics.Listen, cfg.Metrics.Path)
	} else {
		fmt.Fprintln(stdout, "  metrics: disabled")
	}
	return ExitOK
}
