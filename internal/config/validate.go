// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"strings"

	"grimm.is/hostblock/internal/errors"
	"grimm.is/hostblock/internal/logging"
	"grimm.is/hostblock/internal/matcher"
	"grimm.is/hostblock/internal/validation"
	"grimm.is/hostblock/internal/verdict"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Err returns nil when there are no errors, or a KindValidation error
// wrapping e.
func (e ValidationErrors) Err() error {
	if !e.HasErrors() {
		return nil
	}
	return errors.Wrap(e, errors.KindValidation, "invalid configuration")
}

// Validate checks a config that has had ApplyDefaults run on it.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, c.validateQueue()...)
	errs = append(errs, c.validateFilter()...)
	errs = append(errs, c.validateRule()...)
	errs = append(errs, c.validateMetrics()...)

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{Field: "log.level", Message: err.Error()})
	}

	return errs
}

func (c *Config) validateQueue() ValidationErrors {
	var errs ValidationErrors
	q := c.Queue

	if err := validation.ValidateRange(q.Number, 0, 0xffff); err != nil {
		errs = append(errs, ValidationError{Field: "queue.number", Message: err.Error()})
	}
	if err := validation.ValidateAllowlist(q.Backend, []string{BackendNetlink, BackendNFQueue}); err != nil {
		errs = append(errs, ValidationError{Field: "queue.backend", Message: err.Error()})
	}
	if q.MaxLen < 1 {
		errs = append(errs, ValidationError{Field: "queue.max_len", Message: "must be positive"})
	}
	if err := validation.ValidateRange(q.CopyRange, 1, 0xffff); err != nil {
		errs = append(errs, ValidationError{Field: "queue.copy_range", Message: err.Error()})
	}
	if q.ReadBuffer < 0 {
		errs = append(errs, ValidationError{Field: "queue.read_buffer", Message: "must not be negative"})
	}
	return errs
}

func (c *Config) validateFilter() ValidationErrors {
	var errs ValidationErrors
	f := c.Filter

	if len(f.Hosts) > 0 {
		if _, err := matcher.NewRuleSet(f.Hosts...); err != nil {
			errs = append(errs, ValidationError{Field: "filter.hosts", Message: err.Error()})
		}
	}
	seen := make(map[int]bool, len(f.Ports))
	for _, p := range f.Ports {
		if err := validation.ValidatePortNumber(p); err != nil {
			errs = append(errs, ValidationError{Field: "filter.ports", Message: err.Error()})
			continue
		}
		if seen[p] {
			errs = append(errs, ValidationError{Field: "filter.ports", Message: fmt.Sprintf("duplicate port %d", p)})
		}
		seen[p] = true
	}
	if _, err := verdict.ParsePolicy(f.OnTruncated); err != nil {
		errs = append(errs, ValidationError{Field: "filter.on_truncated", Message: fmt.Sprintf("unknown policy %q", f.OnTruncated)})
	}
	return errs
}

func (c *Config) validateRule() ValidationErrors {
	var errs ValidationErrors
	r := c.Rule

	if err := validation.ValidateAllowlist(r.Hook, []string{"input", "output", "forward"}); err != nil {
		errs = append(errs, ValidationError{Field: "rule.hook", Message: err.Error()})
	}
	if err := validation.ValidateIdentifier(r.Table); err != nil {
		errs = append(errs, ValidationError{Field: "rule.table", Message: err.Error()})
	}
	return errs
}

func (c *Config) validateMetrics() ValidationErrors {
	var errs ValidationErrors
	m := c.Metrics
	if !m.Enabled {
		return nil
	}
	if err := validation.ValidateListenAddr(m.Listen); err != nil {
		errs = append(errs, ValidationError{Field: "metrics.listen", Message: err.Error()})
	}
	if !strings.HasPrefix(m.Path, "/") {
		errs = append(errs, ValidationError{Field: "metrics.path", Message: "must start with /"})
	}
	return errs
}
