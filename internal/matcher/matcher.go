// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package matcher finds blocked HTTP Host header lines in TCP payloads.
package matcher

import (
	"bytes"
	"strings"

	"grimm.is/hostblock/internal/errors"
)

// Marker returns the exact header line searched for: "Host: <host>\r\n".
func Marker(host string) []byte {
	m := make([]byte, 0, len("Host: ")+len(host)+2)
	m = append(m, "Host: "...)
	m = append(m, host...)
	return append(m, '\r', '\n')
}

// Matches reports whether payload contains marker. The search is bounded by
// len(payload); payload need not be text or terminated.
func Matches(payload, marker []byte) bool {
	if len(payload) == 0 || len(marker) == 0 {
		return false
	}
	return bytes.Contains(payload, marker)
}

// Rule is one blocked hostname.
type Rule struct {
	Host   string
	marker []byte
}

// Marker returns the rule's header line.
func (r Rule) Marker() []byte {
	return r.marker
}

// RuleSet is an immutable set of blocked hosts.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet validates hosts and builds their markers. Duplicates collapse;
// order of first appearance is kept.
func NewRuleSet(hosts ...string) (*RuleSet, error) {
	if len(hosts) == 0 {
		return nil, errors.New(errors.KindValidation, "at least one host is required")
	}

	seen := make(map[string]struct{}, len(hosts))
	rs := &RuleSet{rules: make([]Rule, 0, len(hosts))}
	for _, h := range hosts {
		if err := validateHost(h); err != nil {
			return nil, err
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		rs.rules = append(rs.rules, Rule{Host: h, marker: Marker(h)})
	}
	return rs, nil
}

func validateHost(h string) error {
	if h == "" {
		return errors.New(errors.KindValidation, "host must not be empty")
	}
	if strings.ContainsAny(h, "\r\n \t") {
		return errors.Attr(errors.New(errors.KindValidation, "host must not contain whitespace or line breaks"), "host", h)
	}
	return nil
}

// Match returns the first rule whose marker occurs in payload.
func (rs *RuleSet) Match(payload []byte) (Rule, bool) {
	if len(payload) == 0 {
		return Rule{}, false
	}
	for _, r := range rs.rules {
		if Matches(payload, r.marker) {
			return r, true
		}
	}
	return Rule{}, false
}

// Hosts lists the blocked hostnames in rule order.
func (rs *RuleSet) Hosts() []string {
	out := make([]string, len(rs.rules))
	for i, r := range rs.rules {
		out[i] = r.Host
	}
	return out
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}
