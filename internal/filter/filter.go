// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package filter turns a raw queued frame into a verdict.
//
// A Filter is immutable once built. Evaluate is a pure function of the frame
// and the filter, so results from one packet can never leak into the next.
package filter

import (
	"slices"

	"grimm.is/hostblock/internal/matcher"
	"grimm.is/hostblock/internal/packet"
	"grimm.is/hostblock/internal/verdict"
)

// DefaultPorts are the TCP destination ports inspected when none are set.
var DefaultPorts = []uint16{80}

// Reason explains how a Result was reached.
type Reason int

const (
	ReasonNoMatch Reason = iota
	ReasonMatched
	ReasonUnsupported
	ReasonPort
	ReasonTruncated
)

func (r Reason) String() string {
	switch r {
	case ReasonNoMatch:
		return "no-match"
	case ReasonMatched:
		return "matched"
	case ReasonUnsupported:
		return "unsupported"
	case ReasonPort:
		return "port"
	case ReasonTruncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// Result is the outcome for one frame.
type Result struct {
	Verdict verdict.Verdict
	Reason  Reason
	// Host is set when Reason is ReasonMatched.
	Host string
	// Err carries the decode error for ReasonUnsupported and ReasonTruncated.
	Err error
	// DstPort is set whenever the TCP header could be read.
	DstPort uint16
	// PayloadLen is the TCP payload length of a decoded frame.
	PayloadLen int
}

// Options configures a Filter.
type Options struct {
	Rules *matcher.RuleSet
	// Ports defaults to DefaultPorts.
	Ports []uint16
	// OnTruncated picks the verdict for frames that fail bounds checks.
	OnTruncated verdict.Policy
}

// Filter evaluates frames against a rule set.
type Filter struct {
	rules       *matcher.RuleSet
	ports       []uint16
	onTruncated verdict.Policy
}

// New builds a Filter. Rules must be non-nil.
func New(opts Options) *Filter {
	ports := opts.Ports
	if len(ports) == 0 {
		ports = DefaultPorts
	}
	uniq := make([]uint16, 0, len(ports))
	for _, p := range ports {
		if !slices.Contains(uniq, p) {
			uniq = append(uniq, p)
		}
	}
	return &Filter{
		rules:       opts.Rules,
		ports:       uniq,
		onTruncated: opts.OnTruncated,
	}
}

// Ports returns the inspected destination ports.
func (f *Filter) Ports() []uint16 {
	return slices.Clone(f.ports)
}

// Evaluate decodes frame and decides its verdict.
func (f *Filter) Evaluate(frame []byte) Result {
	pkt, err := packet.Decode(frame)
	switch {
	case err == nil:
	case packet.IsTruncated(err):
		return Result{Verdict: f.onTruncated.Verdict(), Reason: ReasonTruncated, Err: err}
	default:
		return Result{Verdict: verdict.Forward, Reason: ReasonUnsupported, Err: err}
	}

	res := Result{DstPort: pkt.TCP.DstPort(), PayloadLen: len(pkt.Payload())}
	if !slices.Contains(f.ports, res.DstPort) {
		res.Verdict = verdict.Forward
		res.Reason = ReasonPort
		return res
	}

	rule, ok := f.rules.Match(pkt.Payload())
	res.Verdict = verdict.Decide(ok)
	if ok {
		res.Reason = ReasonMatched
		res.Host = rule.Host
	}
	return res
}
