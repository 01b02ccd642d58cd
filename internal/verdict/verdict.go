// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package verdict

import (
	"strings"

	"grimm.is/hostblock/internal/errors"
)

// Verdict is the answer returned to the kernel for one queued packet.
type Verdict int

const (
	// Forward lets the packet continue through netfilter.
	Forward Verdict = iota
	// Discard drops the packet.
	Discard
)

// netfilter verdict codes from linux/netfilter.h
const (
	nfDrop   = 0
	nfAccept = 1
)

func (v Verdict) String() string {
	switch v {
	case Forward:
		return "forward"
	case Discard:
		return "discard"
	default:
		return "unknown"
	}
}

// NetfilterCode maps v to NF_ACCEPT or NF_DROP. Unknown values forward.
func (v Verdict) NetfilterCode() uint32 {
	if v == Discard {
		return nfDrop
	}
	return nfAccept
}

// Decide maps a match result to a verdict.
func Decide(matched bool) Verdict {
	if matched {
		return Discard
	}
	return Forward
}

// Policy chooses the verdict for frames whose headers cannot be trusted
// enough to locate the payload.
type Policy int

const (
	// PolicyForward lets truncated frames through (fail open).
	PolicyForward Policy = iota
	// PolicyDiscard drops truncated frames (fail closed).
	PolicyDiscard
)

func (p Policy) String() string {
	if p == PolicyDiscard {
		return "discard"
	}
	return "forward"
}

// Verdict returns the verdict the policy assigns.
func (p Policy) Verdict() Verdict {
	if p == PolicyDiscard {
		return Discard
	}
	return Forward
}

// ParsePolicy accepts "forward" (or empty) and "discard".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "forward":
		return PolicyForward, nil
	case "discard":
		return PolicyDiscard, nil
	default:
		return PolicyForward, errors.Attr(errors.New(errors.KindValidation, "unknown truncated-frame policy"), "value", s)
	}
}
