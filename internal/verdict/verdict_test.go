// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package verdict

import (
	"testing"
)

func TestVerdictValues(t *testing.T) {
	if Forward != 0 {
		t.Errorf("Expected Forward = 0, got %d", Forward)
	}
	if Discard != 1 {
		t.Errorf("Expected Discard = 1, got %d", Discard)
	}
}

func TestDecide(t *testing.T) {
	if got := Decide(true); got != Discard {
		t.Errorf("Decide(true) = %v, want discard", got)
	}
	if got := Decide(false); got != Forward {
		t.Errorf("Decide(false) = %v, want forward", got)
	}
}

func TestNetfilterCode(t *testing.T) {
	if Forward.NetfilterCode() != 1 {
		t.Errorf("Forward should map to NF_ACCEPT (1), got %d", Forward.NetfilterCode())
	}
	if Discard.NetfilterCode() != 0 {
		t.Errorf("Discard should map to NF_DROP (0), got %d", Discard.NetfilterCode())
	}
	if Verdict(7).NetfilterCode() != 1 {
		t.Error("unknown verdicts must forward")
	}
}

func TestString(t *testing.T) {
	if Forward.String() != "forward" || Discard.String() != "discard" {
		t.Errorf("unexpected names %q %q", Forward, Discard)
	}
	if Verdict(7).String() != "unknown" {
		t.Errorf("got %q", Verdict(7).String())
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyForward, false},
		{"forward", PolicyForward, false},
		{"FORWARD", PolicyForward, false},
		{"discard", PolicyDiscard, false},
		{" discard ", PolicyDiscard, false},
		{"accept", PolicyForward, true},
		{"drop", PolicyForward, true},
		{"reject", PolicyForward, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePolicy(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePolicy(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPolicyVerdict(t *testing.T) {
	if PolicyForward.Verdict() != Forward {
		t.Error("PolicyForward should forward")
	}
	if PolicyDiscard.Verdict() != Discard {
		t.Error("PolicyDiscard should discard")
	}
	if PolicyDiscard.String() != "discard" || PolicyForward.String() != "forward" {
		t.Error("unexpected policy names")
	}
}
