// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package nftrule installs the nftables rule that steers inspected TCP
// traffic into the NFQUEUE queue, and removes it again.
//
// The rule lives in its own table (family ip) so removal is a single
// table delete and never touches rules owned by anything else:
//
//	table ip hostblock {
//		chain queue {
//			type filter hook output priority filter;
//			meta l4proto tcp tcp dport 80 counter queue num 0 bypass
//		}
//	}
package nftrule

import (
	"strconv"
	"strings"

	"grimm.is/hostblock/internal/errors"
	"grimm.is/hostblock/internal/logging"
)

// ChainName is the base chain created inside the table.
const ChainName = "queue"

// UserDataPrefix tags each rule with the port it matches, so counters
// can be mapped back to ports.
const UserDataPrefix = "hostblock-port-"

// Hooks accepted by Options.Hook.
const (
	HookInput   = "input"
	HookOutput  = "output"
	HookForward = "forward"
)

// Options describes the rule to install.
type Options struct {
	Table  string
	Hook   string
	Queue  uint16
	Ports  []uint16
	Logger *logging.Logger
}

func (o *Options) validate() error {
	if strings.TrimSpace(o.Table) == "" {
		return errors.New(errors.KindValidation, "table name must not be empty")
	}
	switch o.Hook {
	case HookInput, HookOutput, HookForward:
	default:
		return errors.Attr(errors.New(errors.KindValidation, "unsupported hook"), "hook", o.Hook)
	}
	if len(o.Ports) == 0 {
		return errors.New(errors.KindValidation, "at least one port is required")
	}
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	return nil
}

// UserData returns the rule tag for port.
func UserData(port uint16) []byte {
	return []byte(UserDataPrefix + strconv.Itoa(int(port)))
}

// ParseUserData extracts the port from a rule tag written by UserData.
func ParseUserData(b []byte) (uint16, bool) {
	s, ok := strings.CutPrefix(string(b), UserDataPrefix)
	if !ok {
		return 0, false
	}
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(p), true
}
