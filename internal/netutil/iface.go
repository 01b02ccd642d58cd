// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netutil

import (
	"strconv"
	"sync"

	"github.com/vishvananda/netlink"
)

// LinkNameFunc looks up an interface name by index.
type LinkNameFunc func(index int) (string, error)

// LinkName resolves index through rtnetlink.
func LinkName(index int) (string, error) {
	link, err := netlink.LinkByIndex(index)
	if err != nil {
		return "", err
	}
	return link.Attrs().Name, nil
}

// IfaceResolver maps interface indices to names for log lines. Successful
// lookups are cached; interfaces are rarely renamed while running.
type IfaceResolver struct {
	lookup LinkNameFunc

	mu    sync.RWMutex
	cache map[uint32]string
}

// NewIfaceResolver returns a resolver using lookup, or LinkName when nil.
func NewIfaceResolver(lookup LinkNameFunc) *IfaceResolver {
	if lookup == nil {
		lookup = LinkName
	}
	return &IfaceResolver{
		lookup: lookup,
		cache:  make(map[uint32]string),
	}
}

// Name returns the interface name for index. Index 0 means "no device"
// and yields "". Unresolvable indices render as the decimal index.
func (r *IfaceResolver) Name(index uint32) string {
	if index == 0 {
		return ""
	}

	r.mu.RLock()
	name, ok := r.cache[index]
	r.mu.RUnlock()
	if ok {
		return name
	}

	name, err := r.lookup(int(index))
	if err != nil || name == "" {
		return strconv.FormatUint(uint64(index), 10)
	}

	r.mu.Lock()
	r.cache[index] = name
	r.mu.Unlock()
	return name
}
