// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package nftrule

import (
	"sync"

	"github.com/google/nftables"
	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"

	"grimm.is/hostblock/internal/errors"
	"grimm.is/hostblock/internal/logging"
)

// Conn is the subset of *nftables.Conn the installer needs.
type Conn interface {
	AddTable(t *nftables.Table) *nftables.Table
	DelTable(t *nftables.Table)
	AddChain(c *nftables.Chain) *nftables.Chain
	AddRule(r *nftables.Rule) *nftables.Rule
	Flush() error
}

// Installer owns the steering table.
type Installer struct {
	conn   Conn
	opts   Options
	logger *logging.Logger

	mu        sync.Mutex
	table     *nftables.Table
	installed bool
}

// New creates an installer on a fresh nftables connection.
func New(opts Options) (*Installer, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindSetup, "failed to open nftables connection")
	}
	return NewWithConn(conn, opts)
}

// NewWithConn creates an installer with an injected connection.
func NewWithConn(conn Conn, opts Options) (*Installer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Installer{
		conn:   conn,
		opts:   opts,
		logger: opts.Logger.WithComponent("nftrule").With("table", opts.Table),
		table:  &nftables.Table{Name: opts.Table, Family: nftables.TableFamilyIPv4},
	}, nil
}

func chainHook(name string) *nftables.ChainHook {
	switch name {
	case HookInput:
		return nftables.ChainHookInput
	case HookForward:
		return nftables.ChainHookForward
	default:
		return nftables.ChainHookOutput
	}
}

// ruleExprs encodes: meta l4proto tcp tcp dport <port> counter queue num <queue> bypass
func ruleExprs(port, queue uint16) []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyL4PROTO, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: []byte{unix.IPPROTO_TCP}},
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseTransportHeader,
			Offset:       2,
			Len:          2,
		},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: binaryutil.BigEndian.PutUint16(port)},
		&expr.Counter{},
		&expr.Queue{Num: queue, Flag: expr.QueueFlagBypass},
	}
}

// Install replaces the table with a fresh one holding one rule per port.
// The batch is applied atomically.
func (i *Installer) Install() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	// add-then-delete clears any leftover table without failing when absent
	i.conn.AddTable(i.table)
	i.conn.DelTable(i.table)
	i.conn.AddTable(i.table)

	chain := i.conn.AddChain(&nftables.Chain{
		Name:     ChainName,
		Table:    i.table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  chainHook(i.opts.Hook),
		Priority: nftables.ChainPriorityFilter,
	})

	for _, port := range i.opts.Ports {
		i.conn.AddRule(&nftables.Rule{
			Table:    i.table,
			Chain:    chain,
			Exprs:    ruleExprs(port, i.opts.Queue),
			UserData: UserData(port),
		})
	}

	if err := i.conn.Flush(); err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindSetup, "failed to install steering rule"), "table", i.opts.Table)
	}
	i.installed = true
	i.logger.Info("steering rule installed", "hook", i.opts.Hook, "queue", i.opts.Queue, "ports", i.opts.Ports)
	return nil
}

// Remove deletes the table. It is a no-op when nothing was installed.
func (i *Installer) Remove() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.installed {
		return nil
	}
	i.conn.DelTable(i.table)
	if err := i.conn.Flush(); err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindInternal, "failed to remove steering rule"), "table", i.opts.Table)
	}
	i.installed = false
	i.logger.Info("steering rule removed")
	return nil
}
