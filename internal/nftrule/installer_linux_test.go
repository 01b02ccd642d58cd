// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package nftrule

import (
	stderrors "errors"
	"testing"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/hostblock/internal/testutil"
)

// mockConn records the batch the installer builds.
type mockConn struct {
	ops      []string
	tables   []*nftables.Table
	chains   []*nftables.Chain
	rules    []*nftables.Rule
	flushes  int
	flushErr error
}

func (m *mockConn) AddTable(t *nftables.Table) *nftables.Table {
	m.ops = append(m.ops, "add table")
	m.tables = append(m.tables, t)
	return t
}

func (m *mockConn) DelTable(t *nftables.Table) {
	m.ops = append(m.ops, "del table")
}

func (m *mockConn) AddChain(c *nftables.Chain) *nftables.Chain {
	m.ops = append(m.ops, "add chain")
	m.chains = append(m.chains, c)
	return c
}

func (m *mockConn) AddRule(r *nftables.Rule) *nftables.Rule {
	m.ops = append(m.ops, "add rule")
	m.rules = append(m.rules, r)
	return r
}

func (m *mockConn) Flush() error {
	m.ops = append(m.ops, "flush")
	m.flushes++
	return m.flushErr
}

func newTestInstaller(t *testing.T, conn Conn, hook string, ports ...uint16) *Installer {
	t.Helper()
	i, err := NewWithConn(conn, Options{
		Table:  "hostblock",
		Hook:   hook,
		Queue:  3,
		Ports:  ports,
		Logger: testutil.DiscardLogger(),
	})
	require.NoError(t, err)
	return i
}

func TestInstallBuildsOneRulePerPort(t *testing.T) {
	conn := &mockConn{}
	i := newTestInstaller(t, conn, HookOutput, 80, 8080)

	require.NoError(t, i.Install())

	assert.Equal(t, []string{"add table", "del table", "add table", "add chain", "add rule", "add rule", "flush"}, conn.ops)
	assert.Equal(t, "hostblock", conn.tables[0].Name)
	assert.Equal(t, nftables.TableFamilyIPv4, conn.tables[0].Family)

	require.Len(t, conn.chains, 1)
	c := conn.chains[0]
	assert.Equal(t, ChainName, c.Name)
	assert.Equal(t, nftables.ChainHookOutput, c.Hooknum)
	assert.Equal(t, nftables.ChainPriorityFilter, c.Priority)
	assert.Equal(t, nftables.ChainTypeFilter, c.Type)

	require.Len(t, conn.rules, 2)
	for n, want := range []uint16{80, 8080} {
		r := conn.rules[n]
		port, ok := ParseUserData(r.UserData)
		require.True(t, ok)
		assert.Equal(t, want, port)

		require.Len(t, r.Exprs, 6)
		dport := r.Exprs[3].(*expr.Cmp)
		assert.Equal(t, []byte{byte(want >> 8), byte(want)}, dport.Data)
		q := r.Exprs[5].(*expr.Queue)
		assert.Equal(t, uint16(3), q.Num)
		assert.Equal(t, expr.QueueFlagBypass, q.Flag)
		assert.IsType(t, &expr.Counter{}, r.Exprs[4])
	}
}

func TestInstallHooks(t *testing.T) {
	for hook, want := range map[string]*nftables.ChainHook{
		HookInput:   nftables.ChainHookInput,
		HookForward: nftables.ChainHookForward,
		HookOutput:  nftables.ChainHookOutput,
	} {
		conn := &mockConn{}
		require.NoError(t, newTestInstaller(t, conn, hook, 80).Install())
		assert.Equal(t, want, conn.chains[0].Hooknum, hook)
	}
}

func TestRemove(t *testing.T) {
	conn := &mockConn{}
	i := newTestInstaller(t, conn, HookOutput, 80)

	require.NoError(t, i.Remove())
	assert.Zero(t, conn.flushes, "remove before install touches nothing")

	require.NoError(t, i.Install())
	conn.ops = nil
	require.NoError(t, i.Remove())
	assert.Equal(t, []string{"del table", "flush"}, conn.ops)

	conn.ops = nil
	require.NoError(t, i.Remove())
	assert.Empty(t, conn.ops)
}

func TestInstallFlushFailure(t *testing.T) {
	conn := &mockConn{flushErr: stderrors.New("operation not permitted")}
	i := newTestInstaller(t, conn, HookOutput, 80)

	require.Error(t, i.Install())

	conn.ops = nil
	require.NoError(t, i.Remove())
	assert.Empty(t, conn.ops)
}

func TestInstallKernel(t *testing.T) {
	testutil.RequireKernel(t)

	i, err := New(Options{Table: "hostblock_test", Hook: HookOutput, Queue: 0, Ports: []uint16{80}})
	require.NoError(t, err)
	require.NoError(t, i.Install())
	require.NoError(t, i.Remove())
}
