// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nfq

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/hostblock/internal/errors"
	"grimm.is/hostblock/internal/verdict"
)

// fakeLib stands in for a go-nfqueue handle. Tests drive the hook and
// error callbacks the way the library goroutine would.
type fakeLib struct {
	mu          sync.Mutex
	hook        func(Frame) int
	onErr       func(error) int
	registerErr error
	verdicts    [][2]int
	closes      int
}

func (f *fakeLib) register(ctx context.Context, hook func(Frame) int, onErr func(error) int) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.hook, f.onErr = hook, onErr
	return nil
}

func (f *fakeLib) setVerdict(id uint32, code int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verdicts = append(f.verdicts, [2]int{int(id), code})
	return nil
}

func (f *fakeLib) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeLib) sent() [][2]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]int(nil), f.verdicts...)
}

func TestLibConnHandsOverFramesInOrder(t *testing.T) {
	f := &fakeLib{}
	c, err := newLibConn(context.Background(), f)
	require.NoError(t, err)

	rets := make(chan int, 3)
	go func() {
		for id := uint32(1); id <= 3; id++ {
			rets <- f.hook(Frame{ID: id})
		}
	}()

	for want := uint32(1); want <= 3; want++ {
		frames, err := c.Receive()
		require.NoError(t, err)
		require.Len(t, frames, 1)
		assert.Equal(t, want, frames[0].ID)
		// the next frame must not be handed over before this verdict
		assert.Len(t, f.sent(), int(want-1))
		require.NoError(t, c.Verdict(frames[0].ID, verdict.Decide(want == 2)))
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, 0, <-rets)
	}
	assert.Equal(t, [][2]int{{1, 1}, {2, 0}, {3, 1}}, f.sent())
}

func TestLibConnErrors(t *testing.T) {
	f := &fakeLib{}
	c, err := newLibConn(context.Background(), f)
	require.NoError(t, err)

	loss := errors.Wrap(stderrors.New("no buffer space"), errors.KindLoss, "overrun")
	fatal := stderrors.New("socket closed")
	rets := make(chan int, 2)
	go func() {
		rets <- f.onErr(loss)
		rets <- f.onErr(fatal)
	}()

	_, err = c.Receive()
	assert.True(t, errors.HasKind(err, errors.KindLoss))
	assert.Equal(t, 0, <-rets)

	_, err = c.Receive()
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, <-rets)
}

func TestLibConnInterruptReleasesBothSides(t *testing.T) {
	f := &fakeLib{}
	c, err := newLibConn(context.Background(), f)
	require.NoError(t, err)

	go f.hook(Frame{ID: 1})
	frames, err := c.Receive()
	require.NoError(t, err)
	require.Len(t, frames, 1)

	ret := make(chan int, 1)
	go func() { ret <- f.hook(Frame{ID: 2}) }()

	// Frame 1 is still unanswered; its hook waits for the ack.
	require.NoError(t, c.Close())
	assert.Equal(t, 1, f.closes)

	select {
	case r := <-ret:
		assert.Equal(t, 1, r)
	case <-time.After(2 * time.Second):
		t.Fatal("hook stayed blocked after close")
	}

	_, err = c.Receive()
	assert.ErrorIs(t, err, errInterrupted)
}

func TestLibConnRegisterFailure(t *testing.T) {
	f := &fakeLib{registerErr: stderrors.New("bind failed")}
	_, err := newLibConn(context.Background(), f)
	assert.Error(t, err)
}

func TestLibConnSession(t *testing.T) {
	f := &fakeLib{}
	c, err := newLibConn(context.Background(), f)
	require.NoError(t, err)
	s := testSession(c, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s, discardEven)

	for id := uint32(1); id <= 4; id++ {
		assert.Equal(t, 0, f.hook(Frame{ID: id}))
	}
	cancel()
	require.NoError(t, waitRun(t, done))

	assert.Equal(t, [][2]int{{1, 1}, {2, 0}, {3, 1}, {4, 0}}, f.sent())
	assert.Equal(t, 1, f.closes)
	assert.Equal(t, uint64(4), s.Stats().Verdicts)
}
