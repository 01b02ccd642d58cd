// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package nfq

import (
	"testing"

	nfqueue "github.com/florianl/go-nfqueue/v2"
	"github.com/stretchr/testify/assert"

	"grimm.is/hostblock/internal/testutil"
)

func TestNFQueueDeliverSkipsMessageWithoutID(t *testing.T) {
	logger, buf := testutil.CaptureLogger()
	h := nfqueueHandle{log: logger}
	payload := []byte{0x45, 0x00}

	called := false
	rc := h.deliver(nfqueue.Attribute{Payload: &payload}, func(Frame) int {
		called = true
		return 0
	})

	assert.Equal(t, 0, rc)
	assert.False(t, called)
	assert.Contains(t, buf.String(), "dropping queue message without packet id")
	assert.Contains(t, buf.String(), `"len":2`)
}

func TestNFQueueDeliverConvertsAttribute(t *testing.T) {
	logger, buf := testutil.CaptureLogger()
	h := nfqueueHandle{log: logger}
	id := uint32(42)
	mark := uint32(7)
	payload := []byte{0x45, 0x00, 0x00, 0x14}

	var got Frame
	rc := h.deliver(nfqueue.Attribute{PacketID: &id, Mark: &mark, Payload: &payload}, func(f Frame) int {
		got = f
		return 0
	})

	assert.Equal(t, 0, rc)
	assert.Equal(t, uint32(42), got.ID)
	assert.Equal(t, uint32(7), got.Mark)
	assert.Equal(t, payload, got.Payload)
	assert.Empty(t, buf.String())
}
