// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nftrule

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"grimm.is/hostblock/internal/errors"
)

func TestUserDataRoundTrip(t *testing.T) {
	assert.Equal(t, []byte("hostblock-port-8080"), UserData(8080))

	port, ok := ParseUserData(UserData(80))
	assert.True(t, ok)
	assert.Equal(t, uint16(80), port)

	for _, bad := range []string{"", "policy-1", "hostblock-port-", "hostblock-port-70000", "hostblock-port-x"} {
		_, ok := ParseUserData([]byte(bad))
		assert.False(t, ok, bad)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		ok   bool
	}{
		{"valid", Options{Table: "hostblock", Hook: HookOutput, Ports: []uint16{80}}, true},
		{"forward", Options{Table: "hostblock", Hook: HookForward, Ports: []uint16{80}}, true},
		{"empty table", Options{Table: " ", Hook: HookOutput, Ports: []uint16{80}}, false},
		{"bad hook", Options{Table: "hostblock", Hook: "prerouting", Ports: []uint16{80}}, false},
		{"no ports", Options{Table: "hostblock", Hook: HookOutput}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.ok {
				assert.NoError(t, err)
				assert.NotNil(t, tt.opts.Logger)
				return
			}
			assert.Equal(t, errors.KindValidation, errors.GetKind(err))
		})
	}
}
