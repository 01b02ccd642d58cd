// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/hostblock/internal/errors"
)

func TestMarker(t *testing.T) {
	assert.Equal(t, []byte("Host: example.net\r\n"), Marker("example.net"))
}

func TestMatches(t *testing.T) {
	marker := Marker("example.net")

	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"present mid request", "GET / HTTP/1.1\r\nHost: example.net\r\nAccept: */*\r\n\r\n", true},
		{"present at start", "Host: example.net\r\n", true},
		{"other host", "GET / HTTP/1.1\r\nHost: other.net\r\n\r\n", false},
		{"suffix host", "GET / HTTP/1.1\r\nHost: www.example.net\r\n\r\n", false},
		{"prefix host", "GET / HTTP/1.1\r\nHost: example.network\r\n\r\n", false},
		{"missing crlf", "GET / HTTP/1.1\r\nHost: example.net", false},
		{"lowercase header", "GET / HTTP/1.1\r\nhost: example.net\r\n\r\n", false},
		{"empty", "", false},
		{"binary around marker", "\x00\x01\xffHost: example.net\r\n\x00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches([]byte(tt.payload), marker))
		})
	}
}

func TestMatchesIgnoresBytesPastSlice(t *testing.T) {
	buf := []byte("GET / HTTP/1.1\r\nHost: example.net\r\n")
	// The marker exists in the backing array but not within the slice.
	cut := buf[:20]
	assert.False(t, Matches(cut, Marker("example.net")))
}

func TestMatchesEmptyMarker(t *testing.T) {
	assert.False(t, Matches([]byte("anything"), nil))
}

func TestNewRuleSet(t *testing.T) {
	rs, err := NewRuleSet("example.net", "test.example.net", "example.net")
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, []string{"example.net", "test.example.net"}, rs.Hosts())
}

func TestNewRuleSetInvalid(t *testing.T) {
	tests := []struct {
		name  string
		hosts []string
	}{
		{"none", nil},
		{"empty host", []string{""}},
		{"space", []string{"example .net"}},
		{"crlf injection", []string{"example.net\r\nX-Evil: 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleSet(tt.hosts...)
			require.Error(t, err)
			assert.Equal(t, errors.KindValidation, errors.GetKind(err))
		})
	}
}

func TestRuleSetMatch(t *testing.T) {
	rs, err := NewRuleSet("a.example", "b.example")
	require.NoError(t, err)

	r, ok := rs.Match([]byte("GET / HTTP/1.1\r\nHost: b.example\r\n\r\n"))
	require.True(t, ok)
	assert.Equal(t, "b.example", r.Host)
	assert.Equal(t, []byte("Host: b.example\r\n"), r.Marker())

	_, ok = rs.Match([]byte("GET / HTTP/1.1\r\nHost: c.example\r\n\r\n"))
	assert.False(t, ok)

	_, ok = rs.Match(nil)
	assert.False(t, ok)
}
