// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package packet

import (
	"net"
	"net/netip"
	"testing"

	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/hostblock/internal/errors"
	"grimm.is/hostblock/internal/testutil"
)

// rawFrame builds a zeroed IPv4/TCP frame of size n with the given IHL and
// data offset nibbles.
func rawFrame(n int, ihl, doff uint8) []byte {
	frame := make([]byte, n)
	frame[0] = 0x40 | (ihl & 0x0f)
	frame[9] = ProtocolTCP
	tcpStart := int(ihl) * 4
	if tcpStart+12 < n {
		frame[tcpStart+12] = doff << 4
	}
	return frame
}

func TestDecodeHTTPFrame(t *testing.T) {
	req := testutil.HTTPRequest("example.net", "/index.html")
	frame := testutil.Frame{
		Src:     net.IPv4(10, 0, 0, 2),
		Dst:     net.IPv4(10, 0, 0, 1),
		SrcPort: 40000,
		DstPort: 80,
		Payload: req,
	}.Build(t)

	pkt, err := Decode(frame)
	require.NoError(t, err)

	assert.Equal(t, uint8(4), pkt.IP.Version())
	assert.Equal(t, 20, pkt.IP.HeaderLen())
	assert.Equal(t, uint8(ProtocolTCP), pkt.IP.Protocol())
	assert.Equal(t, uint16(len(frame)), pkt.IP.TotalLength())
	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), pkt.IP.Src())
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), pkt.IP.Dst())
	assert.Equal(t, uint16(40000), pkt.TCP.SrcPort())
	assert.Equal(t, uint16(80), pkt.TCP.DstPort())
	assert.Equal(t, 40, pkt.PayloadOffset)
	assert.Equal(t, req, pkt.Payload())
	assert.Equal(t, len(frame), pkt.Len())
}

func TestDecodeTCPOptions(t *testing.T) {
	frame := testutil.Frame{
		DstPort: 80,
		Payload: []byte("GET / HTTP/1.1\r\n"),
		Options: []layers.TCPOption{{
			OptionType:   layers.TCPOptionKindMSS,
			OptionLength: 4,
			OptionData:   []byte{0x05, 0xb4},
		}},
	}.Build(t)

	pkt, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), pkt.TCP.DataOffset())
	assert.Equal(t, 44, pkt.PayloadOffset)
	assert.Equal(t, []byte("GET / HTTP/1.1\r\n"), pkt.Payload())
}

func TestDecodeHeadersOnly(t *testing.T) {
	frame := testutil.Frame{DstPort: 80}.Build(t)

	pkt, err := Decode(frame)
	require.NoError(t, err)
	assert.Empty(t, pkt.Payload())
}

func TestDecodeErrors(t *testing.T) {
	udp := rawFrame(28, 5, 0)
	udp[9] = 17

	v6 := rawFrame(60, 5, 5)
	v6[0] = 0x60

	tests := []struct {
		name        string
		frame       []byte
		truncated   bool
		unsupported bool
	}{
		{name: "empty", frame: nil, truncated: true},
		{name: "shorter than ipv4 header", frame: make([]byte, 19), truncated: true},
		{name: "ipv6", frame: v6, unsupported: true},
		{name: "udp", frame: udp, unsupported: true},
		{name: "ihl below minimum", frame: rawFrame(40, 4, 5), truncated: true},
		{name: "ihl max on 40 byte frame", frame: rawFrame(40, 15, 5), truncated: true},
		{name: "tcp header cut short", frame: rawFrame(39, 5, 5), truncated: true},
		{name: "data offset below minimum", frame: rawFrame(40, 5, 4), truncated: true},
		{name: "data offset max on 40 byte frame", frame: rawFrame(40, 5, 15), truncated: true},
		{name: "both max on 100 byte frame", frame: rawFrame(100, 15, 15), truncated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.frame)
			require.Error(t, err)
			assert.Equal(t, tt.truncated, IsTruncated(err), "truncated: %v", err)
			assert.Equal(t, tt.unsupported, IsUnsupported(err), "unsupported: %v", err)
		})
	}
}

func TestDecodeBothMaxFits(t *testing.T) {
	frame := rawFrame(120, 15, 15)

	pkt, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, 120, pkt.PayloadOffset)
	assert.Empty(t, pkt.Payload())
}

func TestTruncatedAttributes(t *testing.T) {
	_, err := Decode(rawFrame(40, 15, 5))
	require.Error(t, err)

	assert.Equal(t, errors.KindTruncated, errors.GetKind(err))
	attrs := errors.GetAttributes(err)
	assert.Equal(t, 80, attrs["need"])
	assert.Equal(t, 40, attrs["have"])
}

func FuzzDecode(f *testing.F) {
	f.Add(rawFrame(40, 5, 5))
	f.Add(rawFrame(40, 15, 5))
	f.Add(rawFrame(64, 5, 15))
	f.Add([]byte{0x45})

	f.Fuzz(func(t *testing.T, frame []byte) {
		pkt, err := Decode(frame)
		if err != nil {
			if !IsTruncated(err) && !IsUnsupported(err) {
				t.Fatalf("unexpected error class: %v", err)
			}
			return
		}
		if pkt.PayloadOffset > len(frame) {
			t.Fatalf("payload offset %d past frame end %d", pkt.PayloadOffset, len(frame))
		}
		_ = pkt.Payload()
		_ = pkt.TCP.DstPort()
	})
}
