// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package packet decodes the IPv4 and TCP headers of a queued frame and
// locates the TCP payload.
//
// Decoding never copies: IPv4 and TCP are views over the caller's buffer.
// Every offset derived from a header field is checked against the buffer
// length before any slice is taken, so adversarial IHL or data-offset values
// surface as Truncated rather than a panic or an out-of-bounds read.
package packet

import (
	"encoding/binary"
	"net/netip"

	"grimm.is/hostblock/internal/errors"
)

const (
	// IPv4MinHeaderLen is the fixed part of an IPv4 header.
	IPv4MinHeaderLen = 20
	// TCPMinHeaderLen is the fixed part of a TCP header.
	TCPMinHeaderLen = 20

	ProtocolTCP = 6
)

var (
	ErrTruncated   = errors.New(errors.KindTruncated, "truncated")
	ErrUnsupported = errors.New(errors.KindUnsupported, "unsupported")
)

// IsTruncated reports whether err is a Truncated decode failure.
func IsTruncated(err error) bool { return errors.Is(err, ErrTruncated) }

// IsUnsupported reports whether err means the frame is not IPv4/TCP.
func IsUnsupported(err error) bool { return errors.Is(err, ErrUnsupported) }

func truncated(reason string, need, have int) error {
	err := errors.Wrap(ErrTruncated, errors.KindTruncated, reason)
	err = errors.Attr(err, "need", need)
	return errors.Attr(err, "have", have)
}

func unsupported(reason string) error {
	return errors.Wrap(ErrUnsupported, errors.KindUnsupported, reason)
}

// IPv4 is a read-only view of an IPv4 header. It is only valid when
// obtained from Decode, which guarantees at least HeaderLen bytes.
type IPv4 []byte

func (h IPv4) Version() uint8 { return h[0] >> 4 }
func (h IPv4) IHL() uint8 { return h[0] & 0x0f }
func (h IPv4) HeaderLen() int { return int(h.IHL()) * 4 }
func (h IPv4) TotalLength() uint16 { return binary.BigEndian.Uint16(h[2:4]) }
func (h IPv4) TTL() uint8 { return h[8] }
func (h IPv4) Protocol() uint8 { return h[9] }

// Src returns the source address.
func (h IPv4) Src() netip.Addr { return netip.AddrFrom4([4]byte(h[12:16])) }

// Dst returns the destination address.
func (h IPv4) Dst() netip.Addr { return netip.AddrFrom4([4]byte(h[16:20])) }

// TCP is a read-only view of a TCP header.
type TCP []byte

func (h TCP) SrcPort() uint16 { return binary.BigEndian.Uint16(h[0:2]) }
func (h TCP) DstPort() uint16 { return binary.BigEndian.Uint16(h[2:4]) }
func (h TCP) Seq() uint32 { return binary.BigEndian.Uint32(h[4:8]) }
func (h TCP) DataOffset() uint8 { return h[12] >> 4 }
func (h TCP) HeaderLen() int { return int(h.DataOffset()) * 4 }
func (h TCP) Flags() uint8 { return h[13] }

// Packet is a decoded IPv4/TCP frame.
type Packet struct {
	IP            IPv4
	TCP           TCP
	PayloadOffset int

	frame []byte
}

// Payload returns the TCP payload, possibly empty.
func (p Packet) Payload() []byte {
	return p.frame[p.PayloadOffset:]
}

// Len returns the length of the underlying frame.
func (p Packet) Len() int {
	return len(p.frame)
}

// Decode interprets frame as an IPv4 header followed by a TCP header.
//
// It fails with a Truncated error when a header, or the payload offset the
// headers claim, does not fit in frame, and with an Unsupported error for
// anything that is not IPv4 carrying TCP.
func Decode(frame []byte) (Packet, error) {
	if len(frame) < IPv4MinHeaderLen {
		return Packet{}, truncated("ipv4 header", IPv4MinHeaderLen, len(frame))
	}

	ip := IPv4(frame)
	if v := ip.Version(); v != 4 {
		return Packet{}, errors.Attr(unsupported("not ipv4"), "version", v)
	}
	if ip.IHL() < 5 {
		return Packet{}, truncated("ipv4 ihl below minimum", IPv4MinHeaderLen, ip.HeaderLen())
	}
	if p := ip.Protocol(); p != ProtocolTCP {
		return Packet{}, errors.Attr(unsupported("not tcp"), "protocol", p)
	}

	ipLen := ip.HeaderLen()
	if need := ipLen + TCPMinHeaderLen; len(frame) < need {
		return Packet{}, truncated("tcp header", need, len(frame))
	}

	tcp := TCP(frame[ipLen:])
	if tcp.DataOffset() < 5 {
		return Packet{}, truncated("tcp data offset below minimum", TCPMinHeaderLen, tcp.HeaderLen())
	}

	off := ipLen + tcp.HeaderLen()
	if off > len(frame) {
		return Packet{}, truncated("payload offset", off, len(frame))
	}

	return Packet{
		IP:            ip[:ipLen],
		TCP:           tcp[:tcp.HeaderLen()],
		PayloadOffset: off,
		frame:         frame,
	}, nil
}
