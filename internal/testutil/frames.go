// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package testutil

import (
	"fmt"
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// Frame describes an IPv4/TCP packet as NFQUEUE delivers it: starting at
// the IP header, no link layer.
type Frame struct {
	Src, Dst         net.IP
	SrcPort, DstPort uint16
	Payload          []byte
	// Options grow the TCP header beyond 20 bytes.
	Options []layers.TCPOption
}

// Build serializes f with correct lengths and checksums.
func (f Frame) Build(t testing.TB) []byte {
	t.Helper()

	src, dst := f.Src, f.Dst
	if src == nil {
		src = net.IPv4(192, 168, 1, 100)
	}
	if dst == nil {
		dst = net.IPv4(93, 184, 216, 34)
	}
	srcPort := f.SrcPort
	if srcPort == 0 {
		srcPort = 49152
	}

	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    src.To4(),
		DstIP:    dst.To4(),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(f.DstPort),
		Seq:     1,
		Ack:     1,
		PSH:     true,
		ACK:     true,
		Window:  64240,
		Options: f.Options,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum setup: %v", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, tcp, gopacket.Payload(f.Payload)); err != nil {
		t.Fatalf("serialize frame: %v", err)
	}
	return buf.Bytes()
}

// HTTPFrame builds a port-80 frame carrying a GET request for host.
func HTTPFrame(t testing.TB, host string, dstPort uint16) []byte {
	t.Helper()
	return Frame{DstPort: dstPort, Payload: HTTPRequest(host, "/")}.Build(t)
}

// HTTPRequest renders a minimal HTTP/1.1 request.
func HTTPRequest(host, path string) []byte {
	return []byte(fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nUser-Agent: curl/8.5.0\r\nAccept: */*\r\n\r\n", path, host))
}
