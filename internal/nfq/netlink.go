// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nfq

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/mdlayher/netlink"

	"grimm.is/hostblock/internal/errors"
	"grimm.is/hostblock/internal/logging"
	"grimm.is/hostblock/internal/verdict"
)

// nfnetlink_queue protocol numbers (linux/netfilter/nfnetlink_queue.h).
const (
	nfnlSubsysQueue = 3

	msgPacket  = 0
	msgVerdict = 1
	msgConfig  = 2

	cfgAttrCmd      = 1
	cfgAttrParams   = 2
	cfgAttrMaxLen   = 3
	cfgAttrMask     = 4
	cfgAttrFlags    = 5
	cfgCmdBind      = 1
	cfgCmdUnbind    = 2
	cfgCmdPFBind    = 3
	cfgCmdPFUnbind  = 4
	copyModePacket  = 2
	cfgFlagFailOpen = 1

	attrPacketHdr  = 1
	attrVerdictHdr = 2
	attrMark       = 3
	attrInDev      = 5
	attrOutDev     = 6
	attrPhysInDev  = 7
	attrPhysOutDev = 8
	attrHwAddr     = 9
	attrPayload    = 10

	afUnspec = 0
	afInet   = 2
)

func msgType(m uint16) netlink.HeaderType {
	return netlink.HeaderType(nfnlSubsysQueue<<8 | m)
}

// nlConn is the subset of *netlink.Conn the backend uses.
type nlConn interface {
	Send(m netlink.Message) (netlink.Message, error)
	Receive() ([]netlink.Message, error)
	SetReadDeadline(t time.Time) error
	SetReadBuffer(bytes int) error
	Close() error
}

// nfgenmsg: family, version, big-endian resource id.
func nfgenHeader(family uint8, queue uint16) []byte {
	return []byte{family, 0, byte(queue >> 8), byte(queue)}
}

func newEncoder() *netlink.AttributeEncoder {
	ae := netlink.NewAttributeEncoder()
	ae.ByteOrder = binary.BigEndian
	return ae
}

func buildMessage(typ uint16, flags netlink.HeaderFlags, queue uint16, ae *netlink.AttributeEncoder) (netlink.Message, error) {
	attrs, err := ae.Encode()
	if err != nil {
		return netlink.Message{}, err
	}
	return netlink.Message{
		Header: netlink.Header{
			Type:  msgType(typ),
			Flags: flags,
		},
		Data: append(nfgenHeader(afUnspec, queue), attrs...),
	}, nil
}

// cmdMessage builds a NFQA_CFG_CMD request. pf is only meaningful for the
// PF_BIND/PF_UNBIND commands.
func cmdMessage(queue uint16, cmd uint8, pf uint16) (netlink.Message, error) {
	ae := newEncoder()
	ae.Bytes(cfgAttrCmd, []byte{cmd, 0, byte(pf >> 8), byte(pf)})
	return buildMessage(msgConfig, netlink.Request|netlink.Acknowledge, queue, ae)
}

func paramsMessage(queue uint16, copyRange, maxLen uint32) (netlink.Message, error) {
	params := make([]byte, 5)
	binary.BigEndian.PutUint32(params, copyRange)
	params[4] = copyModePacket

	ae := newEncoder()
	ae.Bytes(cfgAttrParams, params)
	ae.Uint32(cfgAttrMaxLen, maxLen)
	return buildMessage(msgConfig, netlink.Request|netlink.Acknowledge, queue, ae)
}

func flagsMessage(queue uint16, flags uint32) (netlink.Message, error) {
	ae := newEncoder()
	ae.Uint32(cfgAttrFlags, flags)
	ae.Uint32(cfgAttrMask, flags)
	return buildMessage(msgConfig, netlink.Request|netlink.Acknowledge, queue, ae)
}

func verdictMessage(queue uint16, id uint32, code uint32) (netlink.Message, error) {
	hdr := make([]byte, 8)
	binary.BigEndian.PutUint32(hdr[0:4], code)
	binary.BigEndian.PutUint32(hdr[4:8], id)

	ae := newEncoder()
	ae.Bytes(attrVerdictHdr, hdr)
	return buildMessage(msgVerdict, netlink.Request, queue, ae)
}

const partialPacketMsg = "packet attributes malformed"

// errPartialPacket marks a packet whose header decoded but whose
// remaining attributes did not. It matches any error wrapped with the
// same kind and message.
var errPartialPacket = errors.New(errors.KindTruncated, partialPacketMsg)

// decodePacket extracts a Frame from a NFQNL_MSG_PACKET message.
func decodePacket(m netlink.Message) (Frame, error) {
	var f Frame
	if len(m.Data) < 4 {
		return f, errors.Errorf(errors.KindTruncated, "packet message too short: %d bytes", len(m.Data))
	}

	ad, err := netlink.NewAttributeDecoder(m.Data[4:])
	if err != nil {
		return f, err
	}
	ad.ByteOrder = binary.BigEndian

	var haveHdr bool
	for ad.Next() {
		switch ad.Type() {
		case attrPacketHdr:
			b := ad.Bytes()
			if len(b) < 7 {
				return f, errors.Errorf(errors.KindTruncated, "packet header too short: %d bytes", len(b))
			}
			f.ID = binary.BigEndian.Uint32(b[0:4])
			f.HwProtocol = binary.BigEndian.Uint16(b[4:6])
			f.Hook = b[6]
			haveHdr = true
		case attrMark:
			f.Mark = ad.Uint32()
		case attrInDev:
			f.InDev = ad.Uint32()
		case attrOutDev:
			f.OutDev = ad.Uint32()
		case attrPhysInDev:
			f.PhysInDev = ad.Uint32()
		case attrPhysOutDev:
			f.PhysOutDev = ad.Uint32()
		case attrHwAddr:
			b := ad.Bytes()
			if len(b) >= 4 {
				n := int(binary.BigEndian.Uint16(b[0:2]))
				if n > len(b)-4 {
					n = len(b) - 4
				}
				f.HwAddr = net.HardwareAddr(b[4 : 4+n])
			}
		case attrPayload:
			f.Payload = ad.Bytes()
		}
	}
	if err := ad.Err(); err != nil {
		if haveHdr {
			// The id is known, so the packet can still be answered.
			f.Payload = nil
			return f, errors.Wrap(err, errors.KindTruncated, partialPacketMsg)
		}
		return f, err
	}
	if !haveHdr {
		return f, errors.New(errors.KindTruncated, "packet message without header")
	}
	return f, nil
}

// netlinkConn speaks nfnetlink_queue directly over a netlink socket.
type netlinkConn struct {
	c     nlConn
	queue uint16
	log   *logging.Logger

	// packet messages that arrived while waiting for a config ack
	pending []netlink.Message
}

// openNetlink performs the setup handshake one step at a time so a
// failure names the step that failed.
func openNetlink(opts Options, dial func() (nlConn, error)) (conn, error) {
	c, err := dial()
	if err != nil {
		return nil, openError(StepHandle, err)
	}
	n := &netlinkConn{
		c:     c,
		queue: opts.Queue,
		log:   opts.Logger.WithComponent("nfq").With("backend", BackendNetlink, "queue", opts.Queue),
	}

	if opts.ReadBuffer > 0 {
		if err := c.SetReadBuffer(opts.ReadBuffer); err != nil {
			_ = c.Close()
			return nil, openError(StepHandle, err)
		}
	}

	steps := []struct {
		step  Step
		build func() (netlink.Message, error)
	}{
		{StepUnbind, func() (netlink.Message, error) { return cmdMessage(0, cfgCmdPFUnbind, afInet) }},
		{StepBind, func() (netlink.Message, error) { return cmdMessage(0, cfgCmdPFBind, afInet) }},
		{StepCreateQueue, func() (netlink.Message, error) { return cmdMessage(opts.Queue, cfgCmdBind, 0) }},
		{StepCopyMode, func() (netlink.Message, error) { return paramsMessage(opts.Queue, opts.CopyRange, opts.MaxLen) }},
	}
	if opts.FailOpen {
		steps = append(steps, struct {
			step  Step
			build func() (netlink.Message, error)
		}{StepFlags, func() (netlink.Message, error) { return flagsMessage(opts.Queue, cfgFlagFailOpen) }})
	}

	for _, s := range steps {
		err := n.execute(s.build)
		if err == nil {
			n.log.Debug("setup step done", "step", s.step.String())
			continue
		}
		if s.step > StepCreateQueue {
			_ = n.unbind()
		}
		_ = c.Close()
		return nil, openError(s.step, err)
	}
	return n, nil
}

// execute sends a config request and waits for its ack. Packet messages
// received in the meantime are kept for the next Receive.
func (n *netlinkConn) execute(build func() (netlink.Message, error)) error {
	m, err := build()
	if err != nil {
		return err
	}
	req, err := n.c.Send(m)
	if err != nil {
		return err
	}
	for {
		msgs, err := n.c.Receive()
		if err != nil {
			return err
		}
		acked := false
		for _, r := range msgs {
			switch {
			case r.Header.Type == netlink.Error && r.Header.Sequence == req.Header.Sequence:
				acked = true
			case r.Header.Type == msgType(msgPacket):
				n.pending = append(n.pending, r)
			}
		}
		if acked {
			return nil
		}
	}
}

func (n *netlinkConn) unbind() error {
	m, err := cmdMessage(n.queue, cfgCmdUnbind, 0)
	if err != nil {
		return err
	}
	_, err = n.c.Send(m)
	return err
}

func (n *netlinkConn) Receive() ([]Frame, error) {
	msgs := n.pending
	n.pending = nil
	if len(msgs) == 0 {
		var err error
		msgs, err = n.c.Receive()
		if err != nil {
			if isLoss(err) {
				return nil, errors.Wrap(err, errors.KindLoss, "netlink receive buffer overrun")
			}
			return nil, err
		}
	}

	frames := make([]Frame, 0, len(msgs))
	for _, m := range msgs {
		if m.Header.Type != msgType(msgPacket) {
			continue
		}
		f, err := decodePacket(m)
		switch {
		case errors.Is(err, errPartialPacket):
			n.log.WithError(err).Warn("answering partially decoded packet", "id", f.ID, "len", len(m.Data))
		case err != nil:
			n.log.WithError(err).Warn("dropping undecodable queue message", "len", len(m.Data))
			continue
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func (n *netlinkConn) Verdict(id uint32, v verdict.Verdict) error {
	m, err := verdictMessage(n.queue, id, v.NetfilterCode())
	if err != nil {
		return err
	}
	if _, err := n.c.Send(m); err != nil {
		return fmt.Errorf("send verdict for packet %d: %w", id, err)
	}
	return nil
}

func (n *netlinkConn) Interrupt() error {
	return n.c.SetReadDeadline(time.Now())
}

// Close unbinds only this queue. PF_UNBIND would detach every other
// NFQUEUE user of the family.
func (n *netlinkConn) Close() error {
	uerr := n.unbind()
	cerr := n.c.Close()
	if uerr != nil {
		return errors.Wrap(uerr, errors.KindInternal, "failed to unbind queue")
	}
	return cerr
}
