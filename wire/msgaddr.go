// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
	"net"
)

// MaxAddrCount bounds the number of addresses a single ADDR message may
// carry.
const MaxAddrCount = 1000

// NetAddress holds the IP, port and last-seen time of a known peer.
type NetAddress struct {
	Timestamp uint32
	Services  uint64
	IP        net.IP
	Port      uint16
}

func (na *NetAddress) kaspaDecode(r io.Reader) error {
	var ipBytes [16]byte
	if err := readElements(r, &na.Timestamp, &na.Services, &ipBytes); err != nil {
		return err
	}
	na.IP = net.IP(ipBytes[:]).To16()
	return ReadElement(r, &na.Port)
}

func (na *NetAddress) kaspaEncode(w io.Writer) error {
	var ipBytes [16]byte
	if ip4 := na.IP.To4(); ip4 != nil {
		copy(ipBytes[12:16], ip4)
	} else if na.IP != nil {
		copy(ipBytes[:], na.IP.To16())
	}
	if err := writeElements(w, na.Timestamp, na.Services, ipBytes); err != nil {
		return err
	}
	return WriteElement(w, na.Port)
}

// MsgGetAddr requests the recipient's known-peer table.
type MsgGetAddr struct{}

// KaspaDecode decodes r into the receiver.
func (msg *MsgGetAddr) KaspaDecode(r io.Reader) error { return nil }

// KaspaEncode encodes the receiver to w.
func (msg *MsgGetAddr) KaspaEncode(w io.Writer) error { return nil }

// Command returns the protocol command for the message.
func (msg *MsgGetAddr) Command() MessageCommand { return CmdGetAddr }

// MsgAddr answers a MsgGetAddr with a batch of known peer addresses.
type MsgAddr struct {
	AddrList []*NetAddress
}

// AddAddress appends na to the message, enforcing MaxAddrCount.
func (msg *MsgAddr) AddAddress(na *NetAddress) error {
	if len(msg.AddrList)+1 > MaxAddrCount {
		return errTooManyElements("addresses", uint64(len(msg.AddrList)+1))
	}
	msg.AddrList = append(msg.AddrList, na)
	return nil
}

// KaspaDecode decodes r into the receiver.
func (msg *MsgAddr) KaspaDecode(r io.Reader) error {
	count, err := ReadCompactSize(r)
	if err != nil {
		return err
	}
	if count > MaxAddrCount {
		return errTooManyElements("addresses", count)
	}
	msg.AddrList = make([]*NetAddress, count)
	for i := range msg.AddrList {
		na := &NetAddress{}
		if err := na.kaspaDecode(r); err != nil {
			return err
		}
		msg.AddrList[i] = na
	}
	return nil
}

// KaspaEncode encodes the receiver to w.
func (msg *MsgAddr) KaspaEncode(w io.Writer) error {
	if err := WriteCompactSize(w, uint64(len(msg.AddrList))); err != nil {
		return err
	}
	for _, na := range msg.AddrList {
		if err := na.kaspaEncode(w); err != nil {
			return err
		}
	}
	return nil
}

// Command returns the protocol command for the message.
func (msg *MsgAddr) Command() MessageCommand { return CmdAddr }
