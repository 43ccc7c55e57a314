package linklayer

import (
	"golang.org/x/net/bpf"
)

// EtherType selects which classifier program and raw socket protocol a
// Capture is opened for.
type EtherType uint16

const (
	EtherTypeIP  EtherType = 0x0800
	EtherTypeARP EtherType = 0x0806
)

// String renders a human-readable ethertype name for use as a metric label.
func (e EtherType) String() string {
	switch e {
	case EtherTypeIP:
		return "ip"
	case EtherTypeARP:
		return "arp"
	default:
		return "unknown"
	}
}

// ethHeaderLen is the Ethernet header length BPF offsets are adjusted by
// when a capture is delivered "cooked" (starting at the network-layer
// header, no Ethernet header present). spec.md §4.C / §6.
const ethHeaderLen = 14

const arpOpReply = 2

// dhcpLinkProgram is the link-view DHCP classifier, taken verbatim (in
// spirit) from the ISC-DHCP-derived filter: accept IPv4/UDP/unfragmented
// packets destined for the DHCP client port, drop everything else.
func dhcpLinkProgram() []bpf.Instruction {
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(EtherTypeIP), SkipTrue: 0, SkipFalse: 8},
		bpf.LoadAbsolute{Off: 23, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: protoUDP, SkipTrue: 0, SkipFalse: 6},
		bpf.LoadAbsolute{Off: 20, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x1fff, SkipTrue: 4, SkipFalse: 0},
		bpf.LoadMemShift{Off: 14},
		bpf.LoadIndirect{Off: 16, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(DHCPClientPort), SkipTrue: 0, SkipFalse: 1},
		bpf.RetConstant{Val: 0xFFFFFFFF},
		bpf.RetConstant{Val: 0},
	}
}

// arpLinkProgram is the link-view ARP classifier: accept only ARP REPLY
// frames, drop everything else (ARP REQUEST included).
func arpLinkProgram() []bpf.Instruction {
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(EtherTypeARP), SkipTrue: 0, SkipFalse: 3},
		bpf.LoadAbsolute{Off: 20, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: arpOpReply, SkipTrue: 0, SkipFalse: 1},
		bpf.RetConstant{Val: 0xFFFFFFFF},
		bpf.RetConstant{Val: 0},
	}
}

// patchForCookedCapture adjusts a link-view program for delivery on a
// cooked (L3) raw socket: the EtherType comparison is neutralized (its
// mismatch branch no longer drops, since a cooked capture carries no
// Ethernet header to compare) and every subsequent absolute/indirect/MSH
// load offset is shifted back by ethHeaderLen. This mirrors the one-time,
// idempotent patch described in spec.md §4.C/§9, but as a pure
// transformation over an immutable copy rather than in-place mutation of
// a shared program.
func patchForCookedCapture(prog []bpf.Instruction) []bpf.Instruction {
	out := make([]bpf.Instruction, len(prog))
	copy(out, prog)

	if j, ok := out[1].(bpf.JumpIf); ok {
		j.SkipFalse = 0
		out[1] = j
	}

	for i := 2; i < len(out); i++ {
		switch insn := out[i].(type) {
		case bpf.LoadAbsolute:
			insn.Off -= ethHeaderLen
			out[i] = insn
		case bpf.LoadIndirect:
			insn.Off -= ethHeaderLen
			out[i] = insn
		case bpf.LoadMemShift:
			insn.Off -= ethHeaderLen
			out[i] = insn
		}
	}
	return out
}

// dhcpCookedProgram and arpCookedProgram are the immutable, pre-patched
// classifier programs installed on every DHCP/ARP capture. Computed once
// at package initialization, per spec.md §4.C.
var (
	dhcpCookedProgram = patchForCookedCapture(dhcpLinkProgram())
	arpCookedProgram  = patchForCookedCapture(arpLinkProgram())
)

// FilterFor assembles the raw BPF instructions for ethertype, ready to be
// installed via SO_ATTACH_FILTER.
func FilterFor(ethertype EtherType) ([]bpf.RawInstruction, error) {
	var prog []bpf.Instruction
	switch ethertype {
	case EtherTypeIP:
		prog = dhcpCookedProgram
	case EtherTypeARP:
		prog = arpCookedProgram
	default:
		return nil, errUnsupportedEtherType
	}
	return bpf.Assemble(prog)
}
