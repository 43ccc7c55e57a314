package linklayer

import (
	"context"
	"log/slog"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// LogFrame decodes frame as an IPv4+UDP packet (ethertype IP) or ARP packet
// (ethertype ARP) purely for debug logging. It never informs control flow:
// the hot build/validate path in header.go is hand-rolled specifically so
// its bit-exact behavior does not depend on gopacket's decoding choices.
func LogFrame(logger *slog.Logger, ethertype EtherType, frame []byte) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	var firstLayer gopacket.LayerType
	switch ethertype {
	case EtherTypeIP:
		firstLayer = layers.LayerTypeIPv4
	case EtherTypeARP:
		firstLayer = layers.LayerTypeARP
	default:
		return
	}

	packet := gopacket.NewPacket(frame, firstLayer, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	if err := packet.ErrorLayer(); err != nil {
		logger.Debug("linklayer: frame decode error", "ethertype", ethertype, "err", err.Error())
		return
	}
	logger.Debug("linklayer: frame", "ethertype", ethertype, "layers", packet.String())
}
