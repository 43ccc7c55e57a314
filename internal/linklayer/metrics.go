package linklayer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DropReason labels why ValidateAndStrip rejected an ingress frame, for the
// PacketsDropped counter below.
type DropReason string

const (
	DropReasonShort          DropReason = "short"
	DropReasonVersion        DropReason = "bad_version"
	DropReasonTotalLen       DropReason = "bad_total_length"
	DropReasonIPChecksum     DropReason = "bad_ip_checksum"
	DropReasonNotUDP         DropReason = "not_udp"
	DropReasonShortUDP       DropReason = "short_udp"
	DropReasonUDPChecksum    DropReason = "bad_udp_checksum"
)

var (
	PacketsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhcp4link_packets_sent_total",
		Help: "Total packets broadcast through a raw capture, by ethertype.",
	}, []string{"ethertype"})

	PacketsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhcp4link_packets_received_total",
		Help: "Total packets read off a raw capture, before ingress validation, by ethertype.",
	}, []string{"ethertype"})

	PacketsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhcp4link_packets_dropped_total",
		Help: "Total ingress packets rejected by header validation, by reason.",
	}, []string{"reason"})

	CaptureErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhcp4link_capture_errors_total",
		Help: "Total raw-socket errors observed on a capture, by ifindex and ethertype.",
	}, []string{"ifindex", "ethertype"})

	CapturesOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dhcp4link_captures_open",
		Help: "Currently open raw captures, by ethertype.",
	}, []string{"ethertype"})
)
