//go:build linux

// Command dhcp4capd is a minimal demonstration daemon wiring the link-layer
// transport in internal/linklayer together with the DHCP and ARP client
// adapters and a trivial logging FSM. Grounded on
// cmd/doublezerod/main.go's flag/slog/prometheus wiring idiom.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netraw/dhcp4link/internal/arp"
	"github.com/netraw/dhcp4link/internal/dhcp4"
	"github.com/netraw/dhcp4link/internal/eventloop"
	"github.com/netraw/dhcp4link/internal/ifinfo"
	"github.com/netraw/dhcp4link/internal/linklayer"
)

var (
	ifaceName      = flag.String("iface", "", "interface to bind DHCP/ARP captures to")
	enableARP      = flag.Bool("arp", true, "open an ARP REPLY capture on iface after the DHCP one; a device holds one capture at a time, so this replaces the DHCP capture")
	verboseLogging = flag.Bool("v", false, "enable debug logging, including gopacket frame decodes")
	metricsAddr    = flag.String("metrics-addr", "localhost:9104", "address to serve prometheus metrics on")

	version = "dev"
)

func main() {
	flag.Parse()

	opts := &slog.HandlerOptions{}
	if *verboseLogging {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	if *ifaceName == "" {
		slog.Error("-iface is required")
		os.Exit(1)
	}

	if err := run(logger); err != nil {
		slog.Error("dhcp4capd exited", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	info, err := ifinfo.Resolve(*ifaceName)
	if err != nil {
		return fmt.Errorf("resolve interface: %w", err)
	}

	dev := &linklayer.Device{ListenFD: -1}
	info.ApplyTo(dev)

	loop, err := eventloop.New()
	if err != nil {
		return fmt.Errorf("new event loop: %w", err)
	}
	defer loop.Close()

	fsm := &loggingFSM{logger: logger}

	if _, err := dhcp4.Open(dev, loop, fsm); err != nil {
		return fmt.Errorf("open dhcp capture on %s: %w", dev.IfName, err)
	}
	if *enableARP {
		if _, err := arp.Open(dev, loop, fsm); err != nil {
			return fmt.Errorf("open arp capture on %s: %w", dev.IfName, err)
		}
	}

	go serveMetrics(logger, *metricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("dhcp4capd started", "iface", dev.IfName, "ifindex", dev.IfIndex, "version", version)
	return loop.Run(ctx)
}

func serveMetrics(logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", "addr", addr, "err", err)
	}
}

// loggingFSM is a trivial fsmapi.FSM that only logs events; a real caller
// supplies its own state machine.
type loggingFSM struct {
	logger *slog.Logger
}

func (f *loggingFSM) ProcessDHCPPacket(dev *linklayer.Device, payload []byte) {
	linklayer.LogFrame(f.logger, linklayer.EtherTypeIP, payload)
	f.logger.Info("dhcp4capd: dhcp payload received", "ifindex", dev.IfIndex, "bytes", len(payload))
}

func (f *loggingFSM) ProcessARPPacket(dev *linklayer.Device, frame []byte) {
	linklayer.LogFrame(f.logger, linklayer.EtherTypeARP, frame)
	f.logger.Info("dhcp4capd: arp reply received", "ifindex", dev.IfIndex, "bytes", len(frame))
}

func (f *loggingFSM) Retransmit(dev *linklayer.Device) {
	f.logger.Info("dhcp4capd: retransmit deadline fired", "ifindex", dev.IfIndex)
}
