// cs-meter is the all-in-one binary: it selects a capture interface, runs
// the capture-to-metrics pipeline, and serves the HTTP query surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"CombatSpectra/internal/api"
	"CombatSpectra/internal/capture"
	"CombatSpectra/internal/config"
	"CombatSpectra/internal/engine"
	"CombatSpectra/internal/history"
	"CombatSpectra/internal/pipeline"
	"CombatSpectra/internal/reassembly"
	"CombatSpectra/internal/report"
)

func reassemblyConfig(cfg *config.Config) reassembly.Config {
	return reassembly.Config{
		FlowIdleTimeout:      cfg.Reassembly.FlowIdleTimeout.Std(),
		GapTimeout:           cfg.Reassembly.GapTimeout.Std(),
		MaxBufferedPerStream: cfg.Reassembly.MaxBufferedPerStream,
	}
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file.")
	device := flag.Int("device", -2, "Capture device index; -1 for auto-detection (overrides config).")
	level := flag.String("level", "info", "Log level: debug, info, warn, error.")
	list := flag.Bool("list", false, "List capture devices and exit.")
	flag.Parse()

	lvl, err := logrus.ParseLevel(*level)
	if err != nil {
		logrus.Fatalf("Invalid log level %q: %v", *level, err)
	}
	logrus.SetLevel(lvl)

	if *list {
		listDevices()
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Warnf("Failed to load config (%v), continuing with defaults", err)
		cfg = config.Default()
	}
	if *device >= -1 {
		cfg.Capture.DeviceIndex = *device
	}

	// 1. Resolve the capture device. No device is fatal: there is nothing
	// to capture from.
	deviceName, err := capture.SelectDevice(cfg.Capture.DeviceIndex, cfg.Capture.SampleWindow.Std())
	if err != nil {
		logrus.Fatalf("Failed to select capture device: %v", err)
	}
	logrus.Infof("Using capture device %s", deviceName)

	src, err := capture.Open(deviceName, cfg.Capture.BPFFilter, cfg.Capture.SnapshotLen, cfg.Capture.Promiscuous)
	if err != nil {
		logrus.Fatalf("Failed to open capture device: %v", err)
	}
	defer src.Close()

	// 2. Build the pipeline around a fresh meter.
	meter := engine.NewMeter()
	pipe := pipeline.New(meter, reassemblyConfig(cfg), 0)
	pipe.Start()

	// 3. Wire the battle sinks and the query surface.
	var sinks []api.BattleSink
	var querier api.HistoryQuerier
	if cfg.History.Enabled {
		writer, err := history.NewClickHouseWriter(cfg.History)
		if err != nil {
			logrus.Warnf("Battle history disabled: %v", err)
		} else {
			sinks = append(sinks, writer)
			querier = writer
		}
	}
	if cfg.Report.Enabled && cfg.Report.Endpoint != "" {
		sinks = append(sinks, report.NewUploader(
			cfg.Report.Endpoint, cfg.Report.MaxRetries,
			cfg.Report.BaseBackoff.Std(), cfg.Report.MaxBackoff.Std(), cfg.Report.Timeout.Std()))
	}

	server := api.NewServer(cfg.API.ListenAddr, meter, sinks, querier)
	go func() {
		if err := server.Start(); err != nil {
			logrus.Fatalf("API server failed: %v", err)
		}
	}()

	// 4. Capture until shutdown.
	captureDone := make(chan struct{})
	go func() {
		src.Run(pipe.Input())
		close(captureDone)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logrus.Info("Shutdown signal received, cleaning up...")

	// The capture goroutine keeps feeding buffered packets after Close; the
	// pipeline input must stay open until it returns.
	src.Close()
	<-captureDone
	pipe.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.Warnf("API server forced to shut down: %v", err)
	}

	stats := pipe.Stats()
	logrus.Infof("Done: %d segments, %d events applied, %d unknown frames, %d decode errors",
		stats.SegmentsFed, stats.EventsApplied, stats.UnknownFrames, stats.DecodeErrors)
}

func listDevices() {
	devs, err := capture.ListDevices()
	if err != nil {
		logrus.Fatalf("Failed to list devices: %v", err)
	}
	for i, dev := range devs {
		desc := dev.Description
		if desc == "" {
			desc = "(no description)"
		}
		fmt.Printf("[%d] %s  %s\n", i, dev.Name, desc)
	}
}
