// cs-probe captures TCP segments on one host and publishes them to NATS for
// a remote cs-engine to process.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"CombatSpectra/internal/capture"
	"CombatSpectra/internal/config"
	"CombatSpectra/internal/model"
	"CombatSpectra/internal/probe"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file.")
	device := flag.Int("device", -2, "Capture device index; -1 for auto-detection (overrides config).")
	level := flag.String("level", "info", "Log level: debug, info, warn, error.")
	flag.Parse()

	lvl, err := logrus.ParseLevel(*level)
	if err != nil {
		logrus.Fatalf("Invalid log level %q: %v", *level, err)
	}
	logrus.SetLevel(lvl)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Warnf("Failed to load config (%v), continuing with defaults", err)
		cfg = config.Default()
	}
	if *device >= -1 {
		cfg.Capture.DeviceIndex = *device
	}

	deviceName, err := capture.SelectDevice(cfg.Capture.DeviceIndex, cfg.Capture.SampleWindow.Std())
	if err != nil {
		logrus.Fatalf("Failed to select capture device: %v", err)
	}
	logrus.Infof("Using capture device %s", deviceName)

	pub, err := probe.NewPublisher(cfg.Probe)
	if err != nil {
		logrus.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	src, err := capture.Open(deviceName, cfg.Capture.BPFFilter, cfg.Capture.SnapshotLen, cfg.Capture.Promiscuous)
	if err != nil {
		logrus.Fatalf("Failed to open capture device: %v", err)
	}
	defer src.Close()

	segCh := make(chan *model.Segment, 4096)
	go func() {
		src.Run(segCh)
		close(segCh)
	}()
	publishDone := make(chan struct{})
	go func() {
		defer close(publishDone)
		var published uint64
		for seg := range segCh {
			if err := pub.Publish(seg); err != nil {
				logrus.Warnf("Failed to publish segment: %v", err)
				continue
			}
			published++
			if published%100000 == 0 {
				logrus.Infof("%d segments published", published)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logrus.Info("Shutdown signal received, cleaning up...")

	// Stopping the capture ends Run, which closes segCh; wait for the
	// publish loop to flush what is buffered before the connection drains.
	src.Close()
	<-publishDone
}
