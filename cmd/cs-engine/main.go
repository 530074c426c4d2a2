// cs-engine consumes captured segments from NATS, runs the processing
// pipeline, and serves the HTTP query surface.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"CombatSpectra/internal/api"
	"CombatSpectra/internal/config"
	"CombatSpectra/internal/engine"
	"CombatSpectra/internal/history"
	"CombatSpectra/internal/model"
	"CombatSpectra/internal/pipeline"
	"CombatSpectra/internal/probe"
	"CombatSpectra/internal/reassembly"
	"CombatSpectra/internal/report"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file.")
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

	meter := engine.NewMeter()
	pipe := pipeline.New(meter, reassembly.Config{
		FlowIdleTimeout:      cfg.Reassembly.FlowIdleTimeout.Std(),
		GapTimeout:           cfg.Reassembly.GapTimeout.Std(),
		MaxBufferedPerStream: cfg.Reassembly.MaxBufferedPerStream,
	}, 0)
	pipe.Start()

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

	sub, err := probe.NewSubscriber(cfg.Probe)
	if err != nil {
		logrus.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	input := pipe.Input()
	if err := sub.Start(func(seg *model.Segment) {
		input <- seg
	}); err != nil {
		logrus.Fatalf("Failed to subscribe: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logrus.Info("Shutdown signal received, cleaning up...")

	// Close drains the subscription and returns only after in-flight
	// handlers stopped feeding the pipeline; Stop may then close its input.
	sub.Close()
	pipe.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.Warnf("API server forced to shut down: %v", err)
	}
}
