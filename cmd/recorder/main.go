// Market Data Recorder — subscribes to a venue's order-level feed and writes
// one record per tick to disk.
//
// Architecture:
//
//	main.go                    — entry point: config, logging, supervisor wiring
//	app/app.go                 — supervisor: interrupt handling, graceful shutdown
//	feed/gateway.go            — sequenced feed gateway: socket, gap detection, recovery
//	feed/handler.go            — per-instrument event handler over the order-based book
//	feed/recovery.go           — REST snapshot fetch + live-message replay
//	feed/subscriber.go         — conflating consumer endpoint (latest book, all trades)
//	book/book.go               — order-based limit order book
//	recorder/recorder.go       — NDJSON / msgpack tick writer
//	orderentry/client.go       — private REST client (orders, fills, balances)
//
// The recorder keeps a continuously correct book per instrument: every
// resting order is tracked by id, sequence gaps trigger snapshot recovery,
// and each written record carries the book, the trades since the previous
// record, and a health status so downstream readers can tell clean data from
// data observed during recovery.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gdax-feed/internal/app"
	"gdax-feed/internal/config"
	"gdax-feed/internal/feed"
	"gdax-feed/internal/recorder"
	"gdax-feed/pkg/md"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("FEED_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	var metrics *feed.Metrics
	if cfg.Metrics.Enabled {
		metrics = feed.NewMetrics(prometheus.DefaultRegisterer)
	}

	gw := feed.NewGateway(cfg.Venue.FeedWSURL(), cfg.Venue.FeedRESTURL(), metrics, logger)

	supervisor := app.New("recorder", logger)
	supervisor.AddRunCallback(gw.Run, gw.RequestShutdown)

	recOpts := recorder.Options{
		OutputDir: cfg.Recorder.OutputDir,
		Interval:  cfg.Recorder.Interval,
		Depth:     cfg.Recorder.Depth,
		Format:    recorder.Format(cfg.Recorder.Format),
	}
	if recOpts.Format == "" {
		recOpts.Format = recorder.FormatJSON
	}

	for _, product := range cfg.Products {
		instrument, err := md.ParseInstrument(product)
		if err != nil {
			logger.Error("invalid product", "product", product, "error", err)
			os.Exit(1)
		}
		sub := feed.NewSubscriber(gw, instrument, logger)
		rec, err := recorder.New(sub, instrument, recOpts, logger)
		if err != nil {
			logger.Error("failed to create recorder", "product", product, "error", err)
			os.Exit(1)
		}
		supervisor.AddRunCallback(rec.Run, nil)
	}

	if cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logger.Info("metrics listening", "addr", addr)
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Info("market data recorder started",
		"products", cfg.Products,
		"sandbox", cfg.Venue.Sandbox,
	)

	if err := supervisor.Run(); err != nil {
		logger.Error("exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
