// Ticker — prints the top of book and trade count for one instrument as
// updates arrive. Mostly a smoke test for the feed pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gdax-feed/internal/feed"
	"gdax-feed/pkg/md"
)

func main() {
	var (
		wsURL      = flag.String("ws", "wss://ws-feed.gdax.com", "venue websocket endpoint")
		restURL    = flag.String("rest", "https://api.gdax.com", "venue REST endpoint")
		instrument = flag.String("instrument", "BTCUSD@GDAX", "instrument to follow")
		level      = flag.String("log", "warn", "log level")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(*level),
	}))

	inst, err := md.ParseInstrument(*instrument)
	if err != nil {
		logger.Error("invalid instrument", "error", err)
		os.Exit(1)
	}

	gw := feed.NewGateway(*wsURL, *restURL, nil, logger)
	sub := feed.NewSubscriber(gw, inst, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := gw.Run(ctx); err != nil {
			logger.Error("gateway failed", "error", err)
			stop()
		}
	}()

	for {
		u, err := sub.Fetch(ctx)
		if err != nil {
			return
		}
		fmt.Println(formatUpdate(u))
	}
}

func formatUpdate(u md.Update) string {
	line := fmt.Sprintf("[%d] %s %s", u.Book.Sequence, u.Instrument.String(), u.Status.String())
	if bid, ok := u.Book.BestBid(); ok {
		line += fmt.Sprintf("  bid %s x %s (%d)", bid.Price.String(), bid.Qty.String(), bid.Orders)
	} else {
		line += "  bid -"
	}
	if ask, ok := u.Book.BestAsk(); ok {
		line += fmt.Sprintf("  ask %s x %s (%d)", ask.Price.String(), ask.Qty.String(), ask.Orders)
	} else {
		line += "  ask -"
	}
	if len(u.Trades) > 0 {
		line += fmt.Sprintf("  %d trade(s)", len(u.Trades))
	}
	return line
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
