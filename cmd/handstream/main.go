package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omochice/handstream/internal/config"
	"github.com/omochice/handstream/internal/link"
	"github.com/omochice/handstream/internal/observability"
	"github.com/omochice/handstream/internal/source"
	"github.com/omochice/handstream/internal/stream"
	"github.com/omochice/handstream/pkg/wire"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	serverURL := flag.String("server", "", "Robot-control server address (e.g. ws://localhost:8080), overrides config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.Server.URL = *serverURL
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.InitLogger("handstream", cfg.Log.Level)

	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.MetricsHandler())
			logger.Info().Str("addr", cfg.Metrics.Addr).Msg("serving metrics")
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	mgr := link.NewManager(link.Config{
		URL:            cfg.Server.URL,
		ReconnectDelay: cfg.Server.ReconnectDelay,
	}, logger)
	defer mgr.Close()

	subID := mgr.Subscribe(func(msg wire.Message) {
		logger.Info().Str("text", msg.Text).Msg("message from server")
	})
	defer mgr.Unsubscribe(subID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mgr.Connect(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial connect failed, retrying in background")
	}

	// The real hand-tracking source is external; stand in with a
	// synthetic oscillating vector of the matching shape.
	vecLen := 17
	if cfg.Stream.Tag == wire.TagRelativeHands {
		vecLen = 44
	}
	src := source.Oscillator(vecLen, 4*time.Second)

	streamer := stream.NewStreamer(src, mgr, stream.Config{
		Tag: cfg.Stream.Tag,
		Hz:  cfg.Stream.Hz,
	}, logger)
	defer streamer.Close()

	if err := streamer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("streaming loop failed")
	}
	logger.Info().Msg("shutting down")
}
