package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/denzyldick/mediasafe/internal/config"
	"github.com/denzyldick/mediasafe/internal/logging"
	"github.com/denzyldick/mediasafe/internal/relay"
	"github.com/denzyldick/mediasafe/internal/server"
	"github.com/denzyldick/mediasafe/internal/version"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var opts config.RelayOptions
	pflag.StringVar(&opts.Addr, "addr", "", "Listen address (overrides --port)")
	pflag.StringVar(&opts.Port, "port", "", "Listen port (default 9489)")
	pflag.StringSliceVar(&opts.AllowedOrigins, "allowed-origins", nil, "Allowed WebSocket origins, empty allows any")
	pflag.Int64Var(&opts.MaxMessageSize, "max-message-size", 0, "Largest accepted frame in bytes")
	pflag.Float64Var(&opts.RateLimit, "rate-limit", 0, "Frames per second per connection, negative disables")
	pflag.IntVar(&opts.RateBurst, "rate-burst", 0, "Burst size for the per-connection rate limit")
	showVersion := pflag.BoolP("version", "v", false, "Print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(version.Version)
		return
	}

	log := logging.Init(slog.LevelInfo)

	cfg, err := config.LoadRelay(opts)
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("relay stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.RelayConfig, log *slog.Logger) error {
	registry := relay.NewRegistry(log)

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: server.NewRouter(registry, server.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			Relay: relay.Options{
				MaxMessageSize: cfg.MaxMessageSize,
				RateLimit:      cfg.RateLimit,
				RateBurst:      cfg.RateBurst,
			},
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting signaling relay", "addr", cfg.Addr, "version", version.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "rooms", registry.RoomCount())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown; closing
	// the registry ends their write pumps.
	registry.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
