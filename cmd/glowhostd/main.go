package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"glowhost/internal/config"
	"glowhost/internal/host"
	"glowhost/internal/httpapi"
	"glowhost/pkg/types"
)

func main() {
	defaultAddr := ":8080"
	if v := os.Getenv("GLOWHOSTD_ADDR"); v != "" {
		defaultAddr = v
	}
	addr := flag.String("addr", defaultAddr, "HTTP listen address, e.g. :8080")
	configPath := flag.String("config", "", "path to a .yaml/.json/.toml config file (devices + host tunables)")
	maxActive := flag.Int("max-active-requests", 0, "override the config's max_active_requests (0=use config/default)")
	maxQueue := flag.Int("max-queue-size", 0, "override the config's max_queue_size (0=use config/default)")
	flag.Parse()

	cfg := config.Config{Addr: *addr}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
		}
		cfg = loaded
		if *addr != defaultAddr {
			cfg.Addr = *addr
		}
	}
	if len(cfg.Devices) == 0 {
		cfg.Devices = []types.DeviceConfig{{BackendName: "CPU", MemoryBytes: 1 << 30}}
	}
	if *maxActive > 0 {
		cfg.MaxActiveRequests = *maxActive
	}
	if *maxQueue > 0 {
		cfg.MaxQueueSize = *maxQueue
	}

	logger := log.With().Str("component", "glowhostd").Logger()
	httpapi.SetLogger(logger)

	mgr, err := host.New(cfg.Devices, host.Config{
		ExecutorThreads:   cfg.ExecutorThreads,
		MaxActiveRequests: cfg.MaxActiveRequests,
		MaxQueueSize:      cfg.MaxQueueSize,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize host manager")
	}

	ctx, cancel := context.WithCancel(context.Background())
	httpapi.SetBaseContext(ctx)
	defer cancel()

	mux := httpapi.NewMux(mgr)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Int("devices", len(cfg.Devices)).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	if err := mgr.ClearHost(); err != nil {
		logger.Error().Err(err).Msg("clear_host during shutdown")
	}
}
