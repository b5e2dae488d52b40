// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command gpopd is the pipeline daemon entrypoint: flag/env configuration,
// framework initialization, transport wiring, and graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gpopd/gpopd/internal/config"
	"github.com/gpopd/gpopd/internal/event"
	"github.com/gpopd/gpopd/internal/gst"
	xglog "github.com/gpopd/gpopd/internal/log"
	"github.com/gpopd/gpopd/internal/manager"
	"github.com/gpopd/gpopd/internal/transport/dbus"
	"github.com/gpopd/gpopd/internal/transport/jsonrpc"
	"github.com/gpopd/gpopd/internal/version"
)

// shutdownTimeout bounds how long the HTTP listener is given to drain
// in-flight connections once a shutdown signal arrives.
const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	xglog.Configure(xglog.Config{Level: "info", Service: "gpopd", Version: version.Version})
	logger := xglog.WithComponent("main")

	if cfg.NoDBus && cfg.NoWebSocket && !cfg.Playback {
		logger.Error().Msg("both transports disabled and not in playback mode; nothing for the daemon to do")
		return 1
	}

	gst.Init()
	logger.Info().
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("built", version.Date).
		Str("gstreamer", gst.RuntimeVersion()).
		Msg("starting gpopd")

	bus := event.NewBroadcast()
	m := manager.New(cfg.MaxPipelines, bus)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ids := make([]string, 0, len(cfg.InitialPipelines))
	initialCode := manager.ExitOK
	for _, desc := range cfg.InitialPipelines {
		id, err := m.AddPipeline(desc)
		if err != nil {
			logger.Error().Err(err).Str("description", desc).Msg("failed to create initial pipeline")
			if errors.Is(err, gst.ErrMediaNotSupported) {
				initialCode = worseExitCode(initialCode, manager.ExitUnsupported)
			} else {
				initialCode = worseExitCode(initialCode, manager.ExitError)
			}
			continue
		}
		ids = append(ids, id)
	}

	if cfg.Playback {
		code := manager.RunPlayback(ctx, m, ids)
		m.Shutdown()
		return worseExitCode(code, initialCode)
	}

	return runDaemon(ctx, cfg, m, logger)
}

// worseExitCode combines two playback exit codes: a hard error outranks
// unsupported media, which outranks a clean run.
func worseExitCode(a, b int) int {
	if a == manager.ExitError || b == manager.ExitError {
		return manager.ExitError
	}
	if a == manager.ExitUnsupported || b == manager.ExitUnsupported {
		return manager.ExitUnsupported
	}
	return manager.ExitOK
}

// runDaemon starts the configured transports and blocks until a shutdown
// signal arrives or the WebSocket listener fails, then drains them in
// bounded time.
func runDaemon(ctx context.Context, cfg config.Config, m *manager.Manager, logger zerolog.Logger) int {
	var dbusServer *dbus.Server
	if !cfg.NoDBus {
		srv, err := dbus.NewServer(m)
		if err != nil {
			logger.Warn().Err(err).Msg("session-bus transport unavailable, continuing without it")
		} else {
			dbusServer = srv
			dbusCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go dbusServer.Run(dbusCtx)
			logger.Info().Str("name", dbus.ServiceName).Msg("session-bus transport registered")
		}
	}

	var httpServer *http.Server
	errCh := make(chan error, 1)
	if !cfg.NoWebSocket {
		router := chi.NewRouter()
		ws := jsonrpc.NewServer(m, cfg.APIKey, cfg.AllowedOrigins)
		router.Mount("/", ws.Router())
		router.Handle("/metrics", promhttp.Handler())

		addr := net.JoinHostPort(cfg.Bind, strconv.Itoa(cfg.Port))
		httpServer = &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info().Str("addr", addr).Msg("JSON-RPC/WebSocket transport listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("websocket server: %w", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("transport failed, shutting down")
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("websocket server shutdown did not complete cleanly")
		}
	}
	if dbusServer != nil {
		if err := dbusServer.Close(); err != nil {
			logger.Warn().Err(err).Msg("session-bus connection did not close cleanly")
		}
	}

	m.Shutdown()
	logger.Info().Msg("gpopd stopped")
	return 0
}
