// Command forecaster serves single-step energy consumption forecasts.
//
// At startup the forecaster:
//  1. Reads the fitted scaler and the frozen model from the asset source
//  2. Runs a warmup forecast to prove both are loaded and consistent
//  3. Serves the HTTP API and, optionally, the gRPC API
//
// If step 1 or 2 fails the process exits with status 1 without opening a
// listener.
//
// The HTTP API listens on :8000 (configurable) and provides:
//   - GET / - Welcome message
//   - POST /predict - Forecast from {"recent_consumption": [<30 numbers>]}
//   - GET /healthz - Liveness check
//   - GET /readyz - Readiness check
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	forecaster \
//	  -model=lstm \
//	  -model-asset=models/smart_load_forecaster_model.json \
//	  -scaler-asset=models/scaler.json \
//	  -listen=:8000 -grpc-listen=:9000
//
// Environment variables:
//
//	CONFIG_FILE      - YAML config file
//	LISTEN           - HTTP listen address (default: :8000)
//	GRPC_LISTEN      - gRPC listen address (default: disabled)
//	ASSET_SOURCE     - file or redis (default: file)
//	MODEL_ASSET      - Model artifact path or Redis key
//	SCALER_ASSET     - Scaler artifact path or Redis key
//	MODEL            - lstm, baseline, or byom (default: lstm)
//	BYOM_URL         - External model server URL (model=byom)
//	REDIS_ADDR       - Redis address (asset-source=redis)
//	SHUTDOWN_TIMEOUT - Graceful shutdown timeout (default: 10s)
//	LOG_LEVEL        - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT       - Logging format: text, json (default: text)
package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/HatiCode/loadforecaster/cmd/forecaster/config"
	"github.com/HatiCode/loadforecaster/cmd/forecaster/logger"
	"github.com/HatiCode/loadforecaster/cmd/forecaster/metrics"
	"github.com/HatiCode/loadforecaster/cmd/forecaster/router"
	"github.com/HatiCode/loadforecaster/cmd/forecaster/rpc"
	"github.com/HatiCode/loadforecaster/pkg/httpx"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	logger.Info("starting smart load forecaster",
		"version", version,
		"model", cfg.Model,
		"asset_source", cfg.AssetSource,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, err := newAssetSource(cfg)
	if err != nil {
		logger.Error("failed to open asset source", "source", cfg.AssetSource, "error", err)
		os.Exit(1)
	}

	m := metrics.New(nil)

	p, err := Bootstrap(ctx, cfg, src, logger, m)
	if closer, ok := src.(io.Closer); ok {
		// assets are read once; the connection is not needed while serving
		if cerr := closer.Close(); cerr != nil {
			logger.Error("failed to close asset source", "error", cerr)
		}
	}
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	serverTLS, err := cfg.TLS.ServerConfig()
	if err != nil {
		logger.Error("failed to load TLS configuration", "error", err)
		os.Exit(1)
	}

	handler := httpx.Chain(router.SetupRoutes(p, m, logger),
		httpx.RecoveryMiddleware(logger),
		httpx.LoggingMiddleware(logger),
	)
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)

	serverErr := make(chan error, 2)
	go func() {
		if serverTLS != nil {
			httpServer.SetTLSConfig(serverTLS)
			serverErr <- httpServer.StartTLS("", "")
			return
		}
		serverErr <- httpServer.Start()
	}()

	var grpcServer *grpc.Server
	if cfg.GRPCListen != "" {
		var opts []grpc.ServerOption
		if serverTLS != nil {
			opts = append(opts, grpc.Creds(credentials.NewTLS(serverTLS)))
		}
		grpcServer = rpc.NewGRPCServer(p, m, logger, opts...)

		lis, err := net.Listen("tcp", cfg.GRPCListen)
		if err != nil {
			logger.Error("failed to listen for gRPC", "addr", cfg.GRPCListen, "error", err)
			os.Exit(1)
		}
		go func() {
			logger.Info("starting gRPC server", "addr", lis.Addr().String())
			serverErr <- grpcServer.Serve(lis)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")
	cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	if err := httpServer.Stop(cfg.ShutdownTimeout); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
