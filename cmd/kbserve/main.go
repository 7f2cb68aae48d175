// Command kbserve runs the async dump-ingest service: operators POST a dump
// URL or upload a dump file, poll the returned job, and read recent runs
// from the ledger. The sync config supplies everything but the dump source;
// each job carries its own.
//
// Configuration comes from the environment (a local .env file is loaded
// first when present):
//
//	KBSERVE_ADDR              listen address (default :8090)
//	KBSERVE_TOKEN             bearer token for write endpoints (empty = open)
//	KBSERVE_MAX_UPLOAD_BYTES  upload cap (default 256 MiB)
//	KBSERVE_WORKERS           concurrent jobs (default 2)
//	KBSERVE_QUEUE_SIZE        pending job cap (default 32)
//	KBSERVE_JOB_TTL           finished-job retention (default 1h)
//	KBSERVE_CONFIG            sync config path (default configs/sync.json)
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kbsync/internal/api"
	"kbsync/internal/config"
	"kbsync/internal/ledger"
	"kbsync/internal/pipeline"

	// register all ledger backends with the factory.
	// config selects which one to use, but support for all is built in.
	_ "kbsync/internal/ledger/all"
)

type serveConfig struct {
	Addr           string
	Token          string
	MaxUploadBytes int64
	Workers        int
	QueueSize      int
	JobTTL         time.Duration
	ConfigPath     string
}

func configFromEnv() serveConfig {
	return serveConfig{
		Addr:           envOr("KBSERVE_ADDR", ":8090"),
		Token:          os.Getenv("KBSERVE_TOKEN"),
		MaxUploadBytes: envInt64("KBSERVE_MAX_UPLOAD_BYTES", 0),
		Workers:        envInt("KBSERVE_WORKERS", 2),
		QueueSize:      envInt("KBSERVE_QUEUE_SIZE", 32),
		JobTTL:         envDuration("KBSERVE_JOB_TTL", time.Hour),
		ConfigPath:     envOr("KBSERVE_CONFIG", "configs/sync.json"),
	}
}

func main() {
	if err := godotenv.Overload(); err == nil {
		log.Printf("loaded .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, configFromEnv(), nil, os.Stderr))
}

// run wires the service and serves until ctx is canceled. The listener is
// a test seam: nil means listen on cfg.Addr.
//
// It returns a Unix-style exit code:
//   - 0 for a clean shutdown
//   - 1 when the server stopped on its own error
//   - 2 for configuration/initialization errors
func run(ctx context.Context, cfg serveConfig, ln net.Listener, stderr io.Writer) int {
	logger := log.New(stderr, "", log.LstdFlags)

	syncCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	issues := config.ValidateServe(syncCfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		fmt.Fprintf(stderr, "configuration is invalid: %s\n", cfg.ConfigPath)
		return 2
	}

	// Jobs carry their own URL; the source block only tunes the HTTP client.
	syncCfg.Source.Kind = "http"
	if syncCfg.Source.HTTP == nil {
		syncCfg.Source.HTTP = &config.HTTPSource{}
	}

	runner := pipeline.NewRunner(syncCfg, logger)

	var store ledger.Store
	if syncCfg.Ledger.Kind != "" {
		store, err = ledger.New(ctx, ledger.Config{
			Kind:    syncCfg.Ledger.Kind,
			DSN:     syncCfg.Ledger.DSN,
			Table:   syncCfg.Ledger.Table,
			Options: syncCfg.Ledger.Options,
		})
		if err != nil {
			fmt.Fprintf(stderr, "ledger: %v\n", err)
			return 2
		}
		defer func() { _ = store.Close() }()
		if err := store.Init(ctx); err != nil {
			fmt.Fprintf(stderr, "ledger init: %v\n", err)
			return 2
		}
		runner.Ledger = store
	}

	orch := pipeline.NewOrchestrator(runner, pipeline.OrchestratorConfig{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
		JobTTL:    cfg.JobTTL,
	}, logger)
	orch.Start(ctx)

	srv := api.NewServer(orch, store, logger, api.Config{
		Token:          cfg.Token,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	if ln == nil {
		ln, err = net.Listen("tcp", cfg.Addr)
		if err != nil {
			orch.Stop()
			fmt.Fprintf(stderr, "listen: %v\n", err)
			return 2
		}
	}

	httpServer := &http.Server{
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Serve(ln) }()
	logger.Printf("kbserve listening on %s", ln.Addr())

	select {
	case <-ctx.Done():
		logger.Printf("shutting down")
		// Stop accepting requests before closing the queue so in-flight
		// submits cannot hit a closed channel.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
		orch.Stop()
		<-errCh
		return 0
	case err := <-errCh:
		logger.Printf("server error: %v", err)
		orch.Stop()
		return 1
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
