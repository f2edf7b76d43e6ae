// Command dbagentd runs the natural-language-to-database agent
// process: it loads configuration, wires storage, the connection
// pool, schema registry, session manager and pipeline, then serves
// the HTTP/WebSocket API (spec.md §6).
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nlquery/dbagent/pkg/api"
	"github.com/nlquery/dbagent/pkg/config"
	"github.com/nlquery/dbagent/pkg/dbendpoint"
	"github.com/nlquery/dbagent/pkg/llmclient"
	"github.com/nlquery/dbagent/pkg/memorystore"
	"github.com/nlquery/dbagent/pkg/pipeline"
	"github.com/nlquery/dbagent/pkg/pool"
	"github.com/nlquery/dbagent/pkg/schema"
	"github.com/nlquery/dbagent/pkg/session"
	"github.com/nlquery/dbagent/pkg/storage"
	"github.com/nlquery/dbagent/pkg/version"
	"github.com/nlquery/dbagent/pkg/wsevents"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("dbagentd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storageClient, err := storage.NewClient(ctx, storage.Config{
		DSN:             cfg.Storage.DSN(),
		MaxOpenConns:    cfg.Storage.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Storage.ConnMaxIdleTime,
	})
	if err != nil {
		return err
	}
	defer storageClient.DB.Close()

	sessionRepo := storage.NewSessionRepo(storageClient.DB)
	messageRepo := storage.NewMessageRepo(storageClient.DB)
	memoryRepo := storage.NewMemoryRepo(storageClient.DB)
	profileRepo := storage.NewProfileRepo(storageClient.DB)
	schemaRepo := storage.NewSchemaRegistryRepo(storageClient.DB)

	memory := memorystore.New(memoryRepo, profileRepo)
	registry := schema.NewRegistry(schemaRepo, cfg.SchemaTTL)

	dialers := map[dbendpoint.Kind]pool.Dialer{
		dbendpoint.KindSQLA:     pool.SQLADialer{MaxOpenConns: cfg.RelationalPoolMax},
		dbendpoint.KindSQLB:     pool.SQLBDialer{MaxOpenConns: cfg.RelationalPoolMax},
		dbendpoint.KindDocument: pool.MongoDialer{},
	}
	connPool := pool.New(dialers, cfg.PreflightTimeout)

	oracle := llmclient.NewHTTPOracle(cfg.LLMOracleURL, cfg.LLMTimeout)

	pipelineCfg := pipeline.Config{
		DefaultRowCap:    int64(cfg.DefaultRowCap),
		QueryTimeout:     cfg.QueryTimeout,
		PreflightTimeout: cfg.PreflightTimeout,
		RedactSQL:        cfg.RedactSQL,
	}
	p := pipeline.New(pipelineCfg, connPool, registry, memory, oracle, logger)

	sessionCfg := session.Config{
		MaxSessionsPerUser: cfg.MaxSessionsPerUser,
		IdleTimeout:        cfg.SessionIdleTimeout,
		ExpiryWindow:       cfg.SessionExpiry,
		SweepInterval:      30 * time.Minute,
	}
	sessionMgr := session.New(sessionRepo, messageRepo, p, sessionCfg, logger)
	sessionMgr.StartSweep(ctx)
	defer sessionMgr.StopSweep()

	hub := wsevents.New(sessionMgr, logger)

	server := api.NewServer(p, memory, hub, storageClient.DB, version.Full())

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dbagentd listening", "port", cfg.HTTPPort)
		if err := server.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
