package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markgromer/titan-mcp-server/internal/api"
	"github.com/markgromer/titan-mcp-server/internal/audit"
	"github.com/markgromer/titan-mcp-server/internal/catalog"
	"github.com/markgromer/titan-mcp-server/internal/config"
	"github.com/markgromer/titan-mcp-server/internal/gateway"
	"github.com/markgromer/titan-mcp-server/internal/store/sqlite"
	"github.com/markgromer/titan-mcp-server/internal/titan"
)

const pruneInterval = time.Hour

func cmdServe(args []string) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cfg, args)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if dir := filepath.Dir(cfg.AuditDBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sqlite.New(ctx, cfg.AuditDBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	auditBus := audit.NewBus()
	auditor := audit.NewLogger(db, auditBus)

	client := titan.NewClient(cfg.APIBaseURL, cfg.APIToken, cfg.OrgID)
	cat := catalog.Titan()

	dispatcher := gateway.NewDispatcher(cat, client, auditor, cfg.EnableWrites)
	gw := gateway.NewServer(dispatcher, gateway.NewAuthorizer(cfg.BearerSecret), cfg.BasePath)

	router := api.NewRouter(api.RouterDeps{
		Gateway:  gw,
		BasePath: cfg.BasePath,
		Catalog:  cat,
		Store:    db,
		AuditBus: auditBus,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // SSE sessions stay open indefinitely
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() {
			slog.Info("http server listening",
				"addr", cfg.Addr, "endpoint", cfg.BasePath, "writes_enabled", cfg.EnableWrites)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()
		select {
		case <-ctx.Done():
			slog.Info("shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		}
	})

	g.Go(func() error {
		return runAuditPruner(ctx, db, cfg.AuditRetention)
	})

	return g.Wait()
}

// applyFlags parses --addr=X and --path=X overrides from the args list.
func applyFlags(cfg *config.Config, args []string) {
	for _, arg := range args {
		if v, ok := strings.CutPrefix(arg, "--addr="); ok {
			cfg.Addr = v
		}
		if v, ok := strings.CutPrefix(arg, "--path="); ok {
			cfg.BasePath = v
		}
	}
}

// runAuditPruner deletes audit records older than the retention window,
// once at startup and then hourly. A zero retention disables pruning.
func runAuditPruner(ctx context.Context, db *sqlite.DB, retention time.Duration) error {
	if retention <= 0 {
		slog.Info("audit pruning disabled")
		<-ctx.Done()
		return nil
	}

	prune := func() {
		cutoff := time.Now().Add(-retention)
		n, err := db.DeleteAuditRecordsBefore(ctx, cutoff)
		if err != nil {
			slog.Error("prune audit records", "error", err)
			return
		}
		if n > 0 {
			slog.Info("pruned audit records", "deleted", n, "cutoff", cutoff)
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			prune()
		}
	}
}
