package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"account_ledger/internal/auth"
	"account_ledger/internal/config"
	"account_ledger/internal/console"
	"account_ledger/internal/domain"
	"account_ledger/internal/processor"
	"account_ledger/internal/repository/file"
	"account_ledger/internal/repository/memory"
	"account_ledger/pkg/crypto"
	"account_ledger/pkg/metrics"
)

const (
	appName = "account_ledger"
)

func main() {
	cfg := config.Load(slog.Default())
	logger := setupLogger(cfg.LogLevel)
	logger.Info("Starting application",
		slog.String("name", appName),
		slog.String("data_file", cfg.DataFile),
		slog.String("log_file", cfg.LogFile),
		slog.Int("max_accounts", cfg.MaxAccounts))

	ctx := context.Background()
	metricsCollector := metrics.NewMetricsCollector()
	accounts := memory.NewAccountRepository(cfg.MaxAccounts)
	snapshots := file.NewSnapshotStore(cfg.DataFile, setupSigner(cfg, logger), logger, snapshotOptions(cfg)...)
	auditLog := file.NewAuditLog(cfg.LogFile)

	ledger := processor.NewLedger(accounts, snapshots, auditLog, logger,
		processor.WithMetrics(metricsCollector))
	authenticator := auth.NewAuthenticator(accounts, auditLog, cfg.MaxLoginAttempts, metricsCollector, logger)

	n, err := ledger.Restore(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotCorrupt) {
			logger.Error("Snapshot is corrupt, refusing to start",
				slog.String("path", cfg.DataFile),
				slog.String("error", err.Error()))
		} else {
			logger.Error("Snapshot could not be read",
				slog.String("path", cfg.DataFile),
				slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
	logger.Info("Accounts loaded", slog.Int("accounts", n))

	go waitForSignal(ctx, logger, ledger, metricsCollector, cfg.MetricsFile)

	if err := console.New(ledger, authenticator, os.Stdin, os.Stdout, logger).Run(ctx); err != nil {
		logger.Error("Console stopped", slog.String("error", err.Error()))
		writeMetrics(logger, metricsCollector, cfg.MetricsFile)
		os.Exit(1)
	}

	writeMetrics(logger, metricsCollector, cfg.MetricsFile)
	logger.Info("Application shutdown complete")
}

func setupLogger(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func setupSigner(cfg config.Config, logger *slog.Logger) *crypto.Signer {
	if cfg.SnapshotKey == "" {
		return nil
	}
	return crypto.NewSigner(cfg.SnapshotKey, logger)
}

func snapshotOptions(cfg config.Config) []file.SnapshotOption {
	var opts []file.SnapshotOption
	if cfg.AllowUnsignedSnapshot {
		opts = append(opts, file.AllowUnsigned())
	}
	return opts
}

func writeMetrics(logger *slog.Logger, m *metrics.MetricsCollector, path string) {
	if path == "" {
		return
	}
	if err := m.WriteTextfile(path); err != nil {
		logger.Error("Failed to write metrics textfile",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	logger.Info("Metrics written", slog.String("path", path))
}

// waitForSignal saves the snapshot when the process is interrupted mid-session.
func waitForSignal(
	ctx context.Context,
	logger *slog.Logger,
	ledger *processor.Ledger,
	metricsCollector *metrics.MetricsCollector,
	metricsFile string,
) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("Shutdown signal received")

	if err := ledger.Save(ctx); err != nil {
		logger.Error("Final snapshot save failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	writeMetrics(logger, metricsCollector, metricsFile)
	os.Exit(0)
}
