// Package main is the ledgerd operator tool.
//
// Usage:
//
//	ledgerd migrate
//	ledgerd audit
//	ledgerd overdue [--as-of 2026-06-30]
//	ledgerd preview-schedule --total 120000 --down 20000 --count 10 [--contract <uuid>]
//	ledgerd outbox-relay [--follow] [--interval 5s]
//	ledgerd partner-ledger --partner <uuid> [--from 2026-01-01] [--to 2026-12-31]
//	ledgerd broker-outstanding --broker <uuid>
//	ledgerd history --entity Safe --id <uuid> [--limit 20]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"estateledger/internal/core/apperror"
	"estateledger/internal/platform/config"
	"estateledger/pkg/logger"
)

// exitMismatch is returned by audit when balances disagree.
const exitMismatch = 2

type command func(ctx context.Context, cfg *config.Config, args []string) error

var commands = map[string]command{
	"migrate":            runMigrate,
	"audit":              runAudit,
	"overdue":            runOverdue,
	"preview-schedule":   runPreview,
	"outbox-relay":       runOutboxRelay,
	"partner-ledger":     runPartnerLedger,
	"broker-outstanding": runBrokerOutstanding,
	"history":            runHistory,
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	name := os.Args[1]
	if name == "help" || name == "--help" || name == "-h" {
		printUsage()
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment,
		OutputPaths: []string{"stderr"},
		Service:     "ledgerd",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log.WithComponent("ledgerd"))
	ctx = logger.WithFields(ctx, "command", name)

	if err := cmd(ctx, cfg, os.Args[2:]); err != nil {
		logger.Error(ctx, "command failed", "error", err)
		if apperror.IsDataIntegrityMismatch(err) {
			os.Exit(exitMismatch)
		}
		if !errors.Is(err, context.Canceled) {
			os.Exit(1)
		}
	}
}

func printUsage() {
	fmt.Println(`ledgerd - real-estate ledger operator tool

Commands:
  migrate             Apply database migrations
  audit               Compare cached safe balances with their movements
  overdue             Mark pending installments due before --as-of as overdue
  preview-schedule    Print the installment plan for the given terms
  outbox-relay        Deliver pending outbox events to the log
  partner-ledger      Print a partner's daily ledger
  broker-outstanding  Print a broker's unpaid commission
  history             Print the audit journal of one entity

Configuration is read from the environment (and .env):
  DATABASE_URL, DB_MAX_CONNS, DB_MIN_CONNS, LOG_LEVEL, APP_ENV,
  SCHEDULE_DATE_POLICY, SCHEDULE_REMAINDER_POLICY, PERCENT_TOLERANCE,
  VOUCHER_NUMBERING, DB_LOG_QUERIES`)
}
