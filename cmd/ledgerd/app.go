package main

import (
	"context"
	"fmt"

	"estateledger/internal/domain/broker"
	"estateledger/internal/domain/events"
	"estateledger/internal/domain/partner"
	"estateledger/internal/domain/safe"
	"estateledger/internal/domain/schedule"
	"estateledger/internal/infrastructure/storage/postgres"
	"estateledger/internal/infrastructure/storage/postgres/ledger_repo"
	"estateledger/internal/platform/config"
	"estateledger/pkg/numerator"
)

// app wires the PostgreSQL repositories into the domain services.
type app struct {
	pool      *postgres.Pool
	txManager *postgres.TxManager

	contracts *ledger_repo.ContractRepo
	journal   *postgres.AuditJournal

	reconciler *safe.Reconciler
	schedules  *schedule.Service
	partners   *partner.Service
	brokers    *broker.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	poolCfg.LogQueries = cfg.DBLogQueries
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	opts := postgres.DefaultTxOptions()
	opts.StatementTimeout = cfg.StatementTimeout
	opts.LockTimeout = cfg.LockTimeout
	tm := postgres.NewTxManager(pool).WithOptions(opts)

	journal, err := postgres.NewAuditJournal(tm, cfg.AuditCompressThreshold)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit journal: %w", err)
	}
	publisher := events.Fanout{postgres.NewOutboxPublisher(tm), journal}

	// The numerator queries through the tx manager, so numbers are taken
	// inside the business transaction and roll back with it.
	numbers := numerator.New(tm, numerator.Options{Strategy: cfg.Numbering})

	contracts := ledger_repo.NewContractRepo(tm)
	reconciler := safe.NewReconciler(
		ledger_repo.NewSafeRepo(tm),
		ledger_repo.NewVoucherRepo(tm),
		ledger_repo.NewTransferRepo(tm),
		tm, tm, numbers, publisher,
	)

	return &app{
		pool:       pool,
		txManager:  tm,
		contracts:  contracts,
		journal:    journal,
		reconciler: reconciler,
		schedules: schedule.NewService(contracts, ledger_repo.NewInstallmentRepo(tm), reconciler,
			tm, tm, publisher, cfg.Schedule),
		partners: partner.NewService(ledger_repo.NewPartnerRepo(tm), ledger_repo.NewTransactionRepo(tm),
			tm, tm, cfg.PercentTolerance),
		brokers: broker.NewService(ledger_repo.NewBrokerRepo(tm), contracts, reconciler,
			tm, tm, numbers, cfg.Schedule),
	}, nil
}

func (a *app) Close(ctx context.Context) {
	postgres.LogPoolStats(ctx, a.pool)
	a.pool.Close()
}
