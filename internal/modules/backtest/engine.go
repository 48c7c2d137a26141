// Package backtest wires a tick source, a strategy, and the kernel
// simulation driver into a single Run call, and attaches post-run
// analytics to the kernel's artifact.
package backtest

import (
	"context"
	"fmt"
	"time"

	"jax-backtest-engine/internal/analytics"
	"jax-backtest-engine/internal/config"
	"jax-backtest-engine/internal/kernel"
	"jax-backtest-engine/libs/strategies"
)

// Config holds the configuration for a single backtest run.
type Config struct {
	Session    config.Session
	StrategyID string
	Tickers    []string
	Ticks      []kernel.TickRecord
}

// Result bundles the kernel's artifact with the transaction log (kept
// separately, since Artifact itself only carries snapshots and warnings)
// and the computed performance report.
type Result struct {
	Artifact   kernel.Artifact
	Txns       []kernel.Txn
	Report     analytics.Report
	RunID      string
	RunAt      time.Time
	DurationMs int64
}

// Engine resolves a strategy by id from a Registry and drives it through
// kernel.New/kernel.Driver.Run.
type Engine struct {
	registry *strategies.Registry
}

// New creates a new backtest Engine backed by the given strategy Registry.
func New(registry *strategies.Registry) *Engine {
	return &Engine{registry: registry}
}

// Run executes one backtest end to end: validates cfg.Session, resolves
// the strategy, drives the simulation, and summarizes the result.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Session.Validate(); err != nil {
		return nil, err
	}

	strat, err := e.registry.New(cfg.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("backtest run failed for strategy %q: %w", cfg.StrategyID, err)
	}

	driver, err := kernel.New(cfg.Session.ToSessionConfig(), cfg.Tickers, strat)
	if err != nil {
		return nil, err
	}

	runAt := time.Now()
	artifact, err := driver.Run(ctx, cfg.Ticks)
	if err != nil {
		return nil, fmt.Errorf("backtest run failed for strategy %q: %w", cfg.StrategyID, err)
	}
	duration := time.Since(runAt)

	txns := driver.TransactionLog()
	report := analytics.Summarize(artifact, txns, cfg.Session.RiskFreeRate)

	return &Result{
		Artifact:   artifact,
		Txns:       txns,
		Report:     report,
		RunID:      fmt.Sprintf("bt_%s_%d", cfg.StrategyID, runAt.UnixNano()),
		RunAt:      runAt,
		DurationMs: duration.Milliseconds(),
	}, nil
}
