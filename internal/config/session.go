// Package config validates and defaults the run-level configuration a
// backtest session is launched with, the way libs/database.Config and
// libs/marketdata.Config validate their own inputs before anything
// downstream touches them.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"jax-backtest-engine/internal/kernel"
)

var validate = validator.New()

var validBrokers = map[string]bool{
	"ib":                  true,
	"interactive":         true,
	"interactive brokers": true,
}

// Session is the fully-resolved configuration for one backtest run:
// kernel session parameters plus the run-level knobs (broker schedule,
// strategy selection, tick source) that sit above the kernel.
type Session struct {
	Broker            string        `validate:"required"`
	Tickers           []string      `validate:"required,min=1,dive,required"`
	StrategyID        string        `validate:"required"`
	InitialCash       string        `validate:"required"` // decimal literal, parsed below
	IncludeCommission bool
	MarketOpenTime    time.Duration `validate:"required"`
	MarketCloseTime   time.Duration `validate:"required"`
	RiskFreeRate      float64
}

// DefaultSession returns a Session seeded with the kernel's own defaults;
// callers override fields from flags/env before calling Validate.
func DefaultSession() Session {
	d := kernel.DefaultSessionConfig()
	return Session{
		Broker:          "interactive brokers",
		MarketOpenTime:  d.MarketOpenTime,
		MarketCloseTime: d.MarketCloseTime,
		RiskFreeRate:    0.05,
	}
}

// Validate checks struct-level field constraints via go-playground's
// validator, then the domain rule a struct tag can't express: Broker must
// name a broker this kernel's commission schedule actually models.
func (s Session) Validate() error {
	if err := validate.Struct(s); err != nil {
		return &kernel.ConfigurationError{Reason: err.Error()}
	}

	broker := strings.ToLower(s.Broker)
	if !validBrokers[broker] {
		return &kernel.ConfigurationError{Reason: fmt.Sprintf("unsupported broker %q: this kernel only models Interactive Brokers' commission schedule", s.Broker)}
	}

	cash, err := decimal.NewFromString(s.InitialCash)
	if err != nil {
		return &kernel.ConfigurationError{Reason: fmt.Sprintf("invalid initial_cash %q: %v", s.InitialCash, err)}
	}
	if cash.IsNegative() {
		return &kernel.ConfigurationError{Reason: fmt.Sprintf("initial_cash %q must be non-negative", s.InitialCash)}
	}

	return nil
}

// ToSessionConfig converts a validated Session into the kernel's
// SessionConfig. Callers must call Validate first.
func (s Session) ToSessionConfig() kernel.SessionConfig {
	cash, _ := decimal.NewFromString(s.InitialCash)
	return kernel.SessionConfig{
		MarketOpenTime:    s.MarketOpenTime,
		MarketCloseTime:   s.MarketCloseTime,
		InitialCash:       cash,
		IncludeCommission: s.IncludeCommission,
	}
}

