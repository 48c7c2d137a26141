package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"jax-backtest-engine/internal/config"
	"jax-backtest-engine/internal/kernel"
	"jax-backtest-engine/internal/modules/backtest"
	"jax-backtest-engine/libs/database"
	"jax-backtest-engine/libs/ingest"
	"jax-backtest-engine/libs/marketdata"
	"jax-backtest-engine/libs/strategies"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
)

func main() {
	ticksPath := flag.String("ticks", "", "path to a CSV tick file (required when --source=csv)")
	source := flag.String("source", "csv", "tick source: csv, postgres, or live")
	liveLimit := flag.Int("live-trades", 200, "trades to pull per ticker for --source=live")
	rangeStart := flag.String("start", "", "RFC3339 range start (postgres source only)")
	rangeEnd := flag.String("end", "", "RFC3339 range end (postgres source only)")
	strategyID := flag.String("strategy", "", "registered strategy id to run (overrides STRATEGY_ID)")
	tickersFlag := flag.String("tickers", "", "comma-separated ticker universe (overrides TICKERS)")
	flag.Parse()

	log.Printf("starting jax-backtest v%s (built: %s)", version, buildTime)

	cfg := loadSession()
	if *strategyID != "" {
		cfg.StrategyID = *strategyID
	}
	if *tickersFlag != "" {
		cfg.Tickers = strings.Split(*tickersFlag, ",")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid session configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var ticks []kernel.TickRecord
	var err error
	switch *source {
	case "postgres":
		ticks, err = loadTicksFromPostgres(ctx, cfg.Tickers, *rangeStart, *rangeEnd)
	case "live":
		ticks, err = loadTicksFromVendor(ctx, cfg.Tickers, *liveLimit)
	case "csv":
		if *ticksPath == "" {
			log.Fatal("--ticks is required when --source=csv")
		}
		ticks, err = loadTicksFromCSV(*ticksPath)
	default:
		log.Fatalf("unknown --source %q: must be csv, postgres, or live", *source)
	}
	if err != nil {
		log.Fatalf("load ticks: %v", err)
	}
	log.Printf("loaded %d ticks for %v from %s", len(ticks), cfg.Tickers, *source)

	registry := strategies.Default()
	engine := backtest.New(registry)

	result, err := engine.Run(ctx, backtest.Config{
		Session:    cfg,
		StrategyID: cfg.StrategyID,
		Tickers:    cfg.Tickers,
		Ticks:      ticks,
	})
	if err != nil {
		log.Fatalf("backtest run failed: %v", err)
	}

	log.Printf("run %s completed in %dms: %d snapshots, %d fills", result.RunID, result.DurationMs, len(result.Artifact.Snapshots), result.Report.NumFills)
	for _, w := range result.Artifact.Warnings {
		log.Printf("warning: %s", w)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"run_id":      result.RunID,
		"duration_ms": result.DurationMs,
		"report":      result.Report,
	}); err != nil {
		log.Fatalf("encode result: %v", err)
	}
}

// loadSession builds a config.Session from the environment, falling back
// to the kernel's own defaults for anything unset.
func loadSession() config.Session {
	cfg := config.DefaultSession()

	if v := os.Getenv("BROKER"); v != "" {
		cfg.Broker = v
	}
	if v := os.Getenv("TICKERS"); v != "" {
		cfg.Tickers = strings.Split(v, ",")
	}
	if v := os.Getenv("STRATEGY_ID"); v != "" {
		cfg.StrategyID = v
	}
	cfg.InitialCash = envOr("INITIAL_CASH", "100000")
	cfg.IncludeCommission = os.Getenv("INCLUDE_COMMISSION") == "true"
	cfg.RiskFreeRate = parseFloatEnv("RISK_FREE_RATE", cfg.RiskFreeRate)

	if v := os.Getenv("MARKET_OPEN_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MarketOpenTime = d
		} else {
			log.Printf("warning: invalid MARKET_OPEN_TIME %q, using default", v)
		}
	}
	if v := os.Getenv("MARKET_CLOSE_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MarketCloseTime = d
		} else {
			log.Printf("warning: invalid MARKET_CLOSE_TIME %q, using default", v)
		}
	}

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseFloatEnv(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("warning: invalid %s value %q, using default %v", key, v, def)
		return def
	}
	return parsed
}

func loadTicksFromCSV(path string) ([]kernel.TickRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ticks file: %w", err)
	}
	defer f.Close()
	return ingest.LoadTicksCSV(f)
}

// loadTicksFromPostgres loads each ticker's [start, end) history from the
// ticks table (DATABASE_DSN) and merges them into one ascending-time
// sequence, matching the driver's input ordering requirement (spec.md §6).
func loadTicksFromPostgres(ctx context.Context, tickers []string, rangeStart, rangeEnd string) ([]kernel.TickRecord, error) {
	start, err := parseRangeBound("--start", rangeStart, time.Unix(0, 0).UTC())
	if err != nil {
		return nil, err
	}
	end, err := parseRangeBound("--end", rangeEnd, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	dbCfg := database.DefaultConfig()
	dbCfg.DSN = os.Getenv("DATABASE_DSN")
	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()

	var out []kernel.TickRecord
	for _, ticker := range tickers {
		rows, err := ingest.LoadTicks(ctx, db.DB, ticker, start, end)
		if err != nil {
			return nil, fmt.Errorf("load ticks for %s: %w", ticker, err)
		}
		out = append(out, rows...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// loadTicksFromVendor pulls each ticker's recent trade history through a
// marketdata.Client built by vendorConfigFromEnv, trying its providers in
// priority order, and converts it into the same ascending TickRecord shape
// the CSV and Postgres sources produce, so the driver never has to know
// where a run's ticks came from. Of the providers vendorConfigFromEnv can
// enable, only Alpaca returns trades; the IB Gateway provider's GetTrades
// always returns an error.
func loadTicksFromVendor(ctx context.Context, tickers []string, limit int) ([]kernel.TickRecord, error) {
	client, err := marketdata.NewClient(vendorConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("construct market data client: %w", err)
	}
	defer client.Close()

	ts := marketdata.NewTickSource(client)

	var out []kernel.TickRecord
	for _, ticker := range tickers {
		rows, err := ts.LoadTrades(ctx, ticker, limit)
		if err != nil {
			return nil, fmt.Errorf("load live trades for %s: %w", ticker, err)
		}
		out = append(out, rows...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// vendorConfigFromEnv enables every vendor whose settings are present:
// Alpaca at priority 1 when ALPACA_API_KEY is set (with ALPACA_API_SECRET),
// and an IB Gateway socket connection (IB_HOST:IB_PORT) at priority 2 when
// IB_HOST is set. With both set, the Client tries Alpaca first and falls
// back to IB per call.
func vendorConfigFromEnv() *marketdata.Config {
	cfg := marketdata.DefaultConfig()

	if key := os.Getenv("ALPACA_API_KEY"); key != "" {
		cfg.Providers = append(cfg.Providers, marketdata.ProviderConfig{
			Name:      marketdata.ProviderAlpaca,
			APIKey:    key,
			APISecret: os.Getenv("ALPACA_API_SECRET"),
			Tier:      envOr("ALPACA_TIER", "free"),
			Priority:  1,
			Enabled:   true,
		})
	}

	if host := os.Getenv("IB_HOST"); host != "" {
		cfg.Providers = append(cfg.Providers, marketdata.ProviderConfig{
			Name:     marketdata.ProviderIB,
			IBHost:   host,
			IBPort:   int(parseFloatEnv("IB_PORT", 7497)),
			Priority: 2,
			Enabled:  true,
		})
	}

	return cfg
}

func parseRangeBound(flagName, raw string, def time.Time) (time.Time, error) {
	if raw == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", flagName, raw, err)
	}
	return t, nil
}
