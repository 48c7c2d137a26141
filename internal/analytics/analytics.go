// Package analytics computes post-run performance statistics over a
// completed backtest's snapshot series and transaction log. Grounded in
// the quantitative/core/metrics.py and core/performance.py CAGR, Sharpe,
// max-drawdown, and volatility definitions (SPEC_FULL.md §12).
package analytics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"jax-backtest-engine/internal/kernel"
)

const (
	tradingDaysPerYear = 252
	defaultRiskFree    = 0.05
)

// Report is the summary of a completed run.
type Report struct {
	StartValue     decimal.Decimal
	EndValue       decimal.Decimal
	TotalReturn    float64 // fraction, e.g. 0.1 = 10%
	CAGR           float64
	SharpeRatio    float64
	Volatility     float64 // annualized stdev of daily returns
	MaxDrawdown    float64 // fraction, always <= 0
	WinRate        float64 // fraction of closed round trips that were profitable
	ProfitFactor   float64 // gross profit / gross loss; +Inf if no losses
	NumFills       int
	TotalCommission decimal.Decimal
}

// Summarize computes a Report from a backtest artifact's dense snapshot
// series and the run's transaction log (spec.md §3's transaction log,
// still held by whatever called Driver.Run — the Artifact itself only
// carries snapshots and warnings). Returns the zero Report if fewer than
// two snapshots are present (nothing to compute a return or drawdown
// over).
func Summarize(artifact kernel.Artifact, txns []kernel.Txn, riskFreeRate float64) Report {
	snaps := artifact.Snapshots
	if len(snaps) < 2 {
		return Report{}
	}
	if riskFreeRate == 0 {
		riskFreeRate = defaultRiskFree
	}

	start := snaps[0].PortfolioValue
	end := snaps[len(snaps)-1].PortfolioValue

	rep := Report{StartValue: start, EndValue: end}
	if !start.IsZero() {
		rep.TotalReturn, _ = end.Sub(start).Div(start).Float64()
	}

	years := snaps[len(snaps)-1].Time.Sub(snaps[0].Time).Hours() / (24 * 365.24)
	rep.CAGR = cagr(start, end, years)

	dailyReturns := dailyReturnSeries(snaps)
	rep.Volatility = annualizedVolatility(dailyReturns)
	rep.SharpeRatio = sharpeRatio(dailyReturns, riskFreeRate)
	rep.MaxDrawdown = maxDrawdown(snaps)

	rep.WinRate, rep.ProfitFactor, rep.NumFills, rep.TotalCommission = SummarizeTransactions(txns)

	return rep
}

// cagr is years.Sqrt-free since compound growth only needs a single
// fractional exponent.
func cagr(begin, end decimal.Decimal, years float64) float64 {
	if years <= 0 || begin.IsZero() || begin.IsNegative() {
		return 0
	}
	b, _ := begin.Float64()
	e, _ := end.Float64()
	if e <= 0 {
		return -1
	}
	return math.Pow(e/b, 1/years) - 1
}

// dailyReturnSeries collapses the snapshot series (recorded at every
// event, not every calendar day) to one sample per distinct simulated
// calendar date, taking that date's final portfolio value.
func dailyReturnSeries(snaps []kernel.Snapshot) []float64 {
	if len(snaps) < 2 {
		return nil
	}
	lastByDay := make(map[time.Time]decimal.Decimal)
	var order []time.Time
	for _, s := range snaps {
		day := time.Date(s.Time.Year(), s.Time.Month(), s.Time.Day(), 0, 0, 0, 0, s.Time.Location())
		if _, seen := lastByDay[day]; !seen {
			order = append(order, day)
		}
		lastByDay[day] = s.PortfolioValue
	}

	returns := make([]float64, 0, len(order)-1)
	for i := 1; i < len(order); i++ {
		prev := lastByDay[order[i-1]]
		cur := lastByDay[order[i]]
		if prev.IsZero() {
			continue
		}
		r, _ := cur.Sub(prev).Div(prev).Float64()
		returns = append(returns, r)
	}
	return returns
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

func annualizedVolatility(dailyReturns []float64) float64 {
	return stddev(dailyReturns) * math.Sqrt(tradingDaysPerYear)
}

// sharpeRatio follows quantitative/core/metrics.py's definition: the mean
// excess return over a per-period risk-free rate, scaled by the
// annualization factor, divided by the return series' own stdev.
func sharpeRatio(dailyReturns []float64, annualRiskFree float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	periodRiskFree := annualRiskFree / tradingDaysPerYear
	excess := make([]float64, len(dailyReturns))
	for i, r := range dailyReturns {
		excess[i] = r - periodRiskFree
	}
	sigma := stddev(dailyReturns)
	if sigma == 0 {
		return 0
	}
	return (mean(excess) / sigma) * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown returns the largest peak-to-trough decline in the
// portfolio-value series, as a negative fraction.
func maxDrawdown(snaps []kernel.Snapshot) float64 {
	peak, _ := snaps[0].PortfolioValue.Float64()
	worst := 0.0
	for _, s := range snaps {
		v, _ := s.PortfolioValue.Float64()
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (v - peak) / peak
		if dd < worst {
			worst = dd
		}
	}
	return worst
}

// RoundTrip is one closed position: every fill from the sequence id's
// open to its flattening close, netted to a realized profit.
type RoundTrip struct {
	Ticker       string
	SequenceID   int64
	OpenedAt     time.Time
	ClosedAt     time.Time
	RealizedPL   decimal.Decimal
	GrossShares  int64
}

// SummarizeTransactions computes win rate, profit factor, fill count, and
// total commission directly from a transaction log — Summarize calls it
// for the trade statistics of its Report.
//
// A ticker's sequence id is recycled once its position flattens
// (Portfolio.freeSequenceIDs/allocateSequence), so the same SequenceID can
// legitimately label two unrelated round trips within one run. openBySeq
// tracks only the round trip currently open under a given id; once it
// flattens (GrossShares == 0) the id is evicted from openBySeq so the next
// fill under that recycled id starts a fresh RoundTrip instead of
// reopening and corrupting the closed one.
func SummarizeTransactions(txns []kernel.Txn) (winRate, profitFactor float64, numFills int, totalCommission decimal.Decimal) {
	totalCommission = decimal.Zero
	openBySeq := make(map[int64]*RoundTrip)
	var roundTrips []*RoundTrip

	for _, t := range txns {
		mt, ok := t.(kernel.MarketTxn)
		if !ok {
			continue
		}
		numFills++
		totalCommission = totalCommission.Add(mt.Commission)

		rt, open := openBySeq[mt.SequenceID]
		if !open {
			rt = &RoundTrip{Ticker: mt.Ticker, SequenceID: mt.SequenceID, OpenedAt: mt.Time}
			openBySeq[mt.SequenceID] = rt
			roundTrips = append(roundTrips, rt)
		}
		rt.ClosedAt = mt.Time

		gross := mt.Price.Mul(decimal.NewFromInt(mt.Shares))
		if mt.Direction == kernel.Sell {
			rt.RealizedPL = rt.RealizedPL.Add(gross).Sub(mt.Commission)
			rt.GrossShares -= mt.Shares
		} else {
			rt.RealizedPL = rt.RealizedPL.Sub(gross).Sub(mt.Commission)
			rt.GrossShares += mt.Shares
		}

		if rt.GrossShares == 0 {
			delete(openBySeq, mt.SequenceID)
		}
	}

	var wins, losses int
	grossProfit, grossLoss := decimal.Zero, decimal.Zero
	for _, rt := range roundTrips {
		if rt.GrossShares != 0 {
			continue // still open, not a closed round trip
		}
		if rt.RealizedPL.IsPositive() {
			wins++
			grossProfit = grossProfit.Add(rt.RealizedPL)
		} else if rt.RealizedPL.IsNegative() {
			losses++
			grossLoss = grossLoss.Add(rt.RealizedPL.Abs())
		}
	}

	closed := wins + losses
	if closed > 0 {
		winRate = float64(wins) / float64(closed)
	}
	if grossLoss.IsPositive() {
		profitFactor, _ = grossProfit.Div(grossLoss).Float64()
	} else if grossProfit.IsPositive() {
		profitFactor = math.Inf(1)
	}

	return winRate, profitFactor, numFills, totalCommission
}
