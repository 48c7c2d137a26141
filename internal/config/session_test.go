package config

import (
	"testing"

	"jax-backtest-engine/internal/kernel"
)

func validSession() Session {
	s := DefaultSession()
	s.Tickers = []string{"MSFT"}
	s.StrategyID = "noop"
	s.InitialCash = "10000"
	return s
}

func TestSession_Validate_AcceptsDefaults(t *testing.T) {
	if err := validSession().Validate(); err != nil {
		t.Fatalf("expected a valid session to pass, got %v", err)
	}
}

func TestSession_Validate_RejectsMissingTickers(t *testing.T) {
	s := validSession()
	s.Tickers = nil
	if err := s.Validate(); err == nil {
		t.Error("expected an error for an empty ticker universe")
	}
}

func TestSession_Validate_RejectsMissingStrategyID(t *testing.T) {
	s := validSession()
	s.StrategyID = ""
	if err := s.Validate(); err == nil {
		t.Error("expected an error for a missing strategy id")
	}
}

func TestSession_Validate_RejectsUnknownBroker(t *testing.T) {
	s := validSession()
	s.Broker = "robinhood"
	err := s.Validate()
	if err == nil {
		t.Fatal("expected an error for an unsupported broker")
	}
	if _, ok := err.(*kernel.ConfigurationError); !ok {
		t.Errorf("expected a *kernel.ConfigurationError, got %T", err)
	}
}

func TestSession_Validate_AcceptsBrokerCaseInsensitively(t *testing.T) {
	s := validSession()
	s.Broker = "Interactive Brokers"
	if err := s.Validate(); err != nil {
		t.Errorf("expected a case-insensitive broker match to pass, got %v", err)
	}
}

func TestSession_Validate_RejectsUnparseableInitialCash(t *testing.T) {
	s := validSession()
	s.InitialCash = "not-a-number"
	if err := s.Validate(); err == nil {
		t.Error("expected an error for an unparseable initial_cash")
	}
}

func TestSession_Validate_RejectsNegativeInitialCash(t *testing.T) {
	s := validSession()
	s.InitialCash = "-500"
	if err := s.Validate(); err == nil {
		t.Error("expected an error for a negative initial_cash")
	}
}

func TestSession_Validate_AcceptsZeroInitialCash(t *testing.T) {
	s := validSession()
	s.InitialCash = "0"
	if err := s.Validate(); err != nil {
		t.Errorf("expected a zero initial_cash to be valid (non-negative), got %v", err)
	}
}

func TestSession_ToSessionConfig_ParsesInitialCash(t *testing.T) {
	s := validSession()
	s.InitialCash = "25000.50"
	sc := s.ToSessionConfig()
	want := "25000.5"
	if sc.InitialCash.String() != want {
		t.Errorf("expected parsed initial cash %s, got %s", want, sc.InitialCash.String())
	}
}

func TestSession_ToSessionConfig_CarriesMarketHoursAndCommissionFlag(t *testing.T) {
	s := validSession()
	s.IncludeCommission = true
	sc := s.ToSessionConfig()
	if sc.MarketOpenTime != s.MarketOpenTime {
		t.Errorf("expected market open time to carry over, want %v got %v", s.MarketOpenTime, sc.MarketOpenTime)
	}
	if sc.MarketCloseTime != s.MarketCloseTime {
		t.Errorf("expected market close time to carry over, want %v got %v", s.MarketCloseTime, sc.MarketCloseTime)
	}
	if !sc.IncludeCommission {
		t.Error("expected include_commission to carry over")
	}
}
