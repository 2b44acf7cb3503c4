package interfaces

import (
	"context"
	"time"
)

// Option contract types
const (
	OptionTypeCall = "CALL"
	OptionTypePut  = "PUT"
)

// Classification labels assigned by the screener
const (
	ClassificationUndervalued = "UNDERVALUED"
	ClassificationOvervalued  = "OVERVALUED"
	ClassificationFair        = "FAIR"
)

// OptionContract represents a single listed option as fetched from the chain
// source. Contracts are treated as immutable once fetched.
type OptionContract struct {
	Symbol            string    `json:"symbol"`             // Option symbol (e.g., "AAPL20231215C150")
	UnderlyingSymbol  string    `json:"underlying_symbol"`  // Underlying stock symbol
	OptionType        string    `json:"option_type"`        // "CALL" or "PUT"
	Strike            float64   `json:"strike"`             // Strike price
	Expiration        time.Time `json:"expiration"`         // Expiration date
	Bid               float64   `json:"bid"`
	Ask               float64   `json:"ask"`
	MarketPrice       float64   `json:"market_price"`       // Mid of bid/ask
	ImpliedVolatility float64   `json:"implied_volatility"` // 0 when not quoted
	QuoteDate         time.Time `json:"quote_date"`
}

// OptionChain represents the fetched chain for one underlying
type OptionChain struct {
	UnderlyingSymbol string            `json:"underlying_symbol"`
	AsOf             time.Time         `json:"as_of"`
	Contracts        []*OptionContract `json:"contracts"`
	DroppedRows      int               `json:"dropped_rows"` // source rows that failed normalization
}

// ScreeningResult is the classified output for one contract. Created once per
// contract per scan and never mutated afterwards.
type ScreeningResult struct {
	Contract         *OptionContract `json:"contract"`
	SpotPrice        float64         `json:"spot_price"`
	RiskFreeRate     float64         `json:"risk_free_rate"`
	Volatility       float64         `json:"volatility"`     // volatility actually used for pricing
	TimeToExpiry     float64         `json:"time_to_expiry"` // years
	TheoreticalPrice float64         `json:"theoretical_price"`
	MarketPrice      float64         `json:"market_price"`
	Deviation        float64         `json:"deviation"`       // market - theoretical
	DeviationRatio   float64         `json:"deviation_ratio"` // (theoretical - market) / theoretical
	Classification   string          `json:"classification"`
}

// ScanConfig holds per-scan parameters. Passed explicitly so scans with
// different parameters never interfere.
type ScanConfig struct {
	RiskFreeRate       float64 // annualized, e.g. 0.05
	DividendYield      float64 // continuous yield, 0 for the plain model
	Threshold          float64 // deviation ratio threshold, e.g. 0.10
	LookbackDays       int     // historical window for volatility estimation
	DefaultVolatility  float64 // last-resort volatility, 0 disables the fallback
	TradingDaysPerYear int     // annualization factor, usually 252
}

// ScanSummary aggregates the outcome of one scan run
type ScanSummary struct {
	RunID                    string    `json:"run_id"`
	ScanDate                 time.Time `json:"scan_date"`
	Symbols                  []string  `json:"symbols"`
	FailedSymbols            []string  `json:"failed_symbols"`
	ContractsScanned         int       `json:"contracts_scanned"`
	Skipped                  int       `json:"skipped"`
	SkippedExpired           int       `json:"skipped_expired"`
	SkippedInvalidVolatility int       `json:"skipped_invalid_volatility"`
	SkippedInvalidPrice      int       `json:"skipped_invalid_price"`
	SkippedPricingError      int       `json:"skipped_pricing_error"`
	Undervalued              int       `json:"undervalued"`
	Overvalued               int       `json:"overvalued"`
	Fair                     int       `json:"fair"`
	DurationMs               int64     `json:"duration_ms"`
}

// Bar represents one daily bar of underlying price history
type Bar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// ChainSource supplies the raw option chain for an underlying
type ChainSource interface {
	FetchChain(ctx context.Context, underlying string, asOf time.Time) (*OptionChain, error)
}

// MarketDataService supplies underlying price history
type MarketDataService interface {
	GetDailyBars(ctx context.Context, symbol string, end time.Time, lookbackDays int) ([]*Bar, error)
}

// ResultStore persists classified screening results and scan audit records
type ResultStore interface {
	SaveResults(runID string, scanDate time.Time, results []*ScreeningResult) error
	SaveScanRun(summary *ScanSummary) error
	SaveBars(bars []*Bar) error
	GetBars(symbol string, end time.Time, lookbackDays int) ([]*Bar, error)
	Close() error
}
