package models

import (
	"gorm.io/gorm"
)

// DBScreeningResult represents one classified contract in the database.
// The composite unique index makes repeated scans of the same day an upsert
// rather than a duplicate insert.
type DBScreeningResult struct {
	gorm.Model
	RunID            string  `gorm:"index"`
	UnderlyingSymbol string  `gorm:"uniqueIndex:idx_screening_key;index"`
	OptionSymbol     string  `gorm:"index"`
	OptionType       string  `gorm:"uniqueIndex:idx_screening_key"`
	Strike           float64 `gorm:"uniqueIndex:idx_screening_key"`
	ExpirationDate   string  `gorm:"uniqueIndex:idx_screening_key"` // YYYY-MM-DD
	ScanDate         string  `gorm:"uniqueIndex:idx_screening_key;index"`

	SpotPrice        float64
	RiskFreeRate     float64
	Volatility       float64
	TimeToExpiry     float64
	MarketPrice      float64
	TheoreticalPrice float64
	Deviation        float64
	DeviationRatio   float64
	Classification   string `gorm:"index"`
}

// DBScanRun records the aggregate outcome of one scan invocation
type DBScanRun struct {
	gorm.Model
	RunID                    string `gorm:"uniqueIndex"`
	ScanDate                 string `gorm:"index"`
	Symbols                  string // comma-separated
	FailedSymbols            string // comma-separated
	ContractsScanned         int
	Skipped                  int
	SkippedExpired           int
	SkippedInvalidVolatility int
	SkippedInvalidPrice      int
	SkippedPricingError      int
	Undervalued              int
	Overvalued               int
	Fair                     int
	DurationMs               int64
}

// DBBar caches daily underlying bars so volatility windows are not refetched
// on every scan
type DBBar struct {
	gorm.Model
	Symbol string `gorm:"uniqueIndex:idx_symbol_date"`
	Date   string `gorm:"uniqueIndex:idx_symbol_date"` // YYYY-MM-DD
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// TableName overrides for cleaner table names
func (DBScreeningResult) TableName() string {
	return "screening_results"
}

func (DBScanRun) TableName() string {
	return "scan_runs"
}

func (DBBar) TableName() string {
	return "bars"
}

// DateFormat is the canonical date layout used for scan and expiration dates
const DateFormat = "2006-01-02"
