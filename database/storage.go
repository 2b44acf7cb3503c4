package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"option-scanner/interfaces"
	"option-scanner/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// LocalStorage implements the ResultStore interface using SQLite
type LocalStorage struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewLocalStorage creates a new local storage service
func NewLocalStorage(dbPath string) (*LocalStorage, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open SQLite database
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Auto-migrate schemas
	if err := db.AutoMigrate(
		&models.DBScreeningResult{},
		&models.DBScanRun{},
		&models.DBBar{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &LocalStorage{
		db:     db,
		logger: log,
	}, nil
}

// screeningResultKey lists the columns that identify one contract on one scan
// date. Re-scanning the same day updates the existing row.
var screeningResultKey = []clause.Column{
	{Name: "underlying_symbol"},
	{Name: "option_type"},
	{Name: "strike"},
	{Name: "expiration_date"},
	{Name: "scan_date"},
}

// SaveResults persists screening results with an idempotent upsert keyed by
// (underlying, option type, strike, expiration, scan date)
func (s *LocalStorage) SaveResults(runID string, scanDate time.Time, results []*interfaces.ScreeningResult) error {
	if len(results) == 0 {
		return nil
	}

	s.logger.WithFields(logrus.Fields{
		"run_id": runID,
		"count":  len(results),
	}).Info("Saving screening results to database")

	rows := make([]*models.DBScreeningResult, len(results))
	for i, result := range results {
		rows[i] = &models.DBScreeningResult{
			RunID:            runID,
			UnderlyingSymbol: result.Contract.UnderlyingSymbol,
			OptionSymbol:     result.Contract.Symbol,
			OptionType:       result.Contract.OptionType,
			Strike:           result.Contract.Strike,
			ExpirationDate:   result.Contract.Expiration.Format(models.DateFormat),
			ScanDate:         scanDate.Format(models.DateFormat),
			SpotPrice:        result.SpotPrice,
			RiskFreeRate:     result.RiskFreeRate,
			Volatility:       result.Volatility,
			TimeToExpiry:     result.TimeToExpiry,
			MarketPrice:      result.MarketPrice,
			TheoreticalPrice: result.TheoreticalPrice,
			Deviation:        result.Deviation,
			DeviationRatio:   result.DeviationRatio,
			Classification:   result.Classification,
		}
	}

	res := s.db.Clauses(clause.OnConflict{
		Columns: screeningResultKey,
		DoUpdates: clause.AssignmentColumns([]string{
			"run_id", "option_symbol", "spot_price", "risk_free_rate",
			"volatility", "time_to_expiry", "market_price",
			"theoretical_price", "deviation", "deviation_ratio",
			"classification", "updated_at",
		}),
	}).Create(&rows)
	if res.Error != nil {
		return fmt.Errorf("failed to save screening results: %w", res.Error)
	}

	s.logger.WithField("saved", res.RowsAffected).Info("Screening results saved successfully")
	return nil
}

// GetResults retrieves screening results for a symbol and scan date
func (s *LocalStorage) GetResults(symbol string, scanDate time.Time) ([]*models.DBScreeningResult, error) {
	var rows []*models.DBScreeningResult

	res := s.db.Where("underlying_symbol = ? AND scan_date = ?", symbol, scanDate.Format(models.DateFormat)).
		Order("expiration_date ASC, strike ASC").
		Find(&rows)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to get screening results: %w", res.Error)
	}

	return rows, nil
}

// GetUndervalued retrieves undervalued results at or above a minimum
// deviation ratio, most mispriced first
func (s *LocalStorage) GetUndervalued(minRatio float64, limit int) ([]*models.DBScreeningResult, error) {
	var rows []*models.DBScreeningResult

	query := s.db.Where("classification = ? AND deviation_ratio >= ?",
		interfaces.ClassificationUndervalued, minRatio).
		Order("deviation_ratio DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	res := query.Find(&rows)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to get undervalued results: %w", res.Error)
	}

	return rows, nil
}

// SaveScanRun records the aggregate outcome of one scan invocation
func (s *LocalStorage) SaveScanRun(summary *interfaces.ScanSummary) error {
	row := &models.DBScanRun{
		RunID:                    summary.RunID,
		ScanDate:                 summary.ScanDate.Format(models.DateFormat),
		Symbols:                  strings.Join(summary.Symbols, ","),
		FailedSymbols:            strings.Join(summary.FailedSymbols, ","),
		ContractsScanned:         summary.ContractsScanned,
		Skipped:                  summary.Skipped,
		SkippedExpired:           summary.SkippedExpired,
		SkippedInvalidVolatility: summary.SkippedInvalidVolatility,
		SkippedInvalidPrice:      summary.SkippedInvalidPrice,
		SkippedPricingError:      summary.SkippedPricingError,
		Undervalued:              summary.Undervalued,
		Overvalued:               summary.Overvalued,
		Fair:                     summary.Fair,
		DurationMs:               summary.DurationMs,
	}

	res := s.db.Save(row)
	if res.Error != nil {
		return fmt.Errorf("failed to save scan run: %w", res.Error)
	}

	return nil
}

// GetRecentScanRuns retrieves the most recent scan runs
func (s *LocalStorage) GetRecentScanRuns(limit int) ([]*models.DBScanRun, error) {
	var rows []*models.DBScanRun

	query := s.db.Model(&models.DBScanRun{}).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	res := query.Find(&rows)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to get scan runs: %w", res.Error)
	}

	return rows, nil
}

// SaveBars caches daily bars, ignoring days already present
func (s *LocalStorage) SaveBars(bars []*interfaces.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	rows := make([]*models.DBBar, len(bars))
	for i, bar := range bars {
		rows[i] = &models.DBBar{
			Symbol: bar.Symbol,
			Date:   bar.Date.Format(models.DateFormat),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		}
	}

	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoNothing: true,
	}).Create(&rows)
	if res.Error != nil {
		return fmt.Errorf("failed to save bars: %w", res.Error)
	}

	return nil
}

// GetBars retrieves cached daily bars for a symbol up to the given date,
// oldest first
func (s *LocalStorage) GetBars(symbol string, end time.Time, lookbackDays int) ([]*interfaces.Bar, error) {
	var rows []*models.DBBar

	query := s.db.Where("symbol = ? AND date <= ?", symbol, end.Format(models.DateFormat)).
		Order("date DESC")
	if lookbackDays > 0 {
		query = query.Limit(lookbackDays + 1)
	}

	res := query.Find(&rows)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to get bars: %w", res.Error)
	}

	// Reverse into chronological order
	bars := make([]*interfaces.Bar, len(rows))
	for i, row := range rows {
		date, err := time.Parse(models.DateFormat, row.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse bar date %q: %w", row.Date, err)
		}
		bars[len(rows)-1-i] = &interfaces.Bar{
			Symbol: row.Symbol,
			Date:   date,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		}
	}

	return bars, nil
}

// Close closes the database connection
func (s *LocalStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
