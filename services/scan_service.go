package services

import (
	"context"
	"fmt"
	"time"

	"option-scanner/interfaces"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ScanService runs the full pipeline: fetch chains, price and classify every
// contract, and persist the results in one bulk write
type ScanService struct {
	chainSource interfaces.ChainSource
	marketData  interfaces.MarketDataService
	store       interfaces.ResultStore
	screener    *Screener
	estimator   *VolatilityEstimator
	config      interfaces.ScanConfig
	logger      *logrus.Logger
}

// NewScanService creates a new scan service
func NewScanService(
	chainSource interfaces.ChainSource,
	marketData interfaces.MarketDataService,
	store interfaces.ResultStore,
	config interfaces.ScanConfig,
) *ScanService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &ScanService{
		chainSource: chainSource,
		marketData:  marketData,
		store:       store,
		screener:    NewScreener(),
		estimator:   NewVolatilityEstimator(config.TradingDaysPerYear),
		config:      config,
		logger:      logger,
	}
}

// ScanRequest describes one scan invocation
type ScanRequest struct {
	Symbols   []string
	Date      time.Time
	Threshold *float64 // optional override of the configured threshold
}

// Scan screens the option chains of the requested symbols as of the given
// date. A failed symbol is recorded and skipped; a storage failure is fatal
// and the results are not considered saved.
func (ss *ScanService) Scan(ctx context.Context, req ScanRequest) (*interfaces.ScanSummary, error) {
	cfg := ss.config
	if req.Threshold != nil {
		cfg.Threshold = *req.Threshold
	}

	summary := &interfaces.ScanSummary{
		RunID:    uuid.NewString(),
		ScanDate: req.Date,
		Symbols:  req.Symbols,
	}
	start := time.Now()

	ss.logger.WithFields(logrus.Fields{
		"run_id":    summary.RunID,
		"symbols":   req.Symbols,
		"scan_date": req.Date.Format("2006-01-02"),
		"threshold": cfg.Threshold,
	}).Info("Starting scan")

	var allResults []*interfaces.ScreeningResult

	for _, symbol := range req.Symbols {
		results, tally, err := ss.scanSymbol(ctx, symbol, req.Date, cfg)
		if err != nil {
			ss.logger.WithError(err).WithField("symbol", symbol).Error("Failed to scan symbol")
			summary.FailedSymbols = append(summary.FailedSymbols, symbol)
			continue
		}

		allResults = append(allResults, results...)
		summary.ContractsScanned += len(results) + tally.Total()
		summary.Skipped += tally.Total()
		summary.SkippedExpired += tally.Expired
		summary.SkippedInvalidVolatility += tally.InvalidVolatility
		summary.SkippedInvalidPrice += tally.InvalidPrice
		summary.SkippedPricingError += tally.PricingError
	}

	for _, result := range allResults {
		switch result.Classification {
		case interfaces.ClassificationUndervalued:
			summary.Undervalued++
		case interfaces.ClassificationOvervalued:
			summary.Overvalued++
		default:
			summary.Fair++
		}
	}

	if err := ss.store.SaveResults(summary.RunID, req.Date, allResults); err != nil {
		return nil, fmt.Errorf("failed to persist scan results: %v: %w", err, interfaces.ErrStorage)
	}

	summary.DurationMs = time.Since(start).Milliseconds()

	if err := ss.store.SaveScanRun(summary); err != nil {
		return nil, fmt.Errorf("failed to persist scan run: %v: %w", err, interfaces.ErrStorage)
	}

	ss.logger.WithFields(logrus.Fields{
		"run_id":      summary.RunID,
		"scanned":     summary.ContractsScanned,
		"skipped":     summary.Skipped,
		"undervalued": summary.Undervalued,
		"failed":      summary.FailedSymbols,
		"duration_ms": summary.DurationMs,
	}).Info("Scan complete")

	return summary, nil
}

// scanSymbol fetches and screens the chain of one underlying
func (ss *ScanService) scanSymbol(ctx context.Context, symbol string, asOf time.Time, cfg interfaces.ScanConfig) ([]*interfaces.ScreeningResult, SkipTally, error) {
	chain, err := ss.chainSource.FetchChain(ctx, symbol, asOf)
	if err != nil {
		return nil, SkipTally{}, fmt.Errorf("chain fetch failed: %w", err)
	}

	bars, err := ss.loadBars(ctx, symbol, asOf, cfg.LookbackDays)
	if err != nil {
		return nil, SkipTally{}, fmt.Errorf("price history fetch failed: %w", err)
	}
	if len(bars) == 0 {
		return nil, SkipTally{}, fmt.Errorf("no price history for %s as of %s: %w",
			symbol, asOf.Format("2006-01-02"), interfaces.ErrInsufficientData)
	}

	spot := bars[len(bars)-1].Close
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	fallbackVol, err := ss.estimator.Annualized(closes, cfg.LookbackDays)
	if err != nil {
		ss.logger.WithError(err).WithField("symbol", symbol).Warn("No historical volatility estimate available")
		fallbackVol = 0
	}

	results, tally := ss.screener.Screen(ScreenInput{
		Contracts:          chain.Contracts,
		Spot:               spot,
		AsOf:               asOf,
		FallbackVolatility: fallbackVol,
		Config:             cfg,
	})

	ss.logger.WithFields(logrus.Fields{
		"symbol":   symbol,
		"spot":     spot,
		"results":  len(results),
		"skipped":  tally.Total(),
		"dropped":  chain.DroppedRows,
		"fallback": fallbackVol,
	}).Info("Screened symbol")

	return results, tally, nil
}

// loadBars serves price history from the local cache, falling back to the
// market data service and caching what it fetched
func (ss *ScanService) loadBars(ctx context.Context, symbol string, end time.Time, lookbackDays int) ([]*interfaces.Bar, error) {
	cached, err := ss.store.GetBars(symbol, end, lookbackDays)
	if err != nil {
		ss.logger.WithError(err).WithField("symbol", symbol).Warn("Bar cache read failed")
	}
	if len(cached) >= lookbackDays+1 {
		return cached, nil
	}

	bars, err := ss.marketData.GetDailyBars(ctx, symbol, end, lookbackDays)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		// A thin cache still beats nothing
		return cached, nil
	}

	if err := ss.store.SaveBars(bars); err != nil {
		ss.logger.WithError(err).WithField("symbol", symbol).Warn("Bar cache write failed")
	}

	return bars, nil
}
