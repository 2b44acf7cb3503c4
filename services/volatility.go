package services

import (
	"fmt"
	"math"

	"option-scanner/interfaces"

	"github.com/montanaflynn/stats"
)

// VolatilityEstimator derives an annualized volatility estimate from daily
// closing prices, used when a contract carries no implied volatility
type VolatilityEstimator struct {
	tradingDaysPerYear int
}

// NewVolatilityEstimator creates a volatility estimator. A non-positive
// tradingDaysPerYear falls back to the usual 252.
func NewVolatilityEstimator(tradingDaysPerYear int) *VolatilityEstimator {
	if tradingDaysPerYear <= 0 {
		tradingDaysPerYear = 252
	}
	return &VolatilityEstimator{tradingDaysPerYear: tradingDaysPerYear}
}

// Annualized computes the annualized close-to-close volatility: the standard
// deviation of log returns over the last lookbackDays observations, scaled by
// the square root of the trading days per year. A lookbackDays of 0 uses the
// whole series. A constant price series yields 0.
func (ve *VolatilityEstimator) Annualized(closes []float64, lookbackDays int) (float64, error) {
	if len(closes) < 2 {
		return 0, fmt.Errorf("need at least 2 closing prices, got %d: %w", len(closes), interfaces.ErrInsufficientData)
	}

	// Window of N returns needs N+1 closes, most-recent-last
	if lookbackDays > 0 && len(closes) > lookbackDays+1 {
		closes = closes[len(closes)-lookbackDays-1:]
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return 0, fmt.Errorf("non-positive closing price in window: %w", interfaces.ErrInvalidInput)
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}

	sd, err := stats.StandardDeviationPopulation(returns)
	if err != nil {
		return 0, fmt.Errorf("failed to compute standard deviation: %w", err)
	}

	return sd * math.Sqrt(float64(ve.tradingDaysPerYear)), nil
}
