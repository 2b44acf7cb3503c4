package services

import (
	"time"

	"option-scanner/interfaces"

	"github.com/sirupsen/logrus"
)

// Screener prices every contract in a fetched chain and classifies it as
// undervalued, overvalued or fair against the configured threshold
type Screener struct {
	logger *logrus.Logger
}

// NewScreener creates a new screener
func NewScreener() *Screener {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &Screener{logger: logger}
}

// ScreenInput bundles one screening pass over a single underlying
type ScreenInput struct {
	Contracts []*interfaces.OptionContract
	Spot      float64
	AsOf      time.Time
	// FallbackVolatility is the historical estimate used when a contract
	// carries no implied volatility. 0 means unavailable.
	FallbackVolatility float64
	Config             interfaces.ScanConfig
}

// SkipTally counts contracts excluded from a screening pass, by reason
type SkipTally struct {
	Expired           int
	InvalidVolatility int
	InvalidPrice      int
	PricingError      int
}

// Total returns the number of skipped contracts
func (t SkipTally) Total() int {
	return t.Expired + t.InvalidVolatility + t.InvalidPrice + t.PricingError
}

// Classify compares a market price against the theoretical price and returns
// the classification label and the deviation ratio
// (theoretical - market) / theoretical.
func Classify(theoretical, market, threshold float64) (string, float64) {
	ratio := (theoretical - market) / theoretical

	switch {
	case ratio >= threshold:
		return interfaces.ClassificationUndervalued, ratio
	case ratio <= -threshold:
		return interfaces.ClassificationOvervalued, ratio
	default:
		return interfaces.ClassificationFair, ratio
	}
}

// Screen performs a single pass over the chain. Result order mirrors input
// order; contracts that fail validation are tallied and excluded, never
// aborting the pass.
func (s *Screener) Screen(in ScreenInput) ([]*interfaces.ScreeningResult, SkipTally) {
	results := make([]*interfaces.ScreeningResult, 0, len(in.Contracts))
	var tally SkipTally

	for _, contract := range in.Contracts {
		T := yearsToExpiry(in.AsOf, contract.Expiration)
		if T <= 0 {
			tally.Expired++
			s.logger.WithFields(logrus.Fields{
				"symbol":     contract.Symbol,
				"expiration": contract.Expiration.Format("2006-01-02"),
			}).Debug("Skipping expired contract")
			continue
		}

		if contract.MarketPrice < 0 {
			tally.InvalidPrice++
			s.logger.WithField("symbol", contract.Symbol).Warn("Skipping contract with negative market price")
			continue
		}

		sigma := resolveVolatility(contract, in.FallbackVolatility, in.Config.DefaultVolatility)
		if sigma <= 0 {
			tally.InvalidVolatility++
			s.logger.WithField("symbol", contract.Symbol).Debug("Skipping contract with no usable volatility")
			continue
		}

		theoretical, err := BlackScholesPrice(PricingInput{
			Spot:          in.Spot,
			Strike:        contract.Strike,
			TimeToExpiry:  T,
			RiskFreeRate:  in.Config.RiskFreeRate,
			DividendYield: in.Config.DividendYield,
			Volatility:    sigma,
			OptionType:    contract.OptionType,
		})
		if err != nil {
			tally.PricingError++
			s.logger.WithError(err).WithField("symbol", contract.Symbol).Warn("Skipping contract that failed pricing")
			continue
		}

		if theoretical < minTheoreticalPrice {
			// Deviation ratio is undefined against a zero price
			tally.PricingError++
			s.logger.WithField("symbol", contract.Symbol).Debug("Skipping contract with negligible theoretical value")
			continue
		}

		classification, ratio := Classify(theoretical, contract.MarketPrice, in.Config.Threshold)

		results = append(results, &interfaces.ScreeningResult{
			Contract:         contract,
			SpotPrice:        in.Spot,
			RiskFreeRate:     in.Config.RiskFreeRate,
			Volatility:       sigma,
			TimeToExpiry:     T,
			TheoreticalPrice: theoretical,
			MarketPrice:      contract.MarketPrice,
			Deviation:        contract.MarketPrice - theoretical,
			DeviationRatio:   ratio,
			Classification:   classification,
		})
	}

	return results, tally
}

const minTheoreticalPrice = 1e-10

// resolveVolatility picks the volatility for pricing: the contract's implied
// volatility when quoted, else the historical estimate, else the configured
// default. Returns 0 when none is usable.
func resolveVolatility(contract *interfaces.OptionContract, fallback, defaultVol float64) float64 {
	if contract.ImpliedVolatility > 0 {
		return contract.ImpliedVolatility
	}
	if fallback > 0 {
		return fallback
	}
	return defaultVol
}

// yearsToExpiry is the calendar-day difference between the scan date and the
// expiration date, divided by 365
func yearsToExpiry(asOf, expiration time.Time) float64 {
	days := expiration.Truncate(24*time.Hour).Sub(asOf.Truncate(24*time.Hour)).Hours() / 24
	return days / 365.0
}
