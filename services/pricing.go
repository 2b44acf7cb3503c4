package services

import (
	"fmt"
	"math"

	"option-scanner/interfaces"

	"gonum.org/v1/gonum/stat/distuv"
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// NormCDF is the standard normal cumulative distribution function
func NormCDF(x float64) float64 {
	return stdNormal.CDF(x)
}

// PricingInput bundles the parameters for one Black-Scholes evaluation.
// Time to expiry is in years, rates and volatility are annualized.
type PricingInput struct {
	Spot          float64
	Strike        float64
	TimeToExpiry  float64
	RiskFreeRate  float64
	DividendYield float64
	Volatility    float64
	OptionType    string // "CALL" or "PUT"
}

// BlackScholesPrice returns the theoretical price of a European option under
// the Black-Scholes model with an optional continuous dividend yield.
// Pure and deterministic; the result is always non-negative.
func BlackScholesPrice(in PricingInput) (float64, error) {
	if in.Spot <= 0 {
		return 0, fmt.Errorf("spot must be positive, got %v: %w", in.Spot, interfaces.ErrInvalidInput)
	}
	if in.Strike <= 0 {
		return 0, fmt.Errorf("strike must be positive, got %v: %w", in.Strike, interfaces.ErrInvalidInput)
	}
	if in.TimeToExpiry <= 0 {
		return 0, fmt.Errorf("time to expiry must be positive, got %v: %w", in.TimeToExpiry, interfaces.ErrInvalidInput)
	}
	if in.Volatility <= 0 {
		return 0, fmt.Errorf("volatility must be positive, got %v: %w", in.Volatility, interfaces.ErrInvalidInput)
	}

	S := in.Spot
	K := in.Strike
	T := in.TimeToExpiry
	r := in.RiskFreeRate
	q := in.DividendYield
	sigma := in.Volatility

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r-q+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	discountedSpot := S * math.Exp(-q*T)
	discountedStrike := K * math.Exp(-r*T)

	switch in.OptionType {
	case interfaces.OptionTypeCall:
		return discountedSpot*NormCDF(d1) - discountedStrike*NormCDF(d2), nil
	case interfaces.OptionTypePut:
		return discountedStrike*NormCDF(-d2) - discountedSpot*NormCDF(-d1), nil
	default:
		return 0, fmt.Errorf("unknown option type %q: %w", in.OptionType, interfaces.ErrInvalidInput)
	}
}
