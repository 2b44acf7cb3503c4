package services

import (
	"testing"
	"time"

	"option-scanner/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var screenAsOf = time.Date(2023, 10, 18, 0, 0, 0, 0, time.UTC)

func testScanConfig() interfaces.ScanConfig {
	return interfaces.ScanConfig{
		RiskFreeRate:       0.05,
		Threshold:          0.10,
		LookbackDays:       252,
		TradingDaysPerYear: 252,
	}
}

func testContract(optionType string, strike, marketPrice, impliedVol float64, expiration time.Time) *interfaces.OptionContract {
	return &interfaces.OptionContract{
		Symbol:            "TST" + expiration.Format("20060102") + optionType,
		UnderlyingSymbol:  "TST",
		OptionType:        optionType,
		Strike:            strike,
		Expiration:        expiration,
		MarketPrice:       marketPrice,
		ImpliedVolatility: impliedVol,
		QuoteDate:         screenAsOf,
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name        string
		theoretical float64
		market      float64
		want        string
		wantRatio   float64
	}{
		{"undervalued", 100, 85, interfaces.ClassificationUndervalued, 0.15},
		{"fair", 100, 95, interfaces.ClassificationFair, 0.05},
		{"overvalued", 100, 115, interfaces.ClassificationOvervalued, -0.15},
		{"undervalued at boundary", 100, 90, interfaces.ClassificationUndervalued, 0.10},
		{"overvalued at boundary", 100, 110, interfaces.ClassificationOvervalued, -0.10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ratio := Classify(tc.theoretical, tc.market, 0.10)
			assert.Equal(t, tc.want, got)
			assert.InDelta(t, tc.wantRatio, ratio, 1e-12)
		})
	}
}

func TestScreenEmptyChain(t *testing.T) {
	screener := NewScreener()

	results, tally := screener.Screen(ScreenInput{
		Contracts: nil,
		Spot:      100,
		AsOf:      screenAsOf,
		Config:    testScanConfig(),
	})

	assert.Empty(t, results)
	assert.Equal(t, 0, tally.Total())
}

func TestScreenClassifiesAgainstTheoretical(t *testing.T) {
	screener := NewScreener()
	expiration := screenAsOf.AddDate(0, 3, 0)
	cfg := testScanConfig()

	theoretical, err := BlackScholesPrice(PricingInput{
		Spot: 100, Strike: 100,
		TimeToExpiry: yearsToExpiry(screenAsOf, expiration),
		RiskFreeRate: cfg.RiskFreeRate, Volatility: 0.25,
		OptionType: interfaces.OptionTypeCall,
	})
	require.NoError(t, err)

	contracts := []*interfaces.OptionContract{
		testContract(interfaces.OptionTypeCall, 100, theoretical*0.80, 0.25, expiration),
		testContract(interfaces.OptionTypeCall, 100, theoretical*0.95, 0.25, expiration),
		testContract(interfaces.OptionTypeCall, 100, theoretical*1.25, 0.25, expiration),
	}

	results, tally := screener.Screen(ScreenInput{
		Contracts: contracts,
		Spot:      100,
		AsOf:      screenAsOf,
		Config:    cfg,
	})

	require.Len(t, results, 3)
	assert.Equal(t, 0, tally.Total())

	assert.Equal(t, interfaces.ClassificationUndervalued, results[0].Classification)
	assert.Equal(t, interfaces.ClassificationFair, results[1].Classification)
	assert.Equal(t, interfaces.ClassificationOvervalued, results[2].Classification)

	assert.InDelta(t, theoretical, results[0].TheoreticalPrice, 1e-9)
	assert.InDelta(t, 0.20, results[0].DeviationRatio, 1e-9)
	assert.InDelta(t, results[0].MarketPrice-theoretical, results[0].Deviation, 1e-9)
}

func TestScreenSkipsExpired(t *testing.T) {
	screener := NewScreener()

	contracts := []*interfaces.OptionContract{
		testContract(interfaces.OptionTypeCall, 100, 5, 0.25, screenAsOf),                  // expires today
		testContract(interfaces.OptionTypePut, 100, 5, 0.25, screenAsOf.AddDate(0, 0, -7)), // already expired
		testContract(interfaces.OptionTypeCall, 100, 5, 0.25, screenAsOf.AddDate(0, 1, 0)),
	}

	results, tally := screener.Screen(ScreenInput{
		Contracts: contracts,
		Spot:      100,
		AsOf:      screenAsOf,
		Config:    testScanConfig(),
	})

	require.Len(t, results, 1)
	assert.Equal(t, 2, tally.Expired)
	assert.Equal(t, 2, tally.Total())
}

func TestScreenSkipsWithoutVolatility(t *testing.T) {
	screener := NewScreener()
	expiration := screenAsOf.AddDate(0, 1, 0)

	results, tally := screener.Screen(ScreenInput{
		Contracts: []*interfaces.OptionContract{
			testContract(interfaces.OptionTypeCall, 100, 5, 0, expiration),
		},
		Spot:               100,
		AsOf:               screenAsOf,
		FallbackVolatility: 0, // no historical estimate, no default configured
		Config:             testScanConfig(),
	})

	assert.Empty(t, results)
	assert.Equal(t, 1, tally.InvalidVolatility)
}

func TestScreenVolatilityPrecedence(t *testing.T) {
	screener := NewScreener()
	expiration := screenAsOf.AddDate(0, 1, 0)
	cfg := testScanConfig()
	cfg.DefaultVolatility = 0.60

	contracts := []*interfaces.OptionContract{
		testContract(interfaces.OptionTypeCall, 100, 5, 0.45, expiration), // implied wins
		testContract(interfaces.OptionTypeCall, 100, 5, 0, expiration),    // falls back to historical
	}

	results, _ := screener.Screen(ScreenInput{
		Contracts:          contracts,
		Spot:               100,
		AsOf:               screenAsOf,
		FallbackVolatility: 0.30,
		Config:             cfg,
	})

	require.Len(t, results, 2)
	assert.Equal(t, 0.45, results[0].Volatility)
	assert.Equal(t, 0.30, results[1].Volatility)

	// With no implied and no historical estimate, the configured default
	// applies
	results, _ = screener.Screen(ScreenInput{
		Contracts: []*interfaces.OptionContract{
			testContract(interfaces.OptionTypeCall, 100, 5, 0, expiration),
		},
		Spot:   100,
		AsOf:   screenAsOf,
		Config: cfg,
	})
	require.Len(t, results, 1)
	assert.Equal(t, 0.60, results[0].Volatility)
}

func TestScreenSkipsNegativeMarketPrice(t *testing.T) {
	screener := NewScreener()
	expiration := screenAsOf.AddDate(0, 1, 0)

	results, tally := screener.Screen(ScreenInput{
		Contracts: []*interfaces.OptionContract{
			testContract(interfaces.OptionTypeCall, 100, -1, 0.25, expiration),
		},
		Spot:   100,
		AsOf:   screenAsOf,
		Config: testScanConfig(),
	})

	assert.Empty(t, results)
	assert.Equal(t, 1, tally.InvalidPrice)
}

func TestScreenPreservesInputOrder(t *testing.T) {
	screener := NewScreener()
	expiration := screenAsOf.AddDate(0, 2, 0)

	var contracts []*interfaces.OptionContract
	strikes := []float64{120, 80, 105, 95, 110}
	for _, strike := range strikes {
		contracts = append(contracts, testContract(interfaces.OptionTypeCall, strike, 5, 0.25, expiration))
	}

	results, _ := screener.Screen(ScreenInput{
		Contracts: contracts,
		Spot:      100,
		AsOf:      screenAsOf,
		Config:    testScanConfig(),
	})

	require.Len(t, results, len(strikes))
	for i, result := range results {
		assert.Equal(t, strikes[i], result.Contract.Strike)
	}
}

func TestYearsToExpiry(t *testing.T) {
	assert.InDelta(t, 1.0, yearsToExpiry(screenAsOf, screenAsOf.AddDate(0, 0, 365)), 1e-9)
	assert.InDelta(t, 30.0/365.0, yearsToExpiry(screenAsOf, screenAsOf.AddDate(0, 0, 30)), 1e-9)
	assert.Equal(t, 0.0, yearsToExpiry(screenAsOf, screenAsOf))
	assert.Less(t, yearsToExpiry(screenAsOf, screenAsOf.AddDate(0, 0, -1)), 0.0)
}
