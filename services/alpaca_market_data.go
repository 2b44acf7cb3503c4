package services

import (
	"context"
	"fmt"
	"time"

	"option-scanner/interfaces"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/sirupsen/logrus"
)

// AlpacaMarketDataService supplies underlying daily price history from the
// Alpaca market data API
type AlpacaMarketDataService struct {
	client *marketdata.Client
	logger *logrus.Logger
}

// NewAlpacaMarketDataService creates a new Alpaca market data service
func NewAlpacaMarketDataService(apiKey, secretKey string) *AlpacaMarketDataService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &AlpacaMarketDataService{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: secretKey,
		}),
		logger: logger,
	}
}

// GetDailyBars retrieves daily bars ending at the given date, covering at
// least lookbackDays trading days, oldest first
func (s *AlpacaMarketDataService) GetDailyBars(ctx context.Context, symbol string, end time.Time, lookbackDays int) ([]*interfaces.Bar, error) {
	if lookbackDays <= 0 {
		lookbackDays = 1
	}

	// Calendar buffer over trading days to cover weekends and holidays
	start := end.AddDate(0, 0, -(lookbackDays*7/5 + 10))

	s.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"start":  start.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
	}).Debug("Fetching daily bars from Alpaca")

	alpacaBars, err := s.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      start,
		End:        end,
		Adjustment: marketdata.Split,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bars for %s: %v: %w", symbol, err, interfaces.ErrNetwork)
	}

	bars := make([]*interfaces.Bar, 0, len(alpacaBars))
	for _, bar := range alpacaBars {
		bars = append(bars, &interfaces.Bar{
			Symbol: symbol,
			Date:   bar.Timestamp,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: int64(bar.Volume),
		})
	}

	s.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"count":  len(bars),
	}).Debug("Fetched daily bars")

	return bars, nil
}
