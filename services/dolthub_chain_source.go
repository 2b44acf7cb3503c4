package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"option-scanner/interfaces"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	defaultDoltHubBaseURL = "https://www.dolthub.com/api/v1alpha1/post-no-preference/options/master"
	defaultRowLimit       = 10000
	defaultMaxRetries     = 3
)

// DoltHubChainSource fetches end-of-day option chains from the DoltHub
// options database via its SQL-over-HTTP API
type DoltHubChainSource struct {
	baseURL    string
	rowLimit   int
	maxRetries uint64
	logger     *logrus.Logger
	client     *http.Client
}

// NewDoltHubChainSource creates a new DoltHub chain source
func NewDoltHubChainSource() *DoltHubChainSource {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &DoltHubChainSource{
		baseURL:    defaultDoltHubBaseURL,
		rowLimit:   defaultRowLimit,
		maxRetries: defaultMaxRetries,
		logger:     logger,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// doltHubResponse represents the SQL API response envelope
type doltHubResponse struct {
	QueryExecutionStatus  string       `json:"query_execution_status"`
	QueryExecutionMessage string       `json:"query_execution_message"`
	Rows                  []doltHubRow `json:"rows"`
}

// doltHubRow represents one option_chain row. The API returns every column
// as a string.
type doltHubRow struct {
	Date       string `json:"date"`
	ActSymbol  string `json:"act_symbol"`
	Expiration string `json:"expiration"`
	Strike     string `json:"strike"`
	CallPut    string `json:"call_put"`
	Bid        string `json:"bid"`
	Ask        string `json:"ask"`
	Vol        string `json:"vol"`
	Delta      string `json:"delta"`
	Gamma      string `json:"gamma"`
	Theta      string `json:"theta"`
	Vega       string `json:"vega"`
	Rho        string `json:"rho"`
}

// FetchChain retrieves the option chain for an underlying on a given quote
// date. Transport and 5xx failures are retried with exponential backoff; an
// unparseable response fails immediately.
func (s *DoltHubChainSource) FetchChain(ctx context.Context, underlying string, asOf time.Time) (*interfaces.OptionChain, error) {
	query := fmt.Sprintf(
		"SELECT * FROM option_chain WHERE act_symbol = '%s' AND date = '%s' LIMIT %d",
		underlying, asOf.Format("2006-01-02"), s.rowLimit,
	)
	requestURL := fmt.Sprintf("%s?q=%s", s.baseURL, url.QueryEscape(query))

	s.logger.WithFields(logrus.Fields{
		"underlying": underlying,
		"date":       asOf.Format("2006-01-02"),
	}).Debug("Fetching option chain from DoltHub")

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.maxRetries), ctx)

	response, err := backoff.RetryWithData(func() (*doltHubResponse, error) {
		return s.fetchOnce(ctx, requestURL)
	}, policy)
	if err != nil {
		return nil, err
	}

	if response.QueryExecutionStatus != "Success" {
		return nil, fmt.Errorf("dolthub query failed for %s: %s: %w",
			underlying, response.QueryExecutionMessage, interfaces.ErrMalformedData)
	}

	chain := &interfaces.OptionChain{
		UnderlyingSymbol: underlying,
		AsOf:             asOf,
		Contracts:        make([]*interfaces.OptionContract, 0, len(response.Rows)),
	}

	for _, row := range response.Rows {
		contract, ok := s.normalizeRow(underlying, row)
		if !ok {
			chain.DroppedRows++
			continue
		}
		chain.Contracts = append(chain.Contracts, contract)
	}

	s.logger.WithFields(logrus.Fields{
		"underlying": underlying,
		"contracts":  len(chain.Contracts),
		"dropped":    chain.DroppedRows,
	}).Info("Fetched option chain")

	return chain, nil
}

// fetchOnce performs a single HTTP round trip. Errors wrapped in
// backoff.Permanent are not retried.
func (s *DoltHubChainSource) fetchOnce(ctx context.Context, requestURL string) (*doltHubResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dolthub request failed: %v: %w", err, interfaces.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("dolthub API error %d: %w", resp.StatusCode, interfaces.ErrNetwork)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, backoff.Permanent(fmt.Errorf("dolthub API error %d: %s: %w",
			resp.StatusCode, string(body), interfaces.ErrNetwork))
	}

	var response doltHubResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode dolthub response: %v: %w",
			err, interfaces.ErrMalformedData))
	}

	return &response, nil
}

// normalizeRow converts one source row into an OptionContract. Rows with
// unparseable required fields are dropped.
func (s *DoltHubChainSource) normalizeRow(underlying string, row doltHubRow) (*interfaces.OptionContract, bool) {
	expiration, err := time.Parse("2006-01-02", row.Expiration)
	if err != nil {
		return nil, false
	}
	quoteDate, err := time.Parse("2006-01-02", row.Date)
	if err != nil {
		return nil, false
	}

	strike, ok := parseDecimal(row.Strike)
	if !ok || strike <= 0 {
		return nil, false
	}
	bid, ok := parseDecimal(row.Bid)
	if !ok || bid < 0 {
		return nil, false
	}
	ask, ok := parseDecimal(row.Ask)
	if !ok || ask < 0 {
		return nil, false
	}

	var optionType string
	switch strings.ToLower(row.CallPut) {
	case "call":
		optionType = interfaces.OptionTypeCall
	case "put":
		optionType = interfaces.OptionTypePut
	default:
		return nil, false
	}

	// Implied volatility is optional; an absent or unparseable value means
	// the screener falls back to the historical estimate
	impliedVol, ok := parseDecimal(row.Vol)
	if !ok || impliedVol < 0 {
		impliedVol = 0
	}

	return &interfaces.OptionContract{
		Symbol:            occStyleSymbol(underlying, row.Expiration, optionType, row.Strike),
		UnderlyingSymbol:  underlying,
		OptionType:        optionType,
		Strike:            strike,
		Expiration:        expiration,
		Bid:               bid,
		Ask:               ask,
		MarketPrice:       midPrice(bid, ask),
		ImpliedVolatility: impliedVol,
		QuoteDate:         quoteDate,
	}, true
}

// midPrice returns the bid/ask mid, or the one-sided quote when the other
// side is empty
func midPrice(bid, ask float64) float64 {
	if bid > 0 && ask > 0 {
		return (bid + ask) / 2
	}
	if ask > 0 {
		return ask
	}
	return bid
}

// occStyleSymbol builds a compact option ticker, e.g. AAPL20231215C150
func occStyleSymbol(underlying, expiration, optionType, strike string) string {
	side := "C"
	if optionType == interfaces.OptionTypePut {
		side = "P"
	}
	return fmt.Sprintf("%s%s%s%s",
		underlying, strings.ReplaceAll(expiration, "-", ""), side, strings.TrimSpace(strike))
}

func parseDecimal(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
