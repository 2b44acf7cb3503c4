package interfaces

import "errors"

// Error taxonomy for the scanning pipeline. Callers match with errors.Is.
var (
	// ErrInvalidInput marks bad pricing parameters; the screener recovers
	// by skipping the contract.
	ErrInvalidInput = errors.New("invalid pricing input")

	// ErrInsufficientData marks a volatility estimation window with too
	// little history.
	ErrInsufficientData = errors.New("insufficient historical data")

	// ErrNetwork marks a failed fetch from an external data source after
	// retries are exhausted. Fatal for the affected underlying.
	ErrNetwork = errors.New("network error")

	// ErrMalformedData marks an external response that could not be parsed.
	ErrMalformedData = errors.New("malformed data")

	// ErrStorage marks a persistence failure. Results are not considered
	// saved until the store confirms.
	ErrStorage = errors.New("storage error")
)
