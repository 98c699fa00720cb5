package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrTooMany      = errors.New("too many requests")
	ErrInternal     = errors.New("internal")

	// Ingestion.
	ErrIngestion      = errors.New("ingestion failed")
	ErrSourceTooLarge = errors.New("source text too large")

	// Provider taxonomy. Auth failures are fatal, the other three are
	// transient and count against the retry budget.
	ErrProviderAuth        = errors.New("provider auth failed")
	ErrProviderRateLimited = errors.New("provider rate limited")
	ErrProviderTimeout     = errors.New("provider timeout")
	ErrProviderUnavailable = errors.New("provider unavailable")

	// Synthesis: provider failed before the first token, no message was
	// persisted.
	ErrSynthesisProvider = errors.New("synthesis provider failed")

	// Generation jobs.
	ErrJobValidation = errors.New("structural validation failed")
	ErrJobCancelled  = errors.New("cancelled")
	ErrJobTerminal   = errors.New("job already in terminal state")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsTransientProvider reports whether err belongs to the retryable provider
// classes. ErrProviderAuth is deliberately excluded.
func IsTransientProvider(err error) bool {
	return errors.Is(err, ErrProviderRateLimited) ||
		errors.Is(err, ErrProviderTimeout) ||
		errors.Is(err, ErrProviderUnavailable)
}
