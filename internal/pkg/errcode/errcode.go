package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrForbidden
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrTooMany
	ErrInternal
	ErrIngestionFailed
	ErrSourceTooLarge
	ErrProviderAuth
	ErrProviderRateLimited
	ErrProviderTimeout
	ErrProviderUnavailable
	ErrSynthesisFailed
	ErrJobValidation
	ErrJobCancelled
	ErrJobTerminal
)
