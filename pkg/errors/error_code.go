package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeMissingParameter     ErrorCode = 102
	ErrCodeInvalidPrice         ErrorCode = 103
	ErrCodeInvalidQuantity      ErrorCode = 104
	ErrCodeInvalidSchedule      ErrorCode = 105

	// Venue errors (200-299)
	ErrCodeTransient         ErrorCode = 200
	ErrCodeNotFound          ErrorCode = 201
	ErrCodeRejected          ErrorCode = 202
	ErrCodeRetriesExhausted  ErrorCode = 203
	ErrCodeNoAccount         ErrorCode = 204
	ErrCodeInstrumentUnknown ErrorCode = 205
	ErrCodeNoLastPrice       ErrorCode = 206

	// Order lifecycle errors (500-599)
	ErrCodeOrderFailed     ErrorCode = 500
	ErrCodeCancelFailed    ErrorCode = 501
	ErrCodePollFailed      ErrorCode = 502
	ErrCodeReconcileFailed ErrorCode = 503

	// Engine errors (600-699)
	ErrCodeEngineInitFailed  ErrorCode = 600
	ErrCodeTooManyFailures   ErrorCode = 601
	ErrCodeStrategyFailed    ErrorCode = 602
	ErrCodeNoTradeableSymbol ErrorCode = 603

	// Journal errors (700-799)
	ErrCodeJournalWriteFailed ErrorCode = 700
	ErrCodeJournalReadFailed  ErrorCode = 701
)
