// Package errors provides the structured error taxonomy for LeaseLens.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Extraction errors (the source document could not be turned into text)
//   - 3XX: Provider errors (embedding or generation collaborator failed)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates invalid or unreadable configuration.
	CategoryConfig Category = "CONFIG"
	// CategoryExtraction indicates a source document that cannot be read.
	CategoryExtraction Category = "EXTRACTION"
	// CategoryProvider indicates a failed embedding or generation call.
	CategoryProvider Category = "PROVIDER"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"
	ErrCodeMissingAPIKey    = "ERR_104_MISSING_API_KEY"

	// Extraction errors (200-299)
	ErrCodeDocumentUnreadable  = "ERR_201_DOCUMENT_UNREADABLE"
	ErrCodeDocumentEncrypted   = "ERR_202_DOCUMENT_ENCRYPTED"
	ErrCodeDocumentEmpty       = "ERR_203_DOCUMENT_EMPTY"
	ErrCodeFileTooLarge        = "ERR_204_FILE_TOO_LARGE"
	ErrCodeUnsupportedDocument = "ERR_205_UNSUPPORTED_DOCUMENT"

	// Provider errors (300-399)
	ErrCodeProviderTimeout     = "ERR_301_PROVIDER_TIMEOUT"
	ErrCodeProviderUnavailable = "ERR_302_PROVIDER_UNAVAILABLE"
	ErrCodeProviderRateLimited = "ERR_303_PROVIDER_RATE_LIMITED"
	ErrCodeProviderRejected    = "ERR_304_PROVIDER_REJECTED"
	ErrCodeProviderBadResponse = "ERR_305_PROVIDER_BAD_RESPONSE"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty        = "ERR_403_QUERY_EMPTY"
	ErrCodeNoDocument        = "ERR_404_NO_DOCUMENT"
	ErrCodeSessionNotFound   = "ERR_405_SESSION_NOT_FOUND"
	ErrCodeSessionLimit      = "ERR_406_SESSION_LIMIT"

	// Internal errors (500-599)
	ErrCodeInternal    = "ERR_501_INTERNAL"
	ErrCodeIndexFailed = "ERR_502_INDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "ERR_201_..." -> '2'
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryExtraction
	case '3':
		return CategoryProvider
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryConfig:
		return SeverityFatal
	case CategoryValidation:
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeProviderTimeout, ErrCodeProviderUnavailable, ErrCodeProviderRateLimited:
		return true
	default:
		return false
	}
}
