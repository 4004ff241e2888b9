package errors

import (
	stderrors "errors"
	"fmt"
)

// LensError is the structured error type for LeaseLens.
// It carries enough context for logging, retry decisions and user presentation.
type LensError struct {
	// Code is the unique error code (e.g., "ERR_202_DOCUMENT_ENCRYPTED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Extraction, Provider, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *LensError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *LensError) Unwrap() error {
	return e.Cause
}

// Is matches by code so errors.Is works against sentinel LensErrors.
func (e *LensError) Is(target error) bool {
	if t, ok := target.(*LensError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *LensError) WithDetail(key, value string) *LensError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *LensError) WithSuggestion(suggestion string) *LensError {
	e.Suggestion = suggestion
	return e
}

// New creates a new LensError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *LensError {
	return &LensError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a LensError from an existing error.
// If err already is a LensError it is returned unchanged.
func Wrap(code string, err error) *LensError {
	if err == nil {
		return nil
	}
	var le *LensError
	if stderrors.As(err, &le) {
		return le
	}
	return New(code, err.Error(), err)
}

// ConfigurationError creates a configuration error. These fail before any work starts.
func ConfigurationError(message string, cause error) *LensError {
	return New(ErrCodeConfigInvalid, message, cause).
		WithSuggestion("Check the configuration file and LEASELENS_* environment variables")
}

// ExtractionError creates an error for a document that cannot be read.
// code must be one of the ERR_2XX codes.
func ExtractionError(code string, message string, cause error) *LensError {
	e := New(code, message, cause)
	switch code {
	case ErrCodeDocumentEncrypted:
		e.Suggestion = "Remove the password protection and upload the document again"
	case ErrCodeDocumentEmpty:
		e.Suggestion = "The document has no extractable text; scanned PDFs need OCR first"
	case ErrCodeFileTooLarge:
		e.Suggestion = "Upload a smaller document"
	case ErrCodeUnsupportedDocument:
		e.Suggestion = "Supported formats are PDF, DOCX, Markdown and plain text"
	}
	return e
}

// ProviderError creates an error for a failed embedding or generation call.
func ProviderError(code string, message string, cause error) *LensError {
	return New(code, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *LensError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *LensError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first LensError in err's chain.
func As(err error) (*LensError, bool) {
	var le *LensError
	if err == nil || !stderrors.As(err, &le) {
		return nil, false
	}
	return le, true
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	le, ok := As(err)
	return ok && le.Retryable
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	le, ok := As(err)
	return ok && le.Severity == SeverityFatal
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	return GetCategory(err) == CategoryConfig
}

// IsExtraction reports whether err is an ExtractionError.
func IsExtraction(err error) bool {
	return GetCategory(err) == CategoryExtraction
}

// IsProvider reports whether err is a ProviderError.
func IsProvider(err error) bool {
	return GetCategory(err) == CategoryProvider
}

// GetCode extracts the error code. Returns empty string if err is not a LensError.
func GetCode(err error) string {
	if le, ok := As(err); ok {
		return le.Code
	}
	return ""
}

// GetCategory extracts the category. Returns empty string if err is not a LensError.
func GetCategory(err error) Category {
	if le, ok := As(err); ok {
		return le.Category
	}
	return ""
}
