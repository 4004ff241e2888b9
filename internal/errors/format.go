package errors

import (
	"fmt"
	"strings"
)

// FormatForUser returns a user-facing message.
// If debug is true, the underlying cause is included.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}

	le, ok := As(err)
	if !ok {
		return err.Error()
	}

	var sb strings.Builder

	sb.WriteString("Error: ")
	sb.WriteString(le.Message)
	sb.WriteString("\n")

	if le.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(le.Suggestion)
		sb.WriteString("\n")
	}

	if debug && le.Cause != nil {
		sb.WriteString("\nCause: ")
		sb.WriteString(le.Cause.Error())
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\n[%s]", le.Code))

	return sb.String()
}

// FormatForCLI formats an error for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	le, ok := As(err)
	if !ok {
		le = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", le.Message))
	if le.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", le.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", le.Code))

	return sb.String()
}

// JSONError is the wire representation of an error used by the HTTP and MCP surfaces.
type JSONError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// ToJSONError converts err into its wire representation.
// Causes are only included when debug is set.
func ToJSONError(err error, debug bool) JSONError {
	le, ok := As(err)
	if !ok {
		le = Wrap(ErrCodeInternal, err)
	}

	je := JSONError{
		Code:       le.Code,
		Message:    le.Message,
		Category:   string(le.Category),
		Severity:   string(le.Severity),
		Details:    le.Details,
		Suggestion: le.Suggestion,
		Retryable:  le.Retryable,
	}
	if debug && le.Cause != nil {
		je.Cause = le.Cause.Error()
	}
	return je
}

// FormatForLog returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) []any {
	if err == nil {
		return nil
	}

	le, ok := As(err)
	if !ok {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error_code", le.Code,
		"message", le.Message,
		"category", string(le.Category),
		"retryable", le.Retryable,
	}
	if le.Cause != nil {
		attrs = append(attrs, "cause", le.Cause.Error())
	}
	for k, v := range le.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	return attrs
}
