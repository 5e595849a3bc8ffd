package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// CliError is the structured error every command returns to the user.
type CliError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   string         `json:"details,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	cause     error
}

func (e *CliError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CliError) Unwrap() error {
	return e.cause
}

func NewCliError(code, message string, details ...string) *CliError {
	err := &CliError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// Wrap keeps cause reachable through errors.Is and errors.As.
func (e *CliError) Wrap(cause error) *CliError {
	e.cause = cause
	return e
}

func (e *CliError) WithContext(key string, value any) *CliError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out")
}

var networkKeywords = []string{
	"connection refused", "connection reset", "no route to host",
	"network unreachable", "no such host", "temporary failure",
}

func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetwork) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, keyword := range networkKeywords {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrAuth)
}

// HandleCommonErrors turns cancellations, timeouts, network and auth failures
// into CliErrors and writes the result to w.
func HandleCommonErrors(w io.Writer, err error, mode Mode) error {
	if err == nil {
		return nil
	}
	if cliErr := categorizeError(err); cliErr != nil {
		err = cliErr
	}
	OutputError(w, err, mode)
	return err
}

func categorizeError(err error) *CliError {
	var cliErr *CliError
	switch {
	case errors.As(err, &cliErr):
		return cliErr
	case errors.Is(err, context.Canceled):
		return NewCliError("OPERATION_CANCELED", "Operation was canceled").Wrap(err)
	case IsTimeoutError(err):
		return NewCliError("OPERATION_TIMEOUT", "Operation timed out", err.Error()).Wrap(err)
	case IsNetworkError(err):
		return NewCliError("NETWORK_ERROR", "Network connection failed", err.Error()).Wrap(err)
	case IsAuthError(err):
		return NewCliError("AUTH_ERROR", "Authentication failed", err.Error()).Wrap(err)
	default:
		return nil
	}
}

func FormatError(err error, mode Mode) string {
	if err == nil {
		return ""
	}
	message, details := extractErrorInfo(err)
	if mode == ModeJSON {
		out := map[string]any{"error": message, "details": details}
		var cliErr *CliError
		if errors.As(err, &cliErr) {
			out["code"] = cliErr.Code
		}
		data, mErr := json.Marshal(out)
		if mErr != nil {
			return `{"error":"JSON marshaling failed","details":""}`
		}
		return string(data)
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	result := style.Render("Error: " + message)
	if details != "" {
		detailStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
		result += "\n" + detailStyle.Render("Details: "+details)
	}
	return result
}

func extractErrorInfo(err error) (message, details string) {
	var cliErr *CliError
	if errors.As(err, &cliErr) {
		return cliErr.Message, cliErr.Details
	}
	return err.Error(), ""
}

func OutputError(w io.Writer, err error, mode Mode) {
	if err == nil {
		return
	}
	fmt.Fprintln(w, FormatError(err, mode))
}

func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return NewCliError("REQUIRED_FIELD", fmt.Sprintf("%s is required", fieldName))
	}
	return nil
}

func ValidateEnum(value string, allowed []string, fieldName string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return NewCliError("INVALID_ENUM",
		fmt.Sprintf("%s must be one of: %s", fieldName, strings.Join(allowed, ", ")),
		fmt.Sprintf("provided: %s", value))
}

// Truncate shortens s to maxLength runes, ending with "..." when there is room.
func Truncate(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-3]) + "..."
}

func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// FormatAge renders how long ago t was, or "-" for the zero time.
func FormatAge(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
