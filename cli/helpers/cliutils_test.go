package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCliError(t *testing.T) {
	t.Run("Should create error with code and message", func(t *testing.T) {
		err := NewCliError("TEST_ERROR", "Test message")
		assert.Equal(t, "TEST_ERROR", err.Code)
		assert.Equal(t, "Test message", err.Message)
		assert.Empty(t, err.Details)
		assert.Equal(t, "TEST_ERROR: Test message", err.Error())
	})

	t.Run("Should include details in the message", func(t *testing.T) {
		err := NewCliError("TEST_ERROR", "Test message", "Details")
		assert.Equal(t, "TEST_ERROR: Test message (Details)", err.Error())
	})

	t.Run("Should keep the wrapped cause reachable", func(t *testing.T) {
		cause := errors.New("boom")
		err := NewCliError("X", "wrapped").Wrap(cause)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("Should add context lazily", func(t *testing.T) {
		err := NewCliError("TEST_ERROR", "Test message").WithContext("job_id", "42")
		assert.Equal(t, "42", err.Context["job_id"])
	})
}

func TestErrorClassification(t *testing.T) {
	t.Run("Should detect typed network and auth errors", func(t *testing.T) {
		netErr := fmt.Errorf("list jobs: %w", NewNetworkError("list jobs", errors.New("eof")))
		assert.True(t, IsNetworkError(netErr))
		assert.False(t, IsAuthError(netErr))

		authErr := fmt.Errorf("create job: %w", NewAuthError("token expired"))
		assert.True(t, IsAuthError(authErr))
	})

	t.Run("Should detect network failures by message", func(t *testing.T) {
		assert.True(t, IsNetworkError(errors.New("dial tcp: connection refused")))
		assert.False(t, IsNetworkError(errors.New("bad request")))
		assert.False(t, IsNetworkError(nil))
	})

	t.Run("Should detect timeouts", func(t *testing.T) {
		assert.True(t, IsTimeoutError(context.DeadlineExceeded))
		assert.True(t, IsTimeoutError(errors.New("request timed out")))
		assert.False(t, IsTimeoutError(errors.New("not found")))
	})
}

func TestHandleCommonErrors(t *testing.T) {
	t.Run("Should return nil for nil errors", func(t *testing.T) {
		var buf bytes.Buffer
		assert.NoError(t, HandleCommonErrors(&buf, nil, ModeText))
		assert.Empty(t, buf.String())
	})

	t.Run("Should categorize auth errors", func(t *testing.T) {
		var buf bytes.Buffer
		err := HandleCommonErrors(&buf, NewAuthError("no token"), ModeJSON)

		var cliErr *CliError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, "AUTH_ERROR", cliErr.Code)

		var out map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		assert.Equal(t, "AUTH_ERROR", out["code"])
		assert.Equal(t, "Authentication failed", out["error"])
	})

	t.Run("Should pass CliErrors through unchanged", func(t *testing.T) {
		var buf bytes.Buffer
		original := NewCliError("JOB_LOCKED", "A job is still running")
		err := HandleCommonErrors(&buf, original, ModeText)
		assert.Same(t, original, err)
		assert.Contains(t, buf.String(), "A job is still running")
	})

	t.Run("Should leave unknown errors as they are", func(t *testing.T) {
		var buf bytes.Buffer
		plain := errors.New("something odd")
		err := HandleCommonErrors(&buf, plain, ModeText)
		assert.Same(t, plain, err)
	})

	t.Run("Should map cancellation", func(t *testing.T) {
		var buf bytes.Buffer
		err := HandleCommonErrors(&buf, context.Canceled, ModeText)
		var cliErr *CliError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, "OPERATION_CANCELED", cliErr.Code)
	})
}

func TestValidation(t *testing.T) {
	t.Run("Should require non blank values", func(t *testing.T) {
		assert.Error(t, ValidateRequired("  ", "prompt"))
		assert.NoError(t, ValidateRequired("a cat", "prompt"))
	})

	t.Run("Should restrict values to the allowed set", func(t *testing.T) {
		assert.NoError(t, ValidateEnum("draft", []string{"latest", "draft"}, "follow"))
		err := ValidateEnum("oldest", []string{"latest", "draft"}, "follow")
		var cliErr *CliError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, "INVALID_ENUM", cliErr.Code)
	})
}

func TestFormatting(t *testing.T) {
	t.Run("Should truncate long strings with an ellipsis", func(t *testing.T) {
		assert.Equal(t, "hello", Truncate("hello", 10))
		assert.Equal(t, "hello w...", Truncate("hello world!", 10))
		assert.Equal(t, "he", Truncate("hello", 2))
	})

	t.Run("Should pluralize by count", func(t *testing.T) {
		assert.Equal(t, "job", Pluralize(1, "job", "jobs"))
		assert.Equal(t, "jobs", Pluralize(0, "job", "jobs"))
	})

	t.Run("Should render relative ages", func(t *testing.T) {
		now := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
		assert.Equal(t, "-", FormatAge(now, time.Time{}))
		assert.Equal(t, "just now", FormatAge(now, now.Add(-10*time.Second)))
		assert.Equal(t, "5m ago", FormatAge(now, now.Add(-5*time.Minute)))
		assert.Equal(t, "3h ago", FormatAge(now, now.Add(-3*time.Hour)))
		assert.Equal(t, "1d ago", FormatAge(now, now.Add(-25*time.Hour)))
	})
}
