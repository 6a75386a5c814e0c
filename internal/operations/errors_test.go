package operations

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "stockpipe/internal/errors"
)

func TestOperationError(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name      string
		err       *OperationError
		wantType  ErrorType
		retryable bool
		contains  string
	}{
		{"validation", NewValidationError("ingest", "no source"), ErrorTypeValidation, false, "[validation] ingest: no source"},
		{"execution", NewExecutionError("persist", cause, true), ErrorTypeExecution, true, "persist: step execution failed: boom"},
		{"timeout", NewTimeoutError("derive", context.DeadlineExceeded), ErrorTypeTimeout, false, "exceeded its timeout"},
		{"cancellation", NewCancellationError("derive", context.Canceled), ErrorTypeCancellation, false, "cancelled"},
		{"fatal", NewFatalError("bad registry", cause), ErrorTypeFatal, false, "[fatal] bad registry: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("run: %w", tt.err)
			assert.Equal(t, tt.wantType, GetErrorType(wrapped))
			assert.Equal(t, tt.retryable, IsRetryable(wrapped))
			assert.Contains(t, tt.err.Error(), tt.contains)
		})
	}
}

func TestGetErrorType_Plain(t *testing.T) {
	assert.Equal(t, ErrorType(""), GetErrorType(nil))
	assert.Equal(t, ErrorTypeExecution, GetErrorType(errors.New("x")))
}

func TestClassify(t *testing.T) {
	m := &Manager{}

	srcErr := apperrors.NewSourceUnavailableError("in.csv", errors.New("locked"))
	got := m.classify(context.Background(), "ingest", srcErr)
	assert.Equal(t, ErrorTypeExecution, got.Type)
	assert.True(t, got.Retryable)
	assert.True(t, apperrors.IsType(got, apperrors.ErrTypeSourceUnavailable))

	got = m.classify(context.Background(), "derive", fmt.Errorf("slow: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrorTypeTimeout, got.Type)
	assert.True(t, got.Retryable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got = m.classify(ctx, "derive", context.Canceled)
	assert.Equal(t, ErrorTypeCancellation, got.Type)

	got = m.classify(context.Background(), "persist", NewValidationError("", "bad"))
	assert.Equal(t, "persist", got.Step)
}
