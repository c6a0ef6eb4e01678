package errors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:      maxRetries,
		BaseDelay:       1 * time.Millisecond,
		MaxDelay:        1 * time.Second,
		BackoffFactor:   2.0,
		Jitter:          false,
		RetryableErrors: []ErrorType{ErrTypeStorage},
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, config.BaseDelay)
	assert.Equal(t, 30*time.Second, config.MaxDelay)
	assert.Equal(t, 2.0, config.BackoffFactor)
	assert.True(t, config.Jitter)
	assert.Equal(t, []ErrorType{ErrTypeStorage}, config.RetryableErrors)
}

func TestConnectRetryConfig(t *testing.T) {
	config := ConnectRetryConfig()

	assert.Equal(t, 8, config.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, config.BaseDelay)
	assert.Equal(t, 10*time.Second, config.MaxDelay)
}

func TestRetryer_Execute_Success(t *testing.T) {
	retryer := NewRetryer(fastRetryConfig(3))

	callCount := 0
	err := retryer.Execute(context.Background(), func() error {
		callCount++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestRetryer_Execute_RetryableError(t *testing.T) {
	retryer := NewRetryer(fastRetryConfig(3))

	callCount := 0
	err := retryer.Execute(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return NewStorageError(ErrCodeDatabaseConnection, "connection refused", nil)
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestRetryer_Execute_NonRetryableError(t *testing.T) {
	retryer := NewRetryer(fastRetryConfig(3))

	callCount := 0
	err := retryer.Execute(context.Background(), func() error {
		callCount++
		return NewCircularReferenceError(ErrCodeCircularReference, "cycle")
	})

	require.Error(t, err)
	assert.Equal(t, 1, callCount)
	assert.True(t, IsType(err, ErrTypeCircularReference))
}

func TestRetryer_Execute_MaxRetriesExceeded(t *testing.T) {
	retryer := NewRetryer(fastRetryConfig(2))

	callCount := 0
	err := retryer.Execute(context.Background(), func() error {
		callCount++
		return NewStorageError(ErrCodeDatabaseConnection, "connection refused", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, callCount)

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Details, "Failed after 2 retries")
}

func TestRetryer_Execute_ContextCanceled(t *testing.T) {
	config := fastRetryConfig(3)
	config.BaseDelay = 100 * time.Millisecond
	retryer := NewRetryer(config)
	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	err := retryer.Execute(ctx, func() error {
		callCount++
		if callCount == 1 {
			go func() {
				time.Sleep(10 * time.Millisecond)
				cancel()
			}()
			return NewStorageError(ErrCodeDatabaseConnection, "failure", nil)
		}
		return nil
	})

	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 1, callCount)
}

func TestExecuteWithResult(t *testing.T) {
	t.Run("eventual success", func(t *testing.T) {
		callCount := 0
		result, err := ExecuteWithResult(context.Background(), fastRetryConfig(3), func() (string, error) {
			callCount++
			if callCount < 3 {
				return "", NewStorageError(ErrCodeDatabaseConnection, "temporary failure", nil)
			}
			return "connected", nil
		})

		assert.NoError(t, err)
		assert.Equal(t, "connected", result)
		assert.Equal(t, 3, callCount)
	})

	t.Run("persistent failure returns last result", func(t *testing.T) {
		callCount := 0
		result, err := ExecuteWithResult(context.Background(), fastRetryConfig(2), func() (string, error) {
			callCount++
			return "partial", NewStorageError(ErrCodeDatabaseConnection, "persistent failure", nil)
		})

		assert.Error(t, err)
		assert.Equal(t, "partial", result)
		assert.Equal(t, 3, callCount)
	})
}

func TestRetryer_calculateDelay(t *testing.T) {
	tests := []struct {
		name     string
		config   *RetryConfig
		attempt  int
		minDelay time.Duration
		maxDelay time.Duration
	}{
		{
			name:     "first retry",
			config:   &RetryConfig{BaseDelay: 100 * time.Millisecond, BackoffFactor: 2.0, MaxDelay: 10 * time.Second},
			attempt:  1,
			minDelay: 100 * time.Millisecond,
			maxDelay: 100 * time.Millisecond,
		},
		{
			name:     "second retry",
			config:   &RetryConfig{BaseDelay: 100 * time.Millisecond, BackoffFactor: 2.0, MaxDelay: 10 * time.Second},
			attempt:  2,
			minDelay: 200 * time.Millisecond,
			maxDelay: 200 * time.Millisecond,
		},
		{
			name:     "max delay reached",
			config:   &RetryConfig{BaseDelay: 100 * time.Millisecond, BackoffFactor: 2.0, MaxDelay: 150 * time.Millisecond},
			attempt:  2,
			minDelay: 150 * time.Millisecond,
			maxDelay: 150 * time.Millisecond,
		},
		{
			name:     "with jitter",
			config:   &RetryConfig{BaseDelay: 100 * time.Millisecond, BackoffFactor: 2.0, MaxDelay: 10 * time.Second, Jitter: true},
			attempt:  1,
			minDelay: 90 * time.Millisecond,
			maxDelay: 110 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay := NewRetryer(tt.config).calculateDelay(tt.attempt)

			assert.GreaterOrEqual(t, delay, tt.minDelay)
			assert.LessOrEqual(t, delay, tt.maxDelay)
		})
	}
}
