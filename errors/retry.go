package errors

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryConfig defines retry behavior configuration
type RetryConfig struct {
	MaxRetries      int           `json:"max_retries" yaml:"max_retries"`
	BaseDelay       time.Duration `json:"base_delay" yaml:"base_delay"`
	MaxDelay        time.Duration `json:"max_delay" yaml:"max_delay"`
	BackoffFactor   float64       `json:"backoff_factor" yaml:"backoff_factor"`
	Jitter          bool          `json:"jitter" yaml:"jitter"`
	RetryableErrors []ErrorType   `json:"retryable_errors" yaml:"retryable_errors"`
}

// DefaultRetryConfig returns a sensible default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:      3,
		BaseDelay:       100 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		BackoffFactor:   2.0,
		Jitter:          true,
		RetryableErrors: []ErrorType{ErrTypeStorage},
	}
}

// ConnectRetryConfig returns retry config for establishing the backing-store
// connection at startup, when the database may still be coming up.
func ConnectRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:      8,
		BaseDelay:       250 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		BackoffFactor:   2.0,
		Jitter:          true,
		RetryableErrors: []ErrorType{ErrTypeStorage},
	}
}

// RetryableOperation represents an operation that can be retried
type RetryableOperation func() error

// RetryableOperationWithResult represents an operation that returns a result and can be retried
type RetryableOperationWithResult[T any] func() (T, error)

// Retryer handles retry logic with exponential backoff
type Retryer struct {
	config *RetryConfig
}

// NewRetryer creates a new retryer with the given configuration
func NewRetryer(config *RetryConfig) *Retryer {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &Retryer{config: config}
}

// Execute executes an operation with retry logic
func (r *Retryer) Execute(ctx context.Context, operation RetryableOperation) error {
	_, err := ExecuteWithResult(ctx, r.config, func() (struct{}, error) {
		return struct{}{}, operation()
	})
	return err
}

// ExecuteWithResult executes an operation that returns a result with retry logic
func ExecuteWithResult[T any](ctx context.Context, config *RetryConfig, operation RetryableOperationWithResult[T]) (T, error) {
	retryer := NewRetryer(config)
	var result T
	var lastErr error

	for attempt := 0; attempt <= retryer.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := retryer.calculateDelay(attempt)

			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(delay):
			}
		}

		res, err := operation()
		if err == nil {
			return res, nil
		}

		result = res
		lastErr = err

		if !retryer.shouldRetry(ctx, err, attempt) {
			break
		}
	}

	return result, retryer.wrapFinalError(lastErr)
}

// calculateDelay calculates the delay for the given attempt using exponential backoff
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.BaseDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1))

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	// ±10% jitter
	if r.config.Jitter {
		jitter := delay * 0.1 * (rand.Float64()*2 - 1)
		delay += jitter
	}

	return time.Duration(delay)
}

func (r *Retryer) shouldRetry(ctx context.Context, err error, attempt int) bool {
	if ctx.Err() != nil {
		return false
	}
	if attempt >= r.config.MaxRetries {
		return false
	}
	return r.isRetryableError(err)
}

func (r *Retryer) isRetryableError(err error) bool {
	appErr, ok := AsAppError(err)
	if !ok || !appErr.IsRetryable() {
		return false
	}

	for _, retryableType := range r.config.RetryableErrors {
		if appErr.Type == retryableType {
			return true
		}
	}
	return false
}

// wrapFinalError wraps the final error with retry information
func (r *Retryer) wrapFinalError(err error) error {
	if appErr, ok := AsAppError(err); ok {
		appErr.Details = fmt.Sprintf("Failed after %d retries", r.config.MaxRetries)
		return appErr
	}

	return WrapError(err, ErrTypeInternal, ErrCodeProcessingError,
		fmt.Sprintf("Operation failed after %d retries", r.config.MaxRetries))
}
