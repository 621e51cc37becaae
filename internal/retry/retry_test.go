package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
		Operation:    "connect postgres",
	}
}

func TestWithExponentialBackoff_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(context.Background(), fastConfig(5), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	if !result.Success {
		t.Fatalf("Expected success, got %v", result.LastError)
	}
	if result.Attempts != 3 || calls != 3 {
		t.Errorf("Expected 3 attempts, got %d (calls %d)", result.Attempts, calls)
	}
}

func TestDo_GivesUp(t *testing.T) {
	errDown := errors.New("connection refused")
	err := Do(context.Background(), fastConfig(3), func(ctx context.Context, attempt int) error {
		return errDown
	})

	if !errors.Is(err, errDown) {
		t.Fatalf("Expected wrapped cause, got %v", err)
	}
	if got := err.Error(); got != "connect postgres failed after 3 attempts: connection refused" {
		t.Errorf("Unexpected message: %s", got)
	}
}

func TestWithExponentialBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := fastConfig(10)
	config.InitialDelay = time.Hour
	config.MaxDelay = time.Hour

	result := WithExponentialBackoff(ctx, config, func(ctx context.Context, attempt int) error {
		cancel()
		return errors.New("connection refused")
	})

	if result.Success || result.Attempts != 1 {
		t.Errorf("Expected a single failed attempt, got %+v", result)
	}
	if !errors.Is(result.LastError, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", result.LastError)
	}
}

func TestCalculateDelay(t *testing.T) {
	config := DefaultRetryConfig("x")
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{4, 8 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := calculateDelay(config, tt.attempt); got != tt.want {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.want, got)
		}
	}
}
