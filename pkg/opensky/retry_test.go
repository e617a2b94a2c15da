package opensky

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// TestRetryWithBackoff tests basic retry logic.
func TestRetryWithBackoff(t *testing.T) {
	t.Run("Success on first attempt", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
			attempts++
			return nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("Success after retries", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("temporary error")
			}
			return nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("Max retries exceeded", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
			attempts++
			return errors.New("persistent error")
		})

		if err == nil {
			t.Error("Expected error after max retries")
		}
		// initial + 3 retries
		if attempts != 4 {
			t.Errorf("Expected 4 attempts (initial + 3 retries), got %d", attempts)
		}
	})

	t.Run("Context cancellation", func(t *testing.T) {
		attempts := 0
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := RetryWithBackoff(ctx, DefaultRetryConfig(), func() error {
			attempts++
			return errors.New("error")
		})

		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled error, got: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("Rate limit retry hint is honoured", func(t *testing.T) {
		attempts := 0
		cfg := fastRetryConfig(1)
		cfg.RespectRetryAfter = true

		start := time.Now()
		err := RetryWithBackoff(context.Background(), cfg, func() error {
			attempts++
			if attempts == 1 {
				return &RateLimitError{StatusCode: 429, RetryAfter: 60 * time.Millisecond, Remaining: 0}
			}
			return nil
		})

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
			t.Errorf("Expected to wait for the retry hint, waited %v", elapsed)
		}
	})
}

// TestRetryWithBackoffResult tests retry with result return.
func TestRetryWithBackoffResult(t *testing.T) {
	t.Run("Success with result", func(t *testing.T) {
		attempts := 0
		result, err := RetryWithBackoffResult(context.Background(), fastRetryConfig(3), func() (string, error) {
			attempts++
			if attempts < 2 {
				return "", errors.New("temporary error")
			}
			return "success", nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if result != "success" {
			t.Errorf("Expected result 'success', got %s", result)
		}
	})

	t.Run("Failure preserves error", func(t *testing.T) {
		expectedErr := errors.New("specific error message")
		_, err := RetryWithBackoffResult(context.Background(), fastRetryConfig(1), func() (int, error) {
			return 0, expectedErr
		})

		if !errors.Is(err, expectedErr) {
			t.Errorf("Expected error to be preserved, got: %v", err)
		}
	})
}

// TestDefaultRetryConfig tests default configuration.
func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries 3, got %d", config.MaxRetries)
	}
	if config.InitialDelay != time.Second {
		t.Errorf("Expected InitialDelay 1s, got %v", config.InitialDelay)
	}
	if config.MaxDelay != 60*time.Second {
		t.Errorf("Expected MaxDelay 60s, got %v", config.MaxDelay)
	}
	if !config.RespectRetryAfter {
		t.Error("Expected RespectRetryAfter enabled by default")
	}
}
