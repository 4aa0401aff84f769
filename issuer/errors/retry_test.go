package errors

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Multiplier:     2.0,
		RetryableKinds: []Kind{KindNetwork, KindUpload},
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	assert.Equal(t, 3, config.MaxAttempts)
	assert.Equal(t, 1*time.Second, config.InitialDelay)
	assert.Equal(t, 30*time.Second, config.MaxDelay)
	assert.Equal(t, 2.0, config.Multiplier)
	assert.Contains(t, config.RetryableKinds, KindNetwork)
	assert.Contains(t, config.RetryableKinds, KindUpload)
}

func TestRetryWithConfig_Success(t *testing.T) {
	tests := []struct {
		name              string
		attemptsToSucceed int
	}{
		{"succeeds on first attempt", 1},
		{"succeeds on second attempt", 2},
		{"succeeds on last attempt", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			fn := func() error {
				attempts++
				if attempts < tt.attemptsToSucceed {
					return NewUploadError("store", "bundlr unavailable", nil)
				}
				return nil
			}

			err := RetryWithConfig(context.Background(), fn, fastRetryConfig())
			require.NoError(t, err)
			assert.Equal(t, tt.attemptsToSucceed, attempts)
		})
	}
}

func TestRetryWithConfig_Failures(t *testing.T) {
	t.Run("exhausts attempts", func(t *testing.T) {
		attempts := 0
		err := RetryWithConfig(context.Background(), func() error {
			attempts++
			return NewNetworkError("store", "down", nil)
		}, fastRetryConfig())

		require.Error(t, err)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, 3, err.(*Error).Context["attempts"])
	})

	t.Run("non retryable kind returns immediately", func(t *testing.T) {
		attempts := 0
		err := RetryWithConfig(context.Background(), func() error {
			attempts++
			return NewInputError("store", "empty document")
		}, fastRetryConfig())

		assert.True(t, IsKind(err, KindInput))
		assert.Equal(t, 1, attempts)
	})

	t.Run("confirmation timeout is never retried", func(t *testing.T) {
		cfg := fastRetryConfig()
		cfg.RetryableKinds = append(cfg.RetryableKinds, KindConfirmationTimeout)

		attempts := 0
		err := RetryWithConfig(context.Background(), func() error {
			attempts++
			return NewConfirmationTimeoutError("submit", "sig", nil)
		}, cfg)

		assert.True(t, IsKind(err, KindConfirmationTimeout))
		assert.Equal(t, 1, attempts)
	})

	t.Run("plain errors are not retried", func(t *testing.T) {
		attempts := 0
		err := RetryWithConfig(context.Background(), func() error {
			attempts++
			return stderrors.New("connection refused")
		}, fastRetryConfig())

		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := RetryWithConfig(ctx, func() error { return nil }, fastRetryConfig())
		assert.ErrorIs(t, err, context.Canceled)
	})
}
