package backup

import (
	"errors"
	"os/exec"
	"testing"
	"time"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "database starting up",
			err:      errors.New("pq: the database system is starting up"),
			expected: true,
		},
		{
			name:     "cannot connect now sqlstate",
			err:      errors.New("ERROR: SQLSTATE 57P03"),
			expected: true,
		},
		{
			name:     "connection refused",
			err:      errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"),
			expected: true,
		},
		{
			name:     "no such host",
			err:      errors.New("dial tcp: lookup db1.internal: no such host"),
			expected: true,
		},
		{
			name:     "exit error with retryable stderr",
			err:      &exec.ExitError{Stderr: []byte("FATAL: the database system is starting up")},
			expected: true,
		},
		{
			name:     "authentication failure is not retryable",
			err:      errors.New("pq: password authentication failed for user \"postgres\""),
			expected: false,
		},
		{
			name:     "syntax error is not retryable",
			err:      errors.New("pq: syntax error at or near \"SELEC\""),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.expected {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestDefaultProbeRetryConfig(t *testing.T) {
	cfg := defaultProbeRetryConfig()

	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.InitialDelay != 2*time.Second {
		t.Errorf("InitialDelay = %v, want 2s", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", cfg.MaxDelay)
	}
	if cfg.BackoffFactor != 2.0 {
		t.Errorf("BackoffFactor = %v, want 2.0", cfg.BackoffFactor)
	}
}
