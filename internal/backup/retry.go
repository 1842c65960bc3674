package backup

import (
	"errors"
	"os/exec"
	"strings"
	"time"
)

// RetryConfig controls the database info probe retries. Freshly
// provisioned or restarting servers refuse connections for a while;
// the probe should ride that out instead of failing the run.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func defaultProbeRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    5,
		InitialDelay:  2 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// retryablePatterns are connection-level failures worth another
// attempt. Anything else (auth failures, SQL errors) fails fast.
var retryablePatterns = []string{
	"the database system is starting up",
	"the database system is shutting down",
	"SQLSTATE 57P03", // cannot_connect_now
	"connection refused",
	"connection reset",
	"no such host",
	"timeout expired",
	"i/o timeout",
	"EOF",
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		msg += " " + string(exitErr.Stderr)
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
