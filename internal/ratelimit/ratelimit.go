// Package ratelimit guards against runaway backup loops: a crashing
// scheduler that respawns the tool must not flood the bucket with
// near-identical artifacts.
package ratelimit

import (
	"fmt"
	"time"
)

// Limiter decides whether a backup should proceed given the creation
// time of the newest existing artifact.
type Limiter interface {
	// ShouldBackup returns whether a backup should proceed and a
	// human-readable reason when it should not.
	ShouldBackup(newestArtifact time.Time) (bool, string)
}

// Config holds rate limiter configuration.
type Config struct {
	// MinInterval is the minimum time between backups. Zero disables
	// the guard.
	MinInterval time.Duration

	// Force overrides the guard when true.
	Force bool
}

// IntervalLimiter implements Limiter with a fixed minimum interval.
type IntervalLimiter struct {
	config Config
	now    func() time.Time
}

// NewIntervalLimiter creates a limiter enforcing config.MinInterval.
func NewIntervalLimiter(config Config) *IntervalLimiter {
	return &IntervalLimiter{config: config, now: time.Now}
}

// ShouldBackup implements Limiter.
func (l *IntervalLimiter) ShouldBackup(newestArtifact time.Time) (bool, string) {
	if l.config.Force {
		return true, "forced"
	}
	if l.config.MinInterval <= 0 {
		return true, "no minimum interval configured"
	}
	if newestArtifact.IsZero() {
		return true, "no previous artifact found"
	}

	elapsed := l.now().Sub(newestArtifact)
	if elapsed < l.config.MinInterval {
		return false, fmt.Sprintf(
			"newest artifact is %s old, next backup allowed in %s",
			humanize(elapsed),
			humanize(l.config.MinInterval-elapsed),
		)
	}
	return true, fmt.Sprintf("newest artifact is %s old", humanize(elapsed))
}

func humanize(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0f seconds", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.0f minutes", d.Minutes())
	default:
		return fmt.Sprintf("%.1f hours", d.Hours())
	}
}
