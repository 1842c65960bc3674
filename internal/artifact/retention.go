package artifact

import "time"

// day is the fixed retention day: 86400 seconds, not a calendar day.
const day = 24 * time.Hour

// Policy bounds artifact age for pruning.
type Policy struct {
	// MaxAgeDays is the retention window in whole days. Zero keeps
	// only artifacts created within the current day window.
	MaxAgeDays int
}

// SelectExpired returns the subset of keys whose embedded timestamp is
// strictly older than the retention window at the given instant.
//
// Keys with no parseable timestamp are never selected: deleting an
// object we cannot date is worse than keeping it forever, so
// unparseable keys are conservatively retained.
//
// The boundary is strict. An artifact aged exactly MaxAgeDays*86400
// seconds is kept; one second older is selected.
//
// Pure function over its inputs: no I/O, no clock reads, no deletion.
// Callers own the actual delete calls.
func SelectExpired(keys []string, policy Policy, now time.Time) []string {
	cutoff := now.Add(-time.Duration(policy.MaxAgeDays) * day)

	var expired []string
	for _, key := range keys {
		createdAt, ok := ParseTimestamp(key)
		if !ok {
			continue
		}
		if createdAt.Before(cutoff) {
			expired = append(expired, key)
		}
	}
	return expired
}

// AgeDays reports an artifact's age in whole days, truncating toward
// zero at the day boundary. For reporting only; expiry decisions in
// SelectExpired compare at second resolution.
func AgeDays(createdAt, now time.Time) int {
	return int(now.Sub(createdAt) / day)
}
