package storage

import (
	"time"

	"github.com/pgstash/pgstash/internal/artifact"
)

// newestArtifactTime picks the creation time of the most recent
// artifact in a listing. Timestamps embedded in keys are the source of
// truth; LastModified is only a fallback when nothing in the listing
// carries a parseable timestamp (e.g. objects written by other tools).
func newestArtifactTime(objects []ObjectInfo) time.Time {
	var newest, newestModified time.Time
	parsedAny := false

	for _, obj := range objects {
		if ts, ok := artifact.ParseTimestamp(obj.Key); ok {
			parsedAny = true
			if ts.After(newest) {
				newest = ts
			}
		}
		if obj.LastModified.After(newestModified) {
			newestModified = obj.LastModified
		}
	}

	if parsedAny {
		return newest
	}
	return newestModified
}
