// Package artifact defines the canonical naming scheme for backup
// artifacts and the retention logic that decides when they expire.
// Everything in this package is pure computation; storage and process
// execution live elsewhere.
package artifact

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// timestampLayout renders timestamps at second resolution in the local
// timezone of the invoking process, with no zone suffix. Keys are
// therefore ambiguous across DST transitions and across machines in
// different timezones. Known limitation; run every command against a
// given bucket from the same timezone.
const timestampLayout = "20060102_150405"

// keySuffix is carried by every artifact, remote and staged.
const keySuffix = ".sql.gz"

// ErrInvalidIdentifier reports a host or database name that cannot be
// embedded in a storage key.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// timestampPattern matches the 8-digit date, underscore, 6-digit time
// shape produced by timestampLayout.
var timestampPattern = regexp.MustCompile(`\d{8}_\d{6}`)

// RemoteKey returns the canonical object store key for one backup of
// one database: "<host>/<database>/<YYYYMMDD_HHMMSS>.sql.gz". Keys are
// globbable by the "<host>/<database>/" prefix so listing and retention
// scope naturally to a single database without a separate index.
func RemoteKey(host, database string, createdAt time.Time) (string, error) {
	if err := ValidateIdentifier("host", host); err != nil {
		return "", err
	}
	if err := ValidateIdentifier("database", database); err != nil {
		return "", err
	}
	return host + "/" + database + "/" + createdAt.Format(timestampLayout) + keySuffix, nil
}

// RemotePrefix returns the listing prefix covering every artifact for
// one database on one host, including the trailing slash.
func RemotePrefix(host, database string) (string, error) {
	if err := ValidateIdentifier("host", host); err != nil {
		return "", err
	}
	if err := ValidateIdentifier("database", database); err != nil {
		return "", err
	}
	return host + "/" + database + "/", nil
}

// LocalStagingPath returns the staging location for an artifact under
// root. The layout below root mirrors the remote key exactly, so this
// function and RemoteKey are the single source of truth for both sides.
func LocalStagingPath(root, host, database string, createdAt time.Time) (string, error) {
	if err := ValidateIdentifier("host", host); err != nil {
		return "", err
	}
	if err := ValidateIdentifier("database", database); err != nil {
		return "", err
	}
	return filepath.Join(root, host, database, createdAt.Format(timestampLayout)+keySuffix), nil
}

// ParseTimestamp extracts the first 8-digit/6-digit timestamp embedded
// in a key or filename and parses it in local time. The second return
// value is false when no such substring exists or the digits do not
// form a valid date; callers must skip those entries rather than fail.
func ParseTimestamp(s string) (time.Time, bool) {
	match := timestampPattern.FindString(s)
	if match == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(timestampLayout, match, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ValidateIdentifier checks that a host or database name can be
// embedded in a key: non-empty, no path separators, and not a relative
// path element that could escape the staging root.
func ValidateIdentifier(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidIdentifier, field)
	}
	if strings.ContainsAny(value, `/\`) {
		return fmt.Errorf("%w: %s %q must not contain path separators", ErrInvalidIdentifier, field, value)
	}
	if value == "." || value == ".." {
		return fmt.Errorf("%w: %s %q is a relative path element", ErrInvalidIdentifier, field, value)
	}
	return nil
}
