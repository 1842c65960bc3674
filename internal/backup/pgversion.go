package backup

import (
	"context"
	"database/sql"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PGVersion represents a PostgreSQL server version.
type PGVersion struct {
	Major int
	Minor int
	Full  string
}

// installedMajors lists the client major versions shipped alongside
// the tool, newest first.
var installedMajors = []int{17, 16, 15}

var versionPattern = regexp.MustCompile(`PostgreSQL (\d+)\.(\d+)`)

// ParsePGVersion parses a version() string like "PostgreSQL 16.2 ...".
func ParsePGVersion(versionStr string) (*PGVersion, error) {
	matches := versionPattern.FindStringSubmatch(versionStr)
	if len(matches) < 3 {
		return nil, fmt.Errorf("could not parse PostgreSQL version from: %s", versionStr)
	}

	major, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid major version: %s", matches[1])
	}
	minor, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, fmt.Errorf("invalid minor version: %s", matches[2])
	}

	return &PGVersion{
		Major: major,
		Minor: minor,
		Full:  versionStr,
	}, nil
}

// GetServerVersion asks the server for its version over a short-lived
// connection.
func GetServerVersion(ctx context.Context, connString string) (*PGVersion, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	var versionStr string
	if err := db.QueryRowContext(ctx, "SELECT version()").Scan(&versionStr); err != nil {
		return nil, fmt.Errorf("failed to get server version: %w", err)
	}

	return ParsePGVersion(versionStr)
}

// findBestBinary resolves the versioned client binary (e.g. pg_dump16,
// psql15) best matching the server. Preference order: exact major
// match, the closest installed major at or above the server's, the
// unversioned binary, then the newest installed version as a last
// resort. Servers older than the oldest installed client use that
// oldest client, which dumps older servers fine.
func findBestBinary(tool string, serverVersion *PGVersion) (string, error) {
	target := serverVersion.Major
	if target < installedMajors[len(installedMajors)-1] {
		target = installedMajors[len(installedMajors)-1]
	}

	if bin := fmt.Sprintf("%s%d", tool, target); binaryExists(bin) {
		return bin, nil
	}

	for _, major := range installedMajors {
		if major >= target {
			if bin := fmt.Sprintf("%s%d", tool, major); binaryExists(bin) {
				return bin, nil
			}
		}
	}

	if binaryExists(tool) {
		return tool, nil
	}

	for _, major := range installedMajors {
		if bin := fmt.Sprintf("%s%d", tool, major); binaryExists(bin) {
			return bin, nil
		}
	}

	return "", fmt.Errorf("no suitable %s found for PostgreSQL %d", tool, serverVersion.Major)
}

func binaryExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
