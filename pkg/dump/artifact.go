package dump

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RunDateLayout is the day-month-year stamp shared by local file names and object keys
const RunDateLayout = "02-01-2006"

const (
	sqlExt = ".sql"
	gzExt  = ".gz"
)

// Artifact is the compressed dump of one run
type Artifact struct {
	LocalPath string
	RunDate   string
	SizeBytes int64
}

// FormatRunDate stamps t using the local calendar date
func FormatRunDate(t time.Time) string {
	return t.Format(RunDateLayout)
}

// ParseRunDate parses a run date stamp
func ParseRunDate(s string) (time.Time, error) {
	t, err := time.Parse(RunDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid run date %q: %w", s, err)
	}
	return t, nil
}

// SQLPath returns the uncompressed dump path for a run date
func SQLPath(dir, prefix, runDate string) string {
	return filepath.Join(dir, prefix+runDate+sqlExt)
}

// ArtifactPath returns the compressed artifact path for a run date
func ArtifactPath(dir, prefix, runDate string) string {
	return SQLPath(dir, prefix, runDate) + gzExt
}

// RunDateFromPath extracts the run date from an artifact file name
func RunDateFromPath(path, prefix string) (string, error) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, sqlExt+gzExt) {
		return "", fmt.Errorf("not an artifact name: %s", base)
	}

	stamp := strings.TrimSuffix(strings.TrimPrefix(base, prefix), sqlExt+gzExt)
	if _, err := ParseRunDate(stamp); err != nil {
		return "", err
	}
	return stamp, nil
}

// FindLeftovers lists artifacts in dir from run dates other than runDate, oldest
// first. They are what earlier runs failed to upload; nothing here deletes them.
func FindLeftovers(dir, prefix, runDate string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var leftovers []Artifact
	dates := make(map[string]time.Time)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		stamp, err := RunDateFromPath(entry.Name(), prefix)
		if err != nil || stamp == runDate {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dates[stamp], _ = ParseRunDate(stamp)
		leftovers = append(leftovers, Artifact{
			LocalPath: filepath.Join(dir, entry.Name()),
			RunDate:   stamp,
			SizeBytes: info.Size(),
		})
	}

	sort.Slice(leftovers, func(i, j int) bool {
		return dates[leftovers[i].RunDate].Before(dates[leftovers[j].RunDate])
	})
	return leftovers, nil
}
