// Package providers implements the per-provider ingestion pipeline: a
// generic engine running the download, refresh and prune loops against a
// shared inventory, plus the upstream strategies (NOAA GFS, zezo rasters)
// that plug into it.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/virtualwinds/winds/internal/stamp"
	"github.com/virtualwinds/winds/internal/wind"
)

// ErrStampNotFound signals an upstream 404: the artifact is not published
// yet. The download walk treats it as the end of the cycle, not a failure.
var ErrStampNotFound = errors.New("stamp not found")

// ExitStatusError reports a converter subprocess that exited non-zero.
type ExitStatusError struct {
	Code   int
	Stderr string
}

func (e *ExitStatusError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("converter exited with status %d", e.Code)
	}
	return fmt.Sprintf("converter exited with status %d: %s", e.Code, strings.TrimSpace(e.Stderr))
}

// Strategy is the upstream-specific capability set consumed by the
// Engine: identity, cycle cadence, artifact URLs, persistence of a fetched
// file and the per-artifact decode.
type Strategy interface {
	// ID is the short provider identifier used in config, API queries
	// and storage, e.g. "noaa".
	ID() string

	// Name is the human-readable provider name.
	Name() string

	// Step is the forecast-hour increment between consecutive artifacts.
	Step() int

	// MaxForecastHour is the last forecast hour of a complete cycle.
	MaxForecastHour() int

	// CurrentRefTime is the newest cycle expected to be published.
	CurrentRefTime() time.Time

	// NextUpdateTime is when the next cycle is expected upstream.
	NextUpdateTime() time.Time

	// ArtifactURL builds the upstream URL for one stamp.
	ArtifactURL(st stamp.Stamp) string

	// OnFileDownloaded persists a fetched artifact under the stamp's
	// name, converting it first when the upstream format is not the
	// stored one. path is a temporary file owned by the caller.
	OnFileDownloaded(ctx context.Context, path string, st stamp.Stamp) error

	// LoadStamp decodes a stored artifact into a wind grid.
	LoadStamp(ctx context.Context, st stamp.Stamp) (*wind.Wind, error)
}

// publicationDelay is how long after its ref time a cycle shows up
// upstream; until then the previous cycle is the serviceable one.
const publicationDelay = 3*time.Hour + 30*time.Minute

func currentRefTime() time.Time {
	return currentRefTimeAt(time.Now())
}

// currentRefTimeAt returns the newest cycle expected to be published at
// instant now.
func currentRefTimeAt(now time.Time) time.Time {
	refTime := stamp.TruncateRefTime(now)
	if now.UTC().Before(refTime.Add(publicationDelay)) {
		refTime = refTime.Add(-stamp.CycleInterval)
	}
	return refTime
}

func nextUpdateTime() time.Time {
	return nextUpdateTimeAt(time.Now())
}

func nextUpdateTimeAt(now time.Time) time.Time {
	return stamp.TruncateRefTime(now).Add(publicationDelay)
}
