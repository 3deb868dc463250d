// Package stamp identifies forecast artifacts by (ref time, forecast time)
// and implements the flat-namespace filename codec used by storage.
package stamp

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/virtualwinds/winds/internal/wind"
)

// ErrFilename is returned when a storage name does not parse as a Stamp.
var ErrFilename = errors.New("wrong filename format")

const (
	// refTimeLayout renders a ref time as YYYYMMDDHH.
	refTimeLayout = "2006010215"

	// CycleInterval is the cadence at which providers issue forecast cycles.
	CycleInterval = 6 * time.Hour
)

// TruncateRefTime aligns t to the previous 6-hour cycle boundary (00, 06,
// 12, 18 UTC).
func TruncateRefTime(t time.Time) time.Time {
	return t.UTC().Truncate(CycleInterval)
}

// RefTimeNow returns the current cycle boundary.
func RefTimeNow() time.Time {
	return TruncateRefTime(time.Now())
}

// Stamp identifies one forecast artifact. Wind stays nil until the payload
// has been decoded; several readers may share the same grid.
type Stamp struct {
	RefTime      time.Time
	ForecastTime time.Time
	Wind         *wind.Wind
}

// New builds a Stamp for the given cycle and forecast hour.
func New(refTime time.Time, forecastHour int) Stamp {
	return Stamp{
		RefTime:      refTime,
		ForecastTime: refTime.Add(time.Duration(forecastHour) * time.Hour),
	}
}

// Parse decodes a storage name of the form YYYYMMDDHH.fHHH.
func Parse(name string) (Stamp, error) {
	parts := strings.Split(name, ".")
	if len(parts) != 2 || len(parts[1]) < 4 || parts[1][0] != 'f' {
		return Stamp{}, fmt.Errorf("%w: %q", ErrFilename, name)
	}

	refTime, err := time.ParseInLocation(refTimeLayout, parts[0], time.UTC)
	if err != nil {
		return Stamp{}, fmt.Errorf("%w: %q: %v", ErrFilename, name, err)
	}

	hour, err := strconv.Atoi(parts[1][1:4])
	if err != nil {
		return Stamp{}, fmt.Errorf("%w: %q: %v", ErrFilename, name, err)
	}

	return New(refTime, hour), nil
}

// ForecastHour returns forecast_time − ref_time in whole hours.
func (s Stamp) ForecastHour() int {
	return int(s.ForecastTime.Sub(s.RefTime) / time.Hour)
}

// FileName renders the canonical storage name, e.g. "2024010512.f006".
func (s Stamp) FileName() string {
	return fmt.Sprintf("%s.f%03d", s.RefTime.UTC().Format(refTimeLayout), s.ForecastHour())
}

// FromNow returns how far in the future the forecast validity instant lies;
// negative when it is already in the past.
func (s Stamp) FromNow() time.Duration {
	return time.Until(s.ForecastTime)
}

func (s Stamp) String() string {
	return fmt.Sprintf("%sZ+%03d", s.RefTime.UTC().Format("15"), s.ForecastHour())
}

// SortStamps orders stamps ascending by (forecast_time, ref_time), the walk
// order used by bootstrap and refresh.
func SortStamps(stamps []Stamp) {
	sortFn := func(i, j int) bool {
		if stamps[i].ForecastTime.Equal(stamps[j].ForecastTime) {
			return stamps[i].RefTime.Before(stamps[j].RefTime)
		}
		return stamps[i].ForecastTime.Before(stamps[j].ForecastTime)
	}
	sort.Slice(stamps, sortFn)
}
