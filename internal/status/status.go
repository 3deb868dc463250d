// Package status tracks the per-provider forecast inventory: which
// artifacts cover which forecast instant, how far the current cycle has
// progressed, and the temporal lookup used by the HTTP read surface.
//
// A Status is shared between the provider's download/refresh loops and the
// HTTP handlers behind a single-writer/multi-reader lock. All access goes
// through methods; the map is never handed out.
package status

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/virtualwinds/winds/internal/stamp"
	"github.com/virtualwinds/winds/internal/wind"
)

// ErrNoForecast is returned by Find when the inventory holds no forecast
// at all.
var ErrNoForecast = errors.New("no forecast available")

// Status is the forecast inventory of one provider.
type Status struct {
	mu             sync.RWMutex
	provider       string
	providerName   string
	currentRefTime time.Time
	last           *stamp.Stamp
	progress       int
	forecasts      map[time.Time][]stamp.Stamp
}

// New returns an empty inventory for the given provider.
func New(provider, providerName string, currentRefTime time.Time) *Status {
	return &Status{
		provider:       provider,
		providerName:   providerName,
		currentRefTime: currentRefTime.UTC(),
		forecasts:      make(map[time.Time][]stamp.Stamp),
	}
}

// Provider returns the provider id, e.g. "noaa".
func (s *Status) Provider() string { return s.provider }

// ProviderName returns the human-readable provider name.
func (s *Status) ProviderName() string { return s.providerName }

// CurrentRefTime returns the cycle the provider is currently chasing.
func (s *Status) CurrentRefTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRefTime
}

// SetCurrentRefTime records the cycle the download loop is working on.
func (s *Status) SetCurrentRefTime(refTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRefTime = refTime.UTC()
}

// Last returns the most recently registered stamp, without its wind.
func (s *Status) Last() (stamp.Stamp, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return stamp.Stamp{}, false
	}
	last := *s.last
	last.Wind = nil
	return last, true
}

// Progress returns the completion of the current cycle in percent.
func (s *Status) Progress() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// SetLast records the newest downloaded stamp and recomputes progress.
// Updates apply only when refTime is at least the recorded last ref time,
// so a stale cycle can never move the inventory backwards.
func (s *Status) SetLast(refTime time.Time, forecastHour, maxForecastHour int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last != nil && refTime.Before(s.last.RefTime) {
		return
	}

	last := stamp.New(refTime.UTC(), forecastHour)
	s.last = &last

	progress := 0
	if maxForecastHour > 0 {
		progress = 100 * forecastHour / maxForecastHour
	}
	if progress > 100 {
		progress = 100
	}
	if progress < 0 {
		progress = 0
	}
	s.progress = progress
}

// AddForecast registers a stamp under its forecast time, creating the
// entry when absent.
func (s *Status) AddForecast(f stamp.Stamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := f.ForecastTime.UTC()
	s.forecasts[key] = append(s.forecasts[key], f)
}

// RemoveForecast detaches every stamp registered at forecastTime and
// returns them. The caller deletes their storage objects outside the
// lock, so write access is never held during storage I/O.
func (s *Status) RemoveForecast(forecastTime time.Time) []stamp.Stamp {
	key := forecastTime.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	stamps := s.forecasts[key]
	delete(s.forecasts, key)
	return stamps
}

// Contains reports whether any stamp covers forecastTime.
func (s *Status) Contains(forecastTime time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.forecasts[forecastTime.UTC()]
	return ok
}

// HasStamp reports whether this exact artifact, same ref time and same
// forecast time, is already registered.
func (s *Status) HasStamp(st stamp.Stamp) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cur := range s.forecasts[st.ForecastTime.UTC()] {
		if cur.RefTime.Equal(st.RefTime) {
			return true
		}
	}
	return false
}

// DrainBefore detaches every entry whose forecast time lies before cutoff
// and returns the detached stamps, oldest first. The caller deletes their
// storage objects outside the lock.
func (s *Status) DrainBefore(cutoff time.Time) []stamp.Stamp {
	s.mu.Lock()
	defer s.mu.Unlock()

	var drained []stamp.Stamp
	for _, forecastTime := range s.sortedTimesLocked() {
		if !forecastTime.Before(cutoff) {
			continue
		}
		drained = append(drained, s.forecasts[forecastTime]...)
		delete(s.forecasts, forecastTime)
	}
	return drained
}

// Retain drops every entry for which keep returns false. keep runs with
// the write lock held; it must be limited to quick existence checks.
func (s *Status) Retain(keep func(stamps []stamp.Stamp) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for forecastTime, stamps := range s.forecasts {
		if !keep(stamps) {
			delete(s.forecasts, forecastTime)
		}
	}
}

// Find returns the loaded winds bracketing the query instant and the
// interpolation factor between the brackets.
//
// Entries are scanned in ascending forecast time. The entry preceding the
// first one strictly after m is the "before" bracket; that first later
// entry is "after". alpha is the elapsed fraction of the bracket interval,
// measured in whole minutes. When m precedes every entry, or matches a
// bracket exactly, or follows every entry, only "before" is returned with
// alpha 0. Stamps whose wind has not been loaded yet do not contribute.
func (s *Status) Find(m time.Time) (before, after []*wind.Wind, alpha float64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	times := s.sortedTimesLocked()
	if len(times) == 0 {
		return nil, nil, 0, ErrNoForecast
	}

	var prev time.Time
	havePrev := false
	for _, forecastTime := range times {
		if forecastTime.After(m) {
			if !havePrev {
				return loadedWinds(s.forecasts[forecastTime]), nil, 0, nil
			}
			h := m.Sub(prev) / time.Minute
			if h == 0 {
				return loadedWinds(s.forecasts[prev]), nil, 0, nil
			}
			delta := forecastTime.Sub(prev) / time.Minute
			return loadedWinds(s.forecasts[prev]),
				loadedWinds(s.forecasts[forecastTime]),
				float64(h) / float64(delta), nil
		}
		prev = forecastTime
		havePrev = true
	}

	return loadedWinds(s.forecasts[prev]), nil, 0, nil
}

func loadedWinds(stamps []stamp.Stamp) []*wind.Wind {
	winds := make([]*wind.Wind, 0, len(stamps))
	for _, st := range stamps {
		if st.Wind != nil {
			winds = append(winds, st.Wind)
		}
	}
	return winds
}

// Forecast is one inventory entry: a forecast instant and the stamps
// covering it.
type Forecast struct {
	ForecastTime time.Time
	Stamps       []stamp.Stamp
}

// Snapshot is a point-in-time copy of the inventory, taken under a single
// read lock for serving.
type Snapshot struct {
	Provider       string
	ProviderName   string
	CurrentRefTime time.Time
	Last           *stamp.Stamp
	Progress       int
	Forecasts      []Forecast
}

// Snapshot copies the whole inventory, forecasts sorted ascending.
func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Provider:       s.provider,
		ProviderName:   s.providerName,
		CurrentRefTime: s.currentRefTime,
		Progress:       s.progress,
	}
	if s.last != nil {
		last := *s.last
		last.Wind = nil
		snap.Last = &last
	}
	for _, forecastTime := range s.sortedTimesLocked() {
		snap.Forecasts = append(snap.Forecasts, Forecast{
			ForecastTime: forecastTime,
			Stamps:       append([]stamp.Stamp(nil), s.forecasts[forecastTime]...),
		})
	}
	return snap
}

// String renders the one-line progress summary used by provider logs.
func (s *Status) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return fmt.Sprintf("%s : %d%%", s.provider, s.progress)
	}
	return fmt.Sprintf("%s - `%s` : %d%%", s.provider, s.last, s.progress)
}

// sortedTimesLocked returns the forecast times ascending. Callers hold at
// least the read lock.
func (s *Status) sortedTimesLocked() []time.Time {
	times := make([]time.Time, 0, len(s.forecasts))
	for forecastTime := range s.forecasts {
		times = append(times, forecastTime)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times
}
