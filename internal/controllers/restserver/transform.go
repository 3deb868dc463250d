package restserver

import (
	"time"

	"github.com/virtualwinds/winds/internal/status"
)

// transformSnapshot converts an inventory snapshot to the v2 envelope.
func (h *Handlers) transformSnapshot(snap status.Snapshot) *WindsResponse {
	resp := &WindsResponse{
		Provider:       snap.Provider,
		ProviderName:   snap.ProviderName,
		CurrentRefTime: snap.CurrentRefTime,
		Progress:       snap.Progress,
		Forecasts:      make([]ForecastEntry, 0, len(snap.Forecasts)),
	}

	if snap.Last != nil {
		forecastTime := snap.Last.ForecastTime
		resp.LastForecastTime = &forecastTime
	}

	for _, forecast := range snap.Forecasts {
		entry := ForecastEntry{
			ForecastTime: forecast.ForecastTime,
			RefTimes:     make([]time.Time, 0, len(forecast.Stamps)),
		}
		for _, st := range forecast.Stamps {
			entry.RefTimes = append(entry.RefTimes, st.RefTime)
		}
		resp.Forecasts = append(resp.Forecasts, entry)
	}

	return resp
}

// transformSnapshotV1 converts an inventory snapshot to the legacy
// envelope.
func (h *Handlers) transformSnapshotV1(snap status.Snapshot) *WindsResponseV1 {
	resp := &WindsResponseV1{
		Provider:       snap.Provider,
		ProviderName:   snap.ProviderName,
		CurrentRefTime: snap.CurrentRefTime,
		Progress:       snap.Progress,
		Forecasts:      make(map[string][]StampRef, len(snap.Forecasts)),
	}

	if snap.Last != nil {
		resp.LastForecast = &StampRef{
			RefTime:      snap.Last.RefTime,
			ForecastTime: snap.Last.ForecastTime,
		}
	}

	for _, forecast := range snap.Forecasts {
		refs := make([]StampRef, 0, len(forecast.Stamps))
		for _, st := range forecast.Stamps {
			refs = append(refs, StampRef{RefTime: st.RefTime, ForecastTime: st.ForecastTime})
		}
		resp.Forecasts[forecast.ForecastTime.Format(time.RFC3339)] = refs
	}

	return resp
}
