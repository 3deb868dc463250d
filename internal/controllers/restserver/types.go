package restserver

import "time"

// WindsResponse is the v2 winds envelope: one provider's inventory with
// forecasts as a list sorted ascending by forecast time.
type WindsResponse struct {
	Provider         string          `json:"provider"`
	ProviderName     string          `json:"providerName"`
	CurrentRefTime   time.Time       `json:"currentRefTime"`
	LastForecastTime *time.Time      `json:"lastForecastTime,omitempty"`
	Progress         int             `json:"progress"`
	Forecasts        []ForecastEntry `json:"forecasts"`
}

// ForecastEntry is one v2 inventory line: a forecast instant and the
// cycles covering it, in insertion order (ascending ref time).
type ForecastEntry struct {
	ForecastTime time.Time   `json:"forecastTime"`
	RefTimes     []time.Time `json:"refTimes"`
}

// WindsResponseV1 is the legacy envelope: forecasts keyed by RFC 3339
// forecast time, each carrying full stamp references.
type WindsResponseV1 struct {
	Provider       string                `json:"provider"`
	ProviderName   string                `json:"providerName"`
	CurrentRefTime time.Time             `json:"currentRefTime"`
	LastForecast   *StampRef             `json:"lastForecast,omitempty"`
	Progress       int                   `json:"progress"`
	Forecasts      map[string][]StampRef `json:"forecasts"`
}

// StampRef identifies one artifact in the v1 envelope.
type StampRef struct {
	RefTime      time.Time `json:"refTime"`
	ForecastTime time.Time `json:"forecastTime"`
}
