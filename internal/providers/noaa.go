package providers

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/virtualwinds/winds/internal/stamp"
	"github.com/virtualwinds/winds/internal/storage"
	"github.com/virtualwinds/winds/internal/wind"
)

// noaaFilterURL is the NOMADS subsetting endpoint for GFS 1-degree files.
const noaaFilterURL = "https://nomads.ncep.noaa.gov/cgi-bin/filter_gfs_1p00.pl"

// Noaa fetches GFS 1-degree GRIB2 subsets from NOMADS and stores them
// converted to the JSON message form.
type Noaa struct {
	storage   storage.Storage
	converter Converter
	logger    *zap.SugaredLogger
}

func NewNoaa(store storage.Storage, converter Converter, logger *zap.SugaredLogger) *Noaa {
	return &Noaa{storage: store, converter: converter, logger: logger}
}

func (n *Noaa) ID() string { return "noaa" }

func (n *Noaa) Name() string { return "Noaa" }

func (n *Noaa) Step() int { return 3 }

func (n *Noaa) MaxForecastHour() int { return 384 }

func (n *Noaa) CurrentRefTime() time.Time { return currentRefTime() }

func (n *Noaa) NextUpdateTime() time.Time { return nextUpdateTime() }

// ArtifactURL subsets one forecast hour down to 10 m u/v over the whole
// globe.
func (n *Noaa) ArtifactURL(st stamp.Stamp) string {
	refTime := st.RefTime.UTC()

	v := url.Values{}
	v.Set("dir", fmt.Sprintf("/gfs.%s/%s/atmos", refTime.Format("20060102"), refTime.Format("15")))
	v.Set("file", fmt.Sprintf("gfs.t%sz.pgrb2.1p00.f%03d", refTime.Format("15"), st.ForecastHour()))
	v.Set("lev_10_m_above_ground", "on")
	v.Set("var_UGRD", "on")
	v.Set("var_VGRD", "on")
	v.Set("leftlon", "0")
	v.Set("rightlon", "360")
	v.Set("toplat", "90")
	v.Set("bottomlat", "-90")

	return noaaFilterURL + "?" + v.Encode()
}

// OnFileDownloaded converts the GRIB artifact to the JSON message form
// and stores it. The intermediate file never outlives the call.
func (n *Noaa) OnFileDownloaded(ctx context.Context, path string, st stamp.Stamp) error {
	n.logger.Debugf("Convert grib `%s` to json", st)

	jsonPath := filepath.Join(os.TempDir(), uuid.NewString()+".json")
	defer os.Remove(jsonPath)

	if err := n.converter.Convert(ctx, path, jsonPath); err != nil {
		return err
	}
	return n.storage.Save(ctx, jsonPath, st.FileName())
}

// LoadStamp builds the wind grid from the stored messages.
func (n *Noaa) LoadStamp(ctx context.Context, st stamp.Stamp) (*wind.Wind, error) {
	messages, err := n.storage.Messages(ctx, st.FileName())
	if err != nil {
		return nil, err
	}
	return wind.FromMessages(messages)
}
