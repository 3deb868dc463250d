package providers

import (
	"context"
	"fmt"
	"image/png"
	"time"

	"go.uber.org/zap"

	"github.com/virtualwinds/winds/internal/stamp"
	"github.com/virtualwinds/winds/internal/storage"
	"github.com/virtualwinds/winds/internal/wind"
)

const (
	// zezoWindURL names a raster by forecast date, forecast hour of day
	// (3 digits) and cycle hour (unpadded).
	zezoWindURL = "http://fr.zezo.org/windp/%s_%03d_%d.png"

	// The rasters are one pixel per degree.
	zezoRows = 180
	zezoCols = 360
)

// Zezo fetches the PNG wind rasters published by zezo.org and stores them
// raw; decoding to a grid happens on load.
type Zezo struct {
	storage storage.Storage
	logger  *zap.SugaredLogger
}

func NewZezo(store storage.Storage, logger *zap.SugaredLogger) *Zezo {
	return &Zezo{storage: store, logger: logger}
}

func (z *Zezo) ID() string { return "zezo" }

func (z *Zezo) Name() string { return "Zezo" }

func (z *Zezo) Step() int { return 3 }

func (z *Zezo) MaxForecastHour() int { return 384 }

func (z *Zezo) CurrentRefTime() time.Time { return currentRefTime() }

func (z *Zezo) NextUpdateTime() time.Time { return nextUpdateTime() }

func (z *Zezo) ArtifactURL(st stamp.Stamp) string {
	forecastTime := st.ForecastTime.UTC()
	return fmt.Sprintf(zezoWindURL,
		forecastTime.Format("20060102"), forecastTime.Hour(), st.RefTime.UTC().Hour())
}

// OnFileDownloaded stores the raw PNG under the stamp's name.
func (z *Zezo) OnFileDownloaded(ctx context.Context, path string, st stamp.Stamp) error {
	return z.storage.Save(ctx, path, st.FileName())
}

// LoadStamp decodes the raster into a grid: red channel is u, green
// channel is v, row 0 is latitude -90.
func (z *Zezo) LoadStamp(ctx context.Context, st stamp.Stamp) (*wind.Wind, error) {
	r, err := z.storage.Open(ctx, st.FileName())
	if err != nil {
		return nil, err
	}
	defer r.Close()

	img, err := png.Decode(r)
	if err != nil {
		return nil, err
	}

	u := make([][]float64, 0, zezoRows)
	v := make([][]float64, 0, zezoRows)
	for y := 0; y < zezoRows; y++ {
		rowU := make([]float64, 0, zezoCols+1)
		rowV := make([]float64, 0, zezoCols+1)
		for x := 0; x < zezoCols; x++ {
			red, green, _, _ := img.At(x, y).RGBA()
			rowU = append(rowU, vrSpeed(uint8(red>>8)))
			rowV = append(rowV, vrSpeed(uint8(green>>8)))
		}
		rowU = append(rowU, rowU[0])
		rowV = append(rowV, rowV[0])
		u = append(u, rowU)
		v = append(v, rowV)
	}

	return &wind.Wind{
		Lat0:     -90,
		Lon0:     -180,
		DeltaLat: 1,
		DeltaLon: 1,
		NLat:     zezoRows,
		NLon:     zezoCols,
		U:        u,
		V:        v,
	}, nil
}

// vrSpeed maps one channel byte to a wind component in knots; bytes above
// 127 fold to the negative direction.
func vrSpeed(d uint8) float64 {
	if d > 127 {
		f := 256 - float64(d)
		return -(f * f) * (3600.0 / 230400.0) / 1.852
	}
	f := float64(d)
	return f * f * (3600.0 / 230400.0) / 1.852
}
