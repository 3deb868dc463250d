// Package wind holds the canonical gridded wind representation shared by
// providers and the read path.
package wind

import (
	"errors"
	"fmt"
)

// ErrNoWindData is returned when a message set carries no usable 10 m u/v pair.
var ErrNoWindData = errors.New("error loading wind from messages")

// Wind is a 2-D grid of u/v components (m/s). Rows run along latitude from
// (Lat0, Lon0) with DeltaLat/DeltaLon spacing. Each row carries NLon+1
// entries: the last column repeats column 0 so the grid is continuous in
// longitude.
type Wind struct {
	Lat0     float64
	Lon0     float64
	DeltaLat float64
	DeltaLon float64
	NLat     int
	NLon     int
	U        [][]float64
	V        [][]float64
}

func (w *Wind) String() string {
	return fmt.Sprintf("Wind{lat0: %v, lon0: %v, deltaLat: %v, deltaLon: %v, nLat: %d, nLon: %d}",
		w.Lat0, w.Lon0, w.DeltaLat, w.DeltaLon, w.NLat, w.NLon)
}

// BuildGrid folds a flat row-major series into nLat rows of nLon values and
// appends each row's first value to its end (continuous-longitude wrap).
func BuildGrid(data []float64, nLat, nLon int) ([][]float64, error) {
	if len(data) != nLat*nLon {
		return nil, fmt.Errorf("grid size mismatch: %d values for %dx%d", len(data), nLat, nLon)
	}

	grid := make([][]float64, nLat)
	p := 0
	for i := range grid {
		row := make([]float64, nLon+1)
		copy(row, data[p:p+nLon])
		row[nLon] = row[0]
		grid[i] = row
		p += nLon
	}

	return grid, nil
}

// FromMessages assembles a Wind from decoded messages, keeping only 10 m
// above ground u/v fields (discipline 0, category 2, surface type 103 at
// value 10; parameter 2 is u, 3 is v). Both components must be present.
func FromMessages(messages []Message) (*Wind, error) {
	var w *Wind
	var haveU, haveV bool

	for _, m := range messages {
		h := m.Header
		if h.Discipline != 0 || h.ParameterCategory != 2 || h.Surface1Type != 103 || h.Surface1Value != 10 {
			continue
		}

		var grid [][]float64
		switch h.ParameterNumber {
		case 2, 3:
			var err error
			grid, err = BuildGrid(m.Data, h.NY, h.NX)
			if err != nil {
				return nil, err
			}
		default:
			continue
		}

		if w == nil {
			w = &Wind{
				Lat0:     h.La1,
				Lon0:     h.Lo1,
				DeltaLat: h.DY,
				DeltaLon: h.DX,
				NLat:     h.NY,
				NLon:     h.NX,
			}
		}

		if h.ParameterNumber == 2 {
			w.U = grid
			haveU = true
		} else {
			w.V = grid
			haveV = true
		}
	}

	if w == nil || !haveU || !haveV {
		return nil, ErrNoWindData
	}

	return w, nil
}
