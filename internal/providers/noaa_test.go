package providers

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/virtualwinds/winds/internal/stamp"
	"github.com/virtualwinds/winds/internal/storage"
	"github.com/virtualwinds/winds/internal/wind"
)

func TestNoaaArtifactURL(t *testing.T) {
	n := NewNoaa(nil, BuiltinConverter{}, zap.NewNop().Sugar())
	refTime := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	raw := n.ArtifactURL(stamp.New(refTime, 24))

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("ArtifactURL returned an unparseable URL: %v", err)
	}
	if u.Scheme != "https" || u.Host != "nomads.ncep.noaa.gov" {
		t.Errorf("unexpected endpoint %s://%s", u.Scheme, u.Host)
	}
	if u.Path != "/cgi-bin/filter_gfs_1p00.pl" {
		t.Errorf("unexpected path %q", u.Path)
	}

	want := map[string]string{
		"dir":                   "/gfs.20240105/12/atmos",
		"file":                  "gfs.t12z.pgrb2.1p00.f024",
		"lev_10_m_above_ground": "on",
		"var_UGRD":              "on",
		"var_VGRD":              "on",
		"leftlon":               "0",
		"rightlon":              "360",
		"toplat":                "90",
		"bottomlat":             "-90",
	}
	query := u.Query()
	for key, value := range want {
		if got := query.Get(key); got != value {
			t.Errorf("query %s = %q, want %q", key, got, value)
		}
	}
	if len(query) != len(want) {
		t.Errorf("query has %d parameters, want %d", len(query), len(want))
	}
}

// stubConverter writes a fixed payload instead of decoding the input.
type stubConverter struct {
	payload []byte
}

func (c stubConverter) Convert(_ context.Context, _, jsonPath string) error {
	return os.WriteFile(jsonPath, c.payload, 0o644)
}

func TestNoaaOnFileDownloadedStoresConverted(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	n := NewNoaa(store, stubConverter{payload: []byte(`[{"header":{},"data":[]}]`)}, zap.NewNop().Sugar())

	gribPath := filepath.Join(t.TempDir(), "artifact.grib")
	if err := os.WriteFile(gribPath, []byte("GRIB..."), 0o644); err != nil {
		t.Fatal(err)
	}

	st := stamp.New(time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC), 24)
	if err := n.OnFileDownloaded(context.Background(), gribPath, st); err != nil {
		t.Fatalf("OnFileDownloaded: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, st.FileName()))
	if err != nil {
		t.Fatalf("stored artifact missing: %v", err)
	}
	if string(data) != `[{"header":{},"data":[]}]` {
		t.Errorf("stored artifact = %q", data)
	}
}

func noaaTestHeader(parameter int) wind.Header {
	return wind.Header{
		Discipline:        0,
		ParameterCategory: 2,
		ParameterNumber:   parameter,
		Surface1Type:      103,
		Surface1Value:     10,
		NX:                2,
		NY:                2,
		La1:               90,
		Lo1:               0,
		DX:                1,
		DY:                1,
	}
}

func TestNoaaLoadStamp(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	messages := []wind.Message{
		{Header: noaaTestHeader(2), Data: []float64{1, 2, 3, 4}},
		{Header: noaaTestHeader(3), Data: []float64{5, 6, 7, 8}},
	}
	payload, err := json.Marshal(messages)
	if err != nil {
		t.Fatal(err)
	}
	st := stamp.New(time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC), 24)
	if err := os.WriteFile(filepath.Join(dir, st.FileName()), payload, 0o644); err != nil {
		t.Fatal(err)
	}

	n := NewNoaa(store, BuiltinConverter{}, zap.NewNop().Sugar())
	w, err := n.LoadStamp(context.Background(), st)
	if err != nil {
		t.Fatalf("LoadStamp: %v", err)
	}

	if w.NLat != 2 || w.NLon != 2 {
		t.Fatalf("grid is %dx%d, want 2x2", w.NLat, w.NLon)
	}
	if w.Lat0 != 90 || w.Lon0 != 0 {
		t.Errorf("grid origin = (%v, %v), want (90, 0)", w.Lat0, w.Lon0)
	}
	if w.U[0][0] != 1 || w.U[1][1] != 4 {
		t.Errorf("u grid = %v", w.U)
	}
	if w.V[0][0] != 5 || w.V[1][1] != 8 {
		t.Errorf("v grid = %v", w.V)
	}
	if w.U[0][2] != w.U[0][0] {
		t.Errorf("wrap column %v does not repeat column 0 %v", w.U[0][2], w.U[0][0])
	}
}
