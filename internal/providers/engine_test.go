package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/virtualwinds/winds/internal/stamp"
	"github.com/virtualwinds/winds/internal/storage"
	"github.com/virtualwinds/winds/internal/wind"
)

// testUpstream is a fake artifact server recording every request path.
type testUpstream struct {
	mu        sync.Mutex
	available map[string]bool
	broken    map[string]bool
	requests  []string
	srv       *httptest.Server
}

func newTestUpstream(available ...string) *testUpstream {
	u := &testUpstream{
		available: make(map[string]bool),
		broken:    make(map[string]bool),
	}
	for _, name := range available {
		u.available[name] = true
	}
	u.srv = httptest.NewServer(http.HandlerFunc(u.handle))
	return u
}

func (u *testUpstream) handle(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	u.mu.Lock()
	u.requests = append(u.requests, name)
	broken := u.broken[name]
	ok := u.available[name]
	u.mu.Unlock()

	switch {
	case broken:
		http.Error(w, "upstream broken", http.StatusInternalServerError)
	case ok:
		fmt.Fprint(w, "[]")
	default:
		http.NotFound(w, r)
	}
}

func (u *testUpstream) requested() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.requests...)
}

func (u *testUpstream) Close() { u.srv.Close() }

// fakeStrategy fetches artifacts by file name from the test upstream and
// stores them unconverted.
type fakeStrategy struct {
	storage storage.Storage
	baseURL string
	refTime time.Time
	maxHour int
}

func (f *fakeStrategy) ID() string                { return "fake" }
func (f *fakeStrategy) Name() string              { return "Fake" }
func (f *fakeStrategy) Step() int                 { return 3 }
func (f *fakeStrategy) MaxForecastHour() int      { return f.maxHour }
func (f *fakeStrategy) CurrentRefTime() time.Time { return f.refTime }
func (f *fakeStrategy) NextUpdateTime() time.Time { return f.refTime.Add(stamp.CycleInterval) }

func (f *fakeStrategy) ArtifactURL(st stamp.Stamp) string {
	return f.baseURL + "/" + st.FileName()
}

func (f *fakeStrategy) OnFileDownloaded(ctx context.Context, path string, st stamp.Stamp) error {
	return f.storage.Save(ctx, path, st.FileName())
}

func (f *fakeStrategy) LoadStamp(ctx context.Context, st stamp.Stamp) (*wind.Wind, error) {
	return &wind.Wind{}, nil
}

// newTestEngine builds an engine over a local store in a fresh temp dir.
func newTestEngine(t *testing.T, up *testUpstream, refTime time.Time, maxHour int) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	strat := &fakeStrategy{storage: store, baseURL: up.srv.URL, refTime: refTime, maxHour: maxHour}
	var wg sync.WaitGroup
	return NewEngine(context.Background(), &wg, strat, store, zap.NewNop().Sugar()), dir
}

// nextCycle returns the upcoming cycle boundary, far enough in the future
// that no forecast hour of it can look stale while a test runs.
func nextCycle() time.Time {
	return stamp.TruncateRefTime(time.Now()).Add(stamp.CycleInterval)
}

func putArtifact(t *testing.T, dir string, st stamp.Stamp) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, st.FileName()), []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func artifactExists(dir string, st stamp.Stamp) bool {
	_, err := os.Stat(filepath.Join(dir, st.FileName()))
	return err == nil
}

// entryStamps returns the inventory entry covering forecastTime, nil when
// absent.
func entryStamps(e *Engine, forecastTime time.Time) []stamp.Stamp {
	for _, entry := range e.status.Snapshot().Forecasts {
		if entry.ForecastTime.Equal(forecastTime) {
			return entry.Stamps
		}
	}
	return nil
}

func TestLoadDeletesStale(t *testing.T) {
	up := newTestUpstream()
	defer up.Close()

	// A day-old cycle: three forecasts well past, one just below now (the
	// interpolation bracket) and one ahead.
	ref := stamp.TruncateRefTime(time.Now()).Add(-24 * time.Hour)
	past6 := stamp.New(ref, 6)
	past12 := stamp.New(ref, 12)
	past18 := stamp.New(ref, 18)
	bracket := stamp.New(ref, 23)
	ahead := stamp.New(ref, 30)

	e, dir := newTestEngine(t, up, nextCycle(), 384)
	for _, st := range []stamp.Stamp{past6, past12, past18, bracket, ahead} {
		putArtifact(t, dir, st)
	}

	if err := e.Load(true, false); err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, st := range []stamp.Stamp{past6, past12, past18} {
		if artifactExists(dir, st) {
			t.Errorf("stale artifact %s still stored", st.FileName())
		}
		if e.status.Contains(st.ForecastTime) {
			t.Errorf("stale stamp %s registered", st)
		}
	}
	for _, st := range []stamp.Stamp{bracket, ahead} {
		if !artifactExists(dir, st) {
			t.Errorf("artifact %s deleted", st.FileName())
		}
		if !e.status.Contains(st.ForecastTime) {
			t.Errorf("stamp %s not registered", st)
		}
	}

	last, ok := e.status.Last()
	if !ok || last.ForecastHour() != 30 {
		t.Errorf("last = %v, %v, want hour 30", last, ok)
	}
	if got := e.status.Progress(); got != 100*30/384 {
		t.Errorf("progress = %d, want %d", got, 100*30/384)
	}
}

func TestLoadKeepsTerminalStamp(t *testing.T) {
	up := newTestUpstream()
	defer up.Close()

	// A cycle entirely in the past: everything goes but the terminal
	// stamp, which has no successor to prove it stale.
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e, dir := newTestEngine(t, up, nextCycle(), 384)
	for _, h := range []int{6, 9, 12} {
		putArtifact(t, dir, stamp.New(ref, h))
	}

	if err := e.Load(true, false); err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, h := range []int{6, 9} {
		if artifactExists(dir, stamp.New(ref, h)) {
			t.Errorf("stale artifact f%03d still stored", h)
		}
	}
	terminal := stamp.New(ref, 12)
	if !artifactExists(dir, terminal) {
		t.Error("terminal artifact deleted")
	}
	if !e.status.HasStamp(terminal) {
		t.Error("terminal stamp not registered")
	}
}

func TestDownloadWalksCycle(t *testing.T) {
	ref := nextCycle()
	up := newTestUpstream(
		stamp.New(ref, 6).FileName(),
		stamp.New(ref, 9).FileName(),
		stamp.New(ref, 12).FileName(),
	)
	defer up.Close()

	e, dir := newTestEngine(t, up, ref, 12)
	e.download()

	for _, h := range []int{6, 9, 12} {
		st := stamp.New(ref, h)
		if !artifactExists(dir, st) {
			t.Errorf("artifact %s not stored", st.FileName())
		}
		if !e.status.Contains(st.ForecastTime) {
			t.Errorf("stamp %s not registered", st)
		}
	}
	if got := e.status.Progress(); got != 100 {
		t.Errorf("progress = %d, want 100", got)
	}
	if got := e.status.CurrentRefTime(); !got.Equal(ref) {
		t.Errorf("current ref time = %v, want %v", got, ref)
	}

	// A second pass finds everything in storage and stays off the wire.
	before := len(up.requested())
	e.download()
	if after := len(up.requested()); after != before {
		t.Errorf("second pass made %d requests", after-before)
	}
}

func TestDownloadFallsBackOneCycle(t *testing.T) {
	ref := nextCycle()
	prev := ref.Add(-stamp.CycleInterval)
	up := newTestUpstream(
		stamp.New(prev, 6).FileName(),
		stamp.New(prev, 9).FileName(),
		stamp.New(prev, 12).FileName(),
	)
	defer up.Close()

	e, _ := newTestEngine(t, up, ref, 384)
	e.download()

	// One 404 on the newest cycle's first hour, then the walk restarts on
	// the previous cycle and keeps what it finds.
	want := []string{
		stamp.New(ref, 6).FileName(),
		stamp.New(prev, 6).FileName(),
		stamp.New(prev, 9).FileName(),
		stamp.New(prev, 12).FileName(),
		stamp.New(prev, 15).FileName(),
	}
	got := up.requested()
	if len(got) != len(want) {
		t.Fatalf("requests = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("request %d = %s, want %s", i, got[i], want[i])
		}
	}

	snap := e.status.Snapshot()
	if len(snap.Forecasts) != 3 {
		t.Errorf("registered %d forecasts, want 3", len(snap.Forecasts))
	}
	if snap.Progress != 100*12/384 {
		t.Errorf("progress = %d, want %d", snap.Progress, 100*12/384)
	}
	// The chased cycle stays the newest one even while serving from the
	// previous.
	if !snap.CurrentRefTime.Equal(ref) {
		t.Errorf("current ref time = %v, want %v", snap.CurrentRefTime, ref)
	}
	if snap.Last == nil || !snap.Last.RefTime.Equal(prev) || snap.Last.ForecastHour() != 12 {
		t.Errorf("last = %v, want %s", snap.Last, stamp.New(prev, 12))
	}
}

func TestDownloadStopsAtLaterGap(t *testing.T) {
	ref := nextCycle()
	up := newTestUpstream(
		stamp.New(ref, 6).FileName(),
		stamp.New(ref, 9).FileName(),
		// f012 missing: the cycle is still being published.
	)
	defer up.Close()

	e, _ := newTestEngine(t, up, ref, 384)
	e.download()

	snap := e.status.Snapshot()
	if len(snap.Forecasts) != 2 {
		t.Fatalf("registered %d forecasts, want 2", len(snap.Forecasts))
	}
	if snap.Progress != 100*9/384 {
		t.Errorf("progress = %d, want %d", snap.Progress, 100*9/384)
	}

	// The walk stopped at the gap instead of falling back a cycle.
	for _, name := range up.requested() {
		if strings.HasPrefix(name, ref.Add(-stamp.CycleInterval).Format("2006010215")) {
			t.Fatalf("unexpected fallback request %s", name)
		}
	}
}

func TestDownloadAbortsOnServerError(t *testing.T) {
	ref := nextCycle()
	up := newTestUpstream(
		stamp.New(ref, 6).FileName(),
		stamp.New(ref, 12).FileName(),
	)
	up.broken[stamp.New(ref, 9).FileName()] = true
	defer up.Close()

	e, _ := newTestEngine(t, up, ref, 12)
	e.download()

	snap := e.status.Snapshot()
	if len(snap.Forecasts) != 1 {
		t.Fatalf("registered %d forecasts, want 1", len(snap.Forecasts))
	}
	for _, name := range up.requested() {
		if name == stamp.New(ref, 12).FileName() {
			t.Fatal("walk continued past a failed download")
		}
	}
}

func TestDownloadSkipsPastForecasts(t *testing.T) {
	// An unaligned day-old cycle: hours up to now-3h are skipped without
	// touching the wire, later hours are still fetched.
	ref := time.Now().UTC().Add(-27 * time.Hour).Truncate(time.Hour)
	up := newTestUpstream(
		stamp.New(ref, 27).FileName(),
		stamp.New(ref, 30).FileName(),
	)
	defer up.Close()

	e, _ := newTestEngine(t, up, ref, 30)
	e.downloadAt(ref)

	want := []string{
		stamp.New(ref, 27).FileName(),
		stamp.New(ref, 30).FileName(),
	}
	got := up.requested()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("requests = %v, want %v", got, want)
	}
}

func TestInitSeedsGivenCycle(t *testing.T) {
	ref := nextCycle()
	seeded := ref.Add(stamp.CycleInterval)
	up := newTestUpstream(
		stamp.New(seeded, 6).FileName(),
		stamp.New(seeded, 9).FileName(),
	)
	defer up.Close()

	e, _ := newTestEngine(t, up, ref, 9)
	e.Init(seeded)

	// Init walks the given cycle, not the strategy's current one.
	for _, h := range []int{6, 9} {
		st := stamp.New(seeded, h)
		if !e.status.HasStamp(st) {
			t.Errorf("stamp %s not registered", st)
		}
	}
	if got := e.status.CurrentRefTime(); !got.Equal(ref) {
		t.Errorf("current ref time = %v, want %v untouched", got, ref)
	}
}

func TestMergeRule(t *testing.T) {
	ref := nextCycle()
	prev := ref.Add(-stamp.CycleInterval)
	up := newTestUpstream()
	defer up.Close()

	e, dir := newTestEngine(t, up, ref, 384)

	// Previous cycle covers ref+6h and ref+12h.
	oldAtSix := stamp.New(prev, 12)
	oldAtTwelve := stamp.New(prev, 18)
	for _, st := range []stamp.Stamp{oldAtSix, oldAtTwelve} {
		putArtifact(t, dir, st)
		e.status.AddForecast(st)
	}

	// The new cycle's analysis-side hour joins the existing entry.
	newAtSix := stamp.New(ref, 6)
	putArtifact(t, dir, newAtSix)
	if err := e.onStampDownloaded(true, false, newAtSix); err != nil {
		t.Fatalf("onStampDownloaded: %v", err)
	}
	if got := entryStamps(e, newAtSix.ForecastTime); len(got) != 2 {
		t.Errorf("entry at +6h holds %d stamps, want 2", len(got))
	}
	if !artifactExists(dir, oldAtSix) {
		t.Error("analysis-side arrival deleted the previous cycle's artifact")
	}

	// Past the analysis hours the new cycle replaces the old artifacts.
	newAtTwelve := stamp.New(ref, 12)
	putArtifact(t, dir, newAtTwelve)
	if err := e.onStampDownloaded(true, false, newAtTwelve); err != nil {
		t.Fatalf("onStampDownloaded: %v", err)
	}
	got := entryStamps(e, newAtTwelve.ForecastTime)
	if len(got) != 1 || !got[0].RefTime.Equal(ref) {
		t.Errorf("entry at +12h = %v, want only the new cycle's stamp", got)
	}
	if artifactExists(dir, oldAtTwelve) {
		t.Error("superseded artifact still stored")
	}
	if !artifactExists(dir, newAtTwelve) {
		t.Error("new artifact missing")
	}
}

func TestRefreshReconciles(t *testing.T) {
	ref := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	up := newTestUpstream()
	defer up.Close()

	e, dir := newTestEngine(t, up, ref, 384)

	// registered holds a file and an entry; orphan holds only a file;
	// ghost holds only an entry; analysis is the next cycle's hour 0
	// sharing registered's forecast time.
	registered := stamp.New(ref, 6)
	orphan := stamp.New(ref, 9)
	ghost := stamp.New(ref, 12)
	analysis := stamp.New(ref.Add(stamp.CycleInterval), 0)

	putArtifact(t, dir, registered)
	putArtifact(t, dir, orphan)
	putArtifact(t, dir, analysis)
	e.status.AddForecast(registered)
	e.status.AddForecast(ghost)

	if err := e.refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if e.status.Contains(ghost.ForecastTime) {
		t.Error("entry without a file survived refresh")
	}
	if !e.status.HasStamp(orphan) {
		t.Error("stored artifact not re-registered")
	}

	stamps := entryStamps(e, registered.ForecastTime)
	if len(stamps) != 2 {
		t.Fatalf("entry at %v holds %d stamps, want 2", registered.ForecastTime, len(stamps))
	}
	for _, st := range stamps {
		switch {
		case st.RefTime.Equal(registered.RefTime) && st.Wind != nil:
			t.Error("already-registered stamp was reloaded")
		case st.RefTime.Equal(analysis.RefTime) && st.Wind == nil:
			t.Error("analysis stamp registered without its wind")
		}
	}

	// Refresh again: everything is indexed, nothing changes.
	if err := e.refresh(); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if got := entryStamps(e, registered.ForecastTime); len(got) != 2 {
		t.Errorf("second refresh changed the entry to %d stamps", len(got))
	}
}

func TestCleanDropsStaleForecasts(t *testing.T) {
	now := time.Now().UTC()
	up := newTestUpstream()
	defer up.Close()

	e, dir := newTestEngine(t, up, nextCycle(), 384)

	stale := stamp.New(now.Add(-10*time.Hour), 6)   // forecast now-4h
	bracket := stamp.New(now.Add(-7*time.Hour), 6)  // forecast now-1h
	upcoming := stamp.New(now.Add(-4*time.Hour), 6) // forecast now+2h
	for _, st := range []stamp.Stamp{stale, bracket, upcoming} {
		putArtifact(t, dir, st)
		e.status.AddForecast(st)
	}

	e.clean()

	if e.status.Contains(stale.ForecastTime) || artifactExists(dir, stale) {
		t.Error("stale forecast survived clean")
	}
	for _, st := range []stamp.Stamp{bracket, upcoming} {
		if !e.status.Contains(st.ForecastTime) || !artifactExists(dir, st) {
			t.Errorf("live forecast %s dropped by clean", st)
		}
	}
}

func TestStartStopTerminates(t *testing.T) {
	up := newTestUpstream()
	defer up.Close()

	e, _ := newTestEngine(t, up, nextCycle(), 12)
	e.Start()
	e.Stop()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine loops did not stop")
	}
}
