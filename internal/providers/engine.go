package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/virtualwinds/winds/internal/stamp"
	"github.com/virtualwinds/winds/internal/status"
	"github.com/virtualwinds/winds/internal/storage"
)

const (
	// downloadPeriod is the cadence of the clean+download pass.
	downloadPeriod = 300 * time.Second

	// refreshPeriod is the cadence of inventory/storage reconciliation.
	refreshPeriod = 10 * time.Second

	// staleAfter is how far behind now a forecast may fall before the
	// prune pass drops it. The margin keeps the bracket below now
	// available for interpolation.
	staleAfter = 3 * time.Hour

	// requestTimeout bounds one upstream fetch.
	requestTimeout = 30 * time.Second

	// firstForecastHour is where a cycle walk starts; earlier hours
	// duplicate the previous cycle's coverage.
	firstForecastHour = 6

	// keepAnalysisHours is the forecast-hour threshold at or under which
	// a previous cycle's stamps survive the arrival of a fresher cycle,
	// smoothing the transition between cycles.
	keepAnalysisHours = 6

	// removeConcurrency bounds parallel storage deletions.
	removeConcurrency = 4
)

// Engine drives one provider: the bootstrap load, the periodic
// clean+download pass and the refresh pass, all sharing one Storage and
// one Status.
type Engine struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
	strategy Strategy
	storage  storage.Storage
	status   *status.Status
	client   *http.Client
	logger   *zap.SugaredLogger
}

// NewEngine creates the engine for one configured provider with an empty
// inventory.
func NewEngine(ctx context.Context, wg *sync.WaitGroup, strat Strategy, store storage.Storage, logger *zap.SugaredLogger) *Engine {
	engineCtx, cancel := context.WithCancel(ctx)
	return &Engine{
		ctx:      engineCtx,
		cancel:   cancel,
		wg:       wg,
		strategy: strat,
		storage:  store,
		status:   status.New(strat.ID(), strat.Name(), strat.CurrentRefTime()),
		client:   &http.Client{Timeout: requestTimeout},
		logger:   logger,
	}
}

// Status exposes the shared inventory for the HTTP read surface.
func (e *Engine) Status() *status.Status {
	return e.status
}

// Load registers everything already present in storage. With deleteStale,
// a stamp whose successor is itself already past is removed instead of
// registered; the terminal stamp is always kept. With loadWinds, each
// registered stamp gets its wind decoded immediately.
func (e *Engine) Load(deleteStale, loadWinds bool) error {
	e.logger.Info("Load provider")

	stamps, err := e.storage.List(e.ctx)
	if err != nil {
		return err
	}
	stamp.SortStamps(stamps)

	for i, st := range stamps {
		if deleteStale {
			if i+1 < len(stamps) && stamps[i+1].FromNow() < 0 {
				e.logger.Infof("Delete `%s` %s", st, st.FileName())
				if err := e.storage.Remove(e.ctx, st.FileName()); err != nil {
					return err
				}
				continue
			}
			e.logger.Debugf("Keep `%s` %s", st, st.FileName())
		}

		if err := e.onStampDownloaded(deleteStale, loadWinds, st); err != nil {
			e.logger.Errorf("Error executing downloaded callback : %v", err)
		}
	}

	if last, ok := e.status.Last(); ok {
		e.logger.Infof("`%s` : %d%%", last, e.status.Progress())
	}
	return nil
}

// Init seeds the download walk with a fixed cycle before the periodic
// passes begin.
func (e *Engine) Init(refTime time.Time) {
	e.logger.Infof("Init provider with ref %s", refTime.UTC().Format(time.RFC3339))
	e.downloadAt(refTime.UTC())
}

// Start launches the download and refresh loops.
func (e *Engine) Start() {
	e.logger.Info("Start provider")
	e.wg.Add(2)
	go e.downloadLoop()
	go e.refreshLoop()
}

// Stop cancels the loops; Start's goroutines exit through the shared
// WaitGroup.
func (e *Engine) Stop() {
	e.cancel()
}

func (e *Engine) downloadLoop() {
	defer e.wg.Done()
	for {
		e.clean()
		e.download()
		select {
		case <-e.ctx.Done():
			return
		case <-time.After(downloadPeriod):
		}
	}
}

func (e *Engine) refreshLoop() {
	defer e.wg.Done()
	for {
		if err := e.refresh(); err != nil {
			e.logger.Errorf("Error refreshing provider : %v", err)
		}
		select {
		case <-e.ctx.Done():
			return
		case <-time.After(refreshPeriod):
		}
	}
}

// download chases the newest published cycle.
func (e *Engine) download() {
	refTime := e.strategy.CurrentRefTime()
	e.status.SetCurrentRefTime(refTime)
	e.downloadAt(refTime)
}

func (e *Engine) downloadAt(refTime time.Time) {
	e.logger.Debug("Is there something to download ?")

	somethingNew, err := e.downloadNext(true, refTime)
	if err != nil {
		e.logger.Errorf("An error occurred while trying to download : %v", err)
		return
	}

	e.logger.Debug("Nothing more to download for now")
	if somethingNew {
		if last, ok := e.status.Last(); ok {
			e.logger.Infof("`%s` : %d%%", last, e.status.Progress())
		}
	}
}

// downloadNext walks the cycle's forecast hours. A 404 on the first hour
// actually attempted means the cycle is not published yet: one recursion
// steps back to the previous cycle. Any later 404 ends the walk, keeping
// the partial cycle. Other download failures abort the current artifact
// and end the walk.
func (e *Engine) downloadNext(first bool, refTime time.Time) (bool, error) {
	somethingNew := false

	step := e.strategy.Step()
	for h := firstForecastHour; h <= e.strategy.MaxForecastHour(); h += step {
		st := stamp.New(refTime, h)
		if st.FromNow() <= -time.Duration(step)*time.Hour {
			continue
		}

		exists, err := e.storage.Exists(e.ctx, st.FileName())
		if err != nil {
			return somethingNew, err
		}
		if !exists {
			switch err := e.downloadArtifact(st); {
			case err == nil:
				somethingNew = true
				if err := e.onStampDownloaded(true, false, st); err != nil {
					e.logger.Errorf("Error executing downloaded callback : %v", err)
				}
			case errors.Is(err, ErrStampNotFound):
				if first {
					return e.downloadNext(false, refTime.Add(-stamp.CycleInterval))
				}
				return somethingNew, nil
			default:
				e.logger.Errorf("Error downloading `%s` : %v", st, err)
				return somethingNew, nil
			}
		}

		first = false
	}

	return somethingNew, nil
}

// downloadArtifact fetches one artifact to a temporary file and hands it
// to the strategy for conversion and storage. The temporary file never
// outlives the call.
func (e *Engine) downloadArtifact(st stamp.Stamp) error {
	url := e.strategy.ArtifactURL(st)
	e.logger.Debugf("`%s` Try to download %s", st, url)

	req, err := http.NewRequestWithContext(e.ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		e.logger.Debugf("Download failed `%s` : %s", st, resp.Status)
		return ErrStampNotFound
	default:
		e.logger.Warnf("Download failed `%s` : %s", st, resp.Status)
		return errors.New("unexpected status " + resp.Status)
	}

	tmp, err := os.CreateTemp("", "winds-download-*")
	if err != nil {
		return err
	}
	path := tmp.Name()
	defer os.Remove(path)

	_, err = io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if err := e.strategy.OnFileDownloaded(e.ctx, path, st); err != nil {
		return err
	}

	e.logger.Infof("`%s` Downloaded", st)
	return nil
}

// onStampDownloaded registers a saved artifact in the inventory.
//
// With deleteSuperseded, a stamp past the analysis hours arriving at a
// forecast time that is already covered replaces the previous cycle's
// artifacts there, files included.
func (e *Engine) onStampDownloaded(deleteSuperseded, loadWind bool, st stamp.Stamp) error {
	if deleteSuperseded && e.status.Contains(st.ForecastTime) && st.ForecastHour() > keepAnalysisHours {
		e.removeStamps(e.status.RemoveForecast(st.ForecastTime))
	}

	e.status.SetLast(st.RefTime, st.ForecastHour(), e.strategy.MaxForecastHour())

	if loadWind {
		e.logger.Debugf("Load `%s` %s", st, st.FileName())
		w, err := e.strategy.LoadStamp(e.ctx, st)
		if err != nil {
			return err
		}
		st.Wind = w
	}

	e.status.AddForecast(st)
	return nil
}

// refresh reconciles the inventory with storage: entries whose files
// vanished are dropped, and stamps present in storage but not indexed are
// registered with their wind loaded. A new cycle's analysis stamp joins
// the forecast time it shares with the previous cycle.
func (e *Engine) refresh() error {
	e.logger.Debug("Refresh provider")

	e.status.Retain(func(stamps []stamp.Stamp) bool {
		for _, st := range stamps {
			exists, err := e.storage.Exists(e.ctx, st.FileName())
			if err != nil || !exists {
				return false
			}
		}
		return true
	})

	stamps, err := e.storage.List(e.ctx)
	if err != nil {
		return err
	}
	stamp.SortStamps(stamps)

	for _, st := range stamps {
		if e.status.Contains(st.ForecastTime) && (st.ForecastHour() != 0 || e.status.HasStamp(st)) {
			continue
		}
		e.logger.Debugf("Add %s to forecast %s", st, st.ForecastTime.Format(time.RFC3339))
		if err := e.onStampDownloaded(false, true, st); err != nil {
			e.logger.Errorf("Error executing downloaded callback : %v", err)
		}
	}
	return nil
}

// clean drops forecasts that fell more than staleAfter behind now and
// deletes their artifacts.
func (e *Engine) clean() {
	e.removeStamps(e.status.DrainBefore(time.Now().Add(-staleAfter)))
}

// removeStamps deletes the artifacts behind already-detached stamps, a
// bounded number at a time. Failures are logged and skipped; the refresh
// pass re-registers anything a failed delete left behind.
func (e *Engine) removeStamps(stamps []stamp.Stamp) {
	g := new(errgroup.Group)
	g.SetLimit(removeConcurrency)
	for _, st := range stamps {
		g.Go(func() error {
			e.logger.Infof("Delete `%s`", st)
			if err := e.storage.Remove(e.ctx, st.FileName()); err != nil {
				e.logger.Errorf("Error removing file %s from storage : %v", st.FileName(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
