// Package lookup implements the weather search state machine: the search
// field, the active unit system, the last report and the request state.
//
// Operations return immediately. A fetch runs on its own goroutine and
// applies its result only if no newer request was started in the meantime.
package lookup

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rockwerks/weather-forecast-app/internal/domain"
)

// ConfirmKey submits the search when passed to OnConfirmKey
const ConfirmKey = "Enter"

// Fetcher retrieves current weather for a city
type Fetcher interface {
	Fetch(ctx context.Context, city string, unit domain.UnitSystem) (domain.WeatherReport, error)
}

// Result describes a completed fetch, including superseded ones
type Result struct {
	City      string
	Units     domain.UnitSystem
	Report    *domain.WeatherReport
	Err       error
	Discarded bool
	StartedAt time.Time
	Duration  time.Duration
}

// Option configures a Lookup
type Option func(*Lookup)

// WithUnits sets the initial unit system
func WithUnits(u domain.UnitSystem) Option {
	return func(l *Lookup) { l.unit = u }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Lookup) { l.logger = logger }
}

// WithResultHook registers fn to be called after every completed fetch.
// fn runs on the fetch goroutine, outside the lookup's lock.
func WithResultHook(fn func(Result)) Option {
	return func(l *Lookup) { l.onResult = fn }
}

// Lookup owns the search query, unit system, report and request state.
type Lookup struct {
	fetcher  Fetcher
	logger   *slog.Logger
	onResult func(Result)
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	mu         sync.Mutex
	query      string
	unit       domain.UnitSystem
	report     *domain.WeatherReport
	state      domain.RequestState
	message    string
	generation uint64
	closed     bool
	subs       map[int]chan domain.Snapshot
	nextSub    int
}

// New creates a Lookup in the Idle state
func New(fetcher Fetcher, opts ...Option) *Lookup {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Lookup{
		fetcher: fetcher,
		logger:  slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[int]chan domain.Snapshot),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnInputChange sets the search query verbatim.
func (l *Lookup) OnInputChange(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.query = text
	l.publishLocked()
}

// OnConfirmKey submits the search when key is the confirm key.
func (l *Lookup) OnConfirmKey(key string) bool {
	if key != ConfirmKey {
		return false
	}
	return l.OnSearchSubmit()
}

// OnSearchSubmit starts a fetch for the trimmed query. It does nothing when
// the query is blank or a fetch is already loading, and reports whether a
// fetch was started.
func (l *Lookup) OnSearchSubmit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	city := strings.TrimSpace(l.query)
	if city == "" || l.state == domain.Loading || l.closed {
		return false
	}
	l.startLocked(city, l.unit)
	return true
}

// OnClear resets the query, report and state. The unit system is kept and
// any fetch still in flight is superseded.
func (l *Lookup) OnClear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.query = ""
	l.report = nil
	l.state = domain.Idle
	l.message = ""
	l.generation++
	l.publishLocked()
}

// OnUnitChange switches the unit system. When a report is shown, the city
// of that report is fetched again in the new units, regardless of what is
// currently typed in the search field. A closed lookup ignores it.
func (l *Lookup) OnUnitChange(unit domain.UnitSystem) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.unit = unit
	if l.report == nil {
		l.publishLocked()
		return false
	}
	l.startLocked(l.report.Location, unit)
	return true
}

// startLocked moves to Loading and launches the fetch pipeline.
func (l *Lookup) startLocked(city string, unit domain.UnitSystem) {
	l.generation++
	gen := l.generation
	l.state = domain.Loading
	l.report = nil
	l.message = ""
	l.publishLocked()

	l.inflight.Add(1)
	go l.run(gen, city, unit)
}

func (l *Lookup) run(gen uint64, city string, unit domain.UnitSystem) {
	defer l.inflight.Done()

	started := time.Now()
	report, err := l.fetcher.Fetch(l.ctx, city, unit)
	res := Result{
		City:      city,
		Units:     unit,
		Err:       err,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	if err == nil {
		res.Report = &report
	}

	l.mu.Lock()
	if gen != l.generation || l.closed {
		res.Discarded = true
		l.mu.Unlock()
		l.logger.Debug("discarding superseded weather response",
			"city", city, "units", unit.String(), "generation", gen)
		l.emit(res)
		return
	}
	if err != nil {
		l.state = domain.Failed
		l.message = errorMessage(err)
		l.report = nil
		l.logger.Warn("weather lookup failed", "city", city, "units", unit.String(), "error", err)
	} else {
		l.state = domain.Success
		l.message = ""
		l.report = &report
		l.logger.Info("weather lookup succeeded",
			"city", city, "location", report.Location, "units", unit.String(),
			"duration_ms", res.Duration.Milliseconds())
	}
	l.publishLocked()
	l.mu.Unlock()

	l.emit(res)
}

func (l *Lookup) emit(res Result) {
	if l.onResult != nil {
		l.onResult(res)
	}
}

// errorMessage is the user-visible text of a failed fetch.
func errorMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	return err.Error()
}

// Snapshot returns a copy of the current state
func (l *Lookup) Snapshot() domain.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Lookup) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		Query:         l.query,
		Units:         l.unit,
		State:         l.state,
		Message:       l.message,
		ShowClear:     l.query != "",
		CanSubmit:     strings.TrimSpace(l.query) != "" && l.state != domain.Loading,
		InputDisabled: l.state == domain.Loading,
	}
	if l.report != nil {
		r := *l.report
		card := r.Card(l.unit)
		snap.Report = &r
		snap.Card = &card
	}
	return snap
}

// Subscribe returns a channel that receives the latest snapshot after every
// transition. Only the newest snapshot is kept for a slow reader. The
// channel is closed by cancel or Close.
func (l *Lookup) Subscribe() (<-chan domain.Snapshot, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan domain.Snapshot, 1)
	if l.closed {
		close(ch)
		return ch, func() {}
	}
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	ch <- l.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if c, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(c)
			}
		})
	}
}

func (l *Lookup) publishLocked() {
	if len(l.subs) == 0 {
		return
	}
	snap := l.snapshotLocked()
	for _, ch := range l.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Wait blocks until every fetch started so far has completed.
func (l *Lookup) Wait() {
	l.inflight.Wait()
}

// Close cancels in-flight fetches, waits for them and ends all subscriptions.
func (l *Lookup) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
	l.mu.Unlock()

	l.cancel()
	l.inflight.Wait()
}
