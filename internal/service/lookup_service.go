package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rockwerks/weather-forecast-app/internal/domain"
	"github.com/rockwerks/weather-forecast-app/internal/lookup"
)

var (
	// ErrSessionNotFound is returned for unknown or evicted session ids
	ErrSessionNotFound = errors.New("session not found")
	// ErrEmptyCity is returned when a one-shot lookup has no city
	ErrEmptyCity = errors.New("city name is required")
)

// DefaultSessionTTL is how long an untouched session is kept
const DefaultSessionTTL = 30 * time.Minute

type session struct {
	lookup   *lookup.Lookup
	lastSeen time.Time
}

// LookupService owns the per-session weather lookups and writes an audit
// record for every completed fetch.
type LookupService struct {
	fetcher     lookup.Fetcher
	repo        DataRepository
	recorders   []domain.LookupRecorder
	logger      *slog.Logger
	defaultUnit domain.UnitSystem
	ttl         time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session

	wgBg sync.WaitGroup // tracks background audit writes for graceful shutdown
}

// LookupOption configures a LookupService
type LookupOption func(*LookupService)

// WithDefaultUnit sets the unit system new sessions start with
func WithDefaultUnit(u domain.UnitSystem) LookupOption {
	return func(s *LookupService) { s.defaultUnit = u }
}

// WithSessionTTL sets the idle eviction threshold
func WithSessionTTL(d time.Duration) LookupOption {
	return func(s *LookupService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithRecorders adds audit sinks next to the repository
func WithRecorders(r ...domain.LookupRecorder) LookupOption {
	return func(s *LookupService) { s.recorders = append(s.recorders, r...) }
}

// WithServiceLogger sets the logger used by the service and its sessions
func WithServiceLogger(logger *slog.Logger) LookupOption {
	return func(s *LookupService) { s.logger = logger }
}

// NewLookupService creates a new lookup service
func NewLookupService(fetcher lookup.Fetcher, repo DataRepository, opts ...LookupOption) *LookupService {
	s := &LookupService{
		fetcher:  fetcher,
		repo:     repo,
		logger:   slog.Default(),
		ttl:      DefaultSessionTTL,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession starts a new lookup and returns its id and initial snapshot.
func (s *LookupService) CreateSession(units *domain.UnitSystem) (string, domain.Snapshot) {
	id := uuid.NewString()
	unit := s.defaultUnit
	if units != nil {
		unit = *units
	}

	l := lookup.New(s.fetcher,
		lookup.WithUnits(unit),
		lookup.WithLogger(s.logger.With("session", id)),
		lookup.WithResultHook(func(res lookup.Result) {
			s.record(id, res)
		}),
	)

	s.mu.Lock()
	s.sessions[id] = &session{lookup: l, lastSeen: s.now()}
	s.mu.Unlock()

	s.logger.Debug("session created", "session", id, "units", unit.String())
	return id, l.Snapshot()
}

// Session returns the lookup for id and marks it as used.
func (s *LookupService) Session(id string) (*lookup.Lookup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("lookup: %w: %s", ErrSessionNotFound, id)
	}
	sess.lastSeen = s.now()
	return sess.lookup, nil
}

// CloseSession removes the session and cancels its in-flight fetch.
func (s *LookupService) CloseSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("lookup: %w: %s", ErrSessionNotFound, id)
	}
	sess.lookup.Close()
	return nil
}

// DefaultUnit is the unit system used when a caller does not pick one
func (s *LookupService) DefaultUnit() domain.UnitSystem {
	return s.defaultUnit
}

// SessionCount returns the number of live sessions
func (s *LookupService) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle closes sessions not used since now-ttl and returns how many were closed.
func (s *LookupService) EvictIdle(now time.Time) int {
	var stale []*session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.lookup.Close()
	}
	if len(stale) > 0 {
		s.logger.Info("evicted idle sessions", "count", len(stale))
	}
	return len(stale)
}

// Run evicts idle sessions periodically until ctx is done.
func (s *LookupService) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle(s.now())
		}
	}
}

// Lookup performs a one-shot fetch outside any session.
func (s *LookupService) Lookup(ctx context.Context, city string, unit domain.UnitSystem) (domain.WeatherReport, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return domain.WeatherReport{}, ErrEmptyCity
	}

	started := s.now()
	report, err := s.fetcher.Fetch(ctx, city, unit)
	res := lookup.Result{
		City:      city,
		Units:     unit,
		Err:       err,
		StartedAt: started,
		Duration:  s.now().Sub(started),
	}
	if err == nil {
		res.Report = &report
	}
	s.record("", res)

	return report, err
}

// RecentLookups returns audit records, newest first
func (s *LookupService) RecentLookups(ctx context.Context, limit int) ([]domain.LookupRecord, error) {
	return s.repo.RecentLookups(ctx, limit)
}

// Health checks the repository
func (s *LookupService) Health(ctx context.Context) error {
	return s.repo.Health(ctx)
}

// record persists the result asynchronously (tracked for graceful shutdown)
func (s *LookupService) record(sessionID string, res lookup.Result) {
	rec := newLookupRecord(sessionID, res)

	s.wgBg.Add(1)
	go func() {
		defer s.wgBg.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.repo.SaveLookup(bgCtx, rec); err != nil {
			s.logger.Error("failed to save lookup record", "city", rec.City, "error", err)
		}
		for _, r := range s.recorders {
			if err := r.SaveLookup(bgCtx, rec); err != nil {
				s.logger.Error("failed to publish lookup record", "city", rec.City, "error", err)
			}
		}
	}()
}

func newLookupRecord(sessionID string, res lookup.Result) domain.LookupRecord {
	rec := domain.LookupRecord{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		City:        res.City,
		Units:       res.Units,
		Duration:    res.Duration,
		RequestedAt: res.StartedAt,
	}
	switch {
	case res.Discarded:
		rec.Outcome = domain.OutcomeDiscarded
	case res.Err != nil:
		rec.Outcome = domain.OutcomeFailed
	default:
		rec.Outcome = domain.OutcomeSuccess
	}
	if res.Err != nil {
		rec.Message = res.Err.Error()
		rec.StatusCode = domain.StatusCode(res.Err)
	}
	if res.Report != nil {
		rec.Location = res.Report.Location
		rec.Country = res.Report.Country
		rec.Temperature = res.Report.Temperature
	}
	return rec
}

// WaitBackground blocks until all background audit writes complete.
// Call during graceful shutdown to avoid dropped writes.
func (s *LookupService) WaitBackground() {
	s.wgBg.Wait()
}

// Shutdown closes every session and waits for pending audit writes.
func (s *LookupService) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.lookup.Close()
	}
	s.WaitBackground()
}
