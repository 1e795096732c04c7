package lookup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockwerks/weather-forecast-app/internal/domain"
)

type fetchResult struct {
	report domain.WeatherReport
	err    error
}

type pendingFetch struct {
	city  string
	unit  domain.UnitSystem
	reply chan fetchResult
}

func (p *pendingFetch) succeed(r domain.WeatherReport) { p.reply <- fetchResult{report: r} }
func (p *pendingFetch) fail(err error)                 { p.reply <- fetchResult{err: err} }

// stubFetcher hands every call to the test and blocks until it is answered.
type stubFetcher struct {
	calls chan *pendingFetch
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{calls: make(chan *pendingFetch, 16)}
}

func (f *stubFetcher) Fetch(ctx context.Context, city string, unit domain.UnitSystem) (domain.WeatherReport, error) {
	p := &pendingFetch{city: city, unit: unit, reply: make(chan fetchResult, 1)}
	f.calls <- p
	select {
	case r := <-p.reply:
		return r.report, r.err
	case <-ctx.Done():
		return domain.WeatherReport{}, ctx.Err()
	}
}

func (f *stubFetcher) next(t *testing.T) *pendingFetch {
	t.Helper()
	select {
	case p := <-f.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fetch to be issued")
		return nil
	}
}

func report(city, country string, temp float64) domain.WeatherReport {
	return domain.WeatherReport{
		Location:    city,
		Country:     country,
		Temperature: temp,
		FeelsLike:   temp,
		Humidity:    50,
		Description: "clear sky",
		WindSpeed:   1,
		Pressure:    1010,
	}
}

func newLookup(t *testing.T, f Fetcher, opts ...Option) *Lookup {
	t.Helper()
	l := New(f, opts...)
	t.Cleanup(l.Close)
	return l
}

func TestInputChangeOnlySetsQuery(t *testing.T) {
	f := newStubFetcher()
	l := newLookup(t, f)

	l.OnInputChange("  Paris ")

	snap := l.Snapshot()
	assert.Equal(t, "  Paris ", snap.Query)
	assert.Equal(t, domain.Idle, snap.State)
	assert.True(t, snap.ShowClear)
	assert.True(t, snap.CanSubmit)
	assert.Len(t, f.calls, 0)
}

func TestSubmitBlankQueryIsNoop(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		f := newStubFetcher()
		l := newLookup(t, f)
		l.OnInputChange(q)

		assert.False(t, l.OnSearchSubmit())
		assert.Equal(t, domain.Idle, l.Snapshot().State)
		assert.Len(t, f.calls, 0)
	}
}

func TestSubmitSuccess(t *testing.T) {
	f := newStubFetcher()
	l := newLookup(t, f)

	l.OnInputChange("  Paris, FR  ")
	require.True(t, l.OnSearchSubmit())

	snap := l.Snapshot()
	assert.Equal(t, domain.Loading, snap.State)
	assert.Nil(t, snap.Report)
	assert.True(t, snap.InputDisabled)
	assert.False(t, snap.CanSubmit)

	p := f.next(t)
	assert.Equal(t, "Paris, FR", p.city)
	assert.Equal(t, domain.Metric, p.unit)

	p.succeed(domain.WeatherReport{
		Location: "Paris", Country: "FR",
		Temperature: 18.2, FeelsLike: 17.5, Humidity: 60, Pressure: 1012,
		Description: "clear sky", WindSpeed: 2.1,
	})
	l.Wait()

	snap = l.Snapshot()
	require.Equal(t, domain.Success, snap.State)
	require.NotNil(t, snap.Report)
	require.NotNil(t, snap.Card)
	assert.Empty(t, snap.Message)
	assert.Equal(t, 18.2, snap.Report.Temperature)
	assert.Equal(t, domain.Card{
		Title:       "Paris, FR",
		Temperature: "18°C",
		Description: "clear sky",
		FeelsLike:   "18°C",
		Humidity:    "60%",
		WindSpeed:   "2 m/s",
		Pressure:    "1012 hPa",
	}, *snap.Card)
}

func TestSubmitFailureKeepsReportAbsent(t *testing.T) {
	f := newStubFetcher()
	l := newLookup(t, f)

	l.OnInputChange("Nowhere")
	l.OnSearchSubmit()
	f.next(t).fail(&domain.APIError{StatusCode: 404})
	l.Wait()

	snap := l.Snapshot()
	assert.Equal(t, domain.Failed, snap.State)
	assert.Contains(t, snap.Message, "404")
	assert.Nil(t, snap.Report)
	assert.Nil(t, snap.Card)
}

func TestTransportFailureUsesGenericMessage(t *testing.T) {
	f := newStubFetcher()
	l := newLookup(t, f)

	l.OnInputChange("Paris")
	l.OnSearchSubmit()
	f.next(t).fail(&domain.TransportError{Err: context.DeadlineExceeded})
	l.Wait()

	snap := l.Snapshot()
	assert.Equal(t, domain.Failed, snap.State)
	assert.Equal(t, "could not reach weather service", snap.Message)
}

func TestSubmitWhileLoadingIsNoop(t *testing.T) {
	f := newStubFetcher()
	l := newLookup(t, f)

	l.OnInputChange("Tokyo")
	require.True(t, l.OnSearchSubmit())
	assert.False(t, l.OnSearchSubmit())
	assert.False(t, l.OnConfirmKey(ConfirmKey))

	p := f.next(t)
	assert.Len(t, f.calls, 0)
	p.succeed(report("Tokyo", "JP", 20))
	l.Wait()
	assert.Equal(t, domain.Success, l.Snapshot().State)
}

func TestConfirmKey(t *testing.T) {
	f := newStubFetcher()
	l := newLookup(t, f)
	l.OnInputChange("Oslo")

	assert.False(t, l.OnConfirmKey("a"))
	assert.Equal(t, domain.Idle, l.Snapshot().State)

	assert.True(t, l.OnConfirmKey("Enter"))
	f.next(t).succeed(report("Oslo", "NO", 3))
	l.Wait()
	assert.Equal(t, domain.Success, l.Snapshot().State)
}

func TestClearResetsEverythingButUnits(t *testing.T) {
	f := newStubFetcher()
	l := newLookup(t, f, WithUnits(domain.Imperial))

	l.OnInputChange("Paris")
	l.OnSearchSubmit()
	f.next(t).fail(&domain.APIError{StatusCode: 500})
	l.Wait()
	require.Equal(t, domain.Failed, l.Snapshot().State)

	l.OnClear()

	snap := l.Snapshot()
	assert.Equal(t, "", snap.Query)
	assert.Nil(t, snap.Report)
	assert.Equal(t, domain.Idle, snap.State)
	assert.Empty(t, snap.Message)
	assert.Equal(t, domain.Imperial, snap.Units)
	assert.False(t, snap.ShowClear)
}

func TestClearWhileLoadingDiscardsLateResult(t *testing.T) {
	f := newStubFetcher()
	l := newLookup(t, f)

	l.OnInputChange("Paris")
	l.OnSearchSubmit()
	p := f.next(t)
	l.OnClear()

	p.succeed(report("Paris", "FR", 18))
	l.Wait()

	snap := l.Snapshot()
	assert.Equal(t, domain.Idle, snap.State)
	assert.Nil(t, snap.Report)
}

func TestUnitChangeRefetchesStoredLocation(t *testing.T) {
	f := newStubFetcher()
	l := newLookup(t, f)

	l.OnInputChange("paris")
	l.OnSearchSubmit()
	f.next(t).succeed(report("Paris", "FR", 18.2))
	l.Wait()

	l.OnInputChange("Berlin")
	require.True(t, l.OnUnitChange(domain.Imperial))

	snap := l.Snapshot()
	assert.Equal(t, domain.Loading, snap.State)
	assert.Nil(t, snap.Report)
	assert.Equal(t, "Berlin", snap.Query)

	p := f.next(t)
	assert.Equal(t, "Paris", p.city)
	assert.Equal(t, domain.Imperial, p.unit)

	p.succeed(report("Paris", "FR", 64.8))
	l.Wait()

	snap = l.Snapshot()
	require.NotNil(t, snap.Card)
	assert.Equal(t, "65°F", snap.Card.Temperature)
	assert.Equal(t, "1 mph", snap.Card.WindSpeed)
}

func TestUnitChangeWithoutReportDoesNotFetch(t *testing.T) {
	f := newStubFetcher()
	l := newLookup(t, f)
	l.OnInputChange("Paris")

	assert.False(t, l.OnUnitChange(domain.Imperial))
	assert.Equal(t, domain.Imperial, l.Snapshot().Units)
	assert.Len(t, f.calls, 0)

	// idempotent
	assert.False(t, l.OnUnitChange(domain.Imperial))
	assert.Equal(t, domain.Imperial, l.Snapshot().Units)
}

func TestSubmitUsesCurrentUnits(t *testing.T) {
	f := newStubFetcher()
	l := newLookup(t, f)
	l.OnUnitChange(domain.Imperial)
	l.OnInputChange("Denver")
	l.OnSearchSubmit()

	p := f.next(t)
	assert.Equal(t, domain.Imperial, p.unit)
	p.succeed(report("Denver", "US", 50))
	l.Wait()
}

func TestLatestRequestWins(t *testing.T) {
	t.Run("newer completes first", func(t *testing.T) {
		f := newStubFetcher()
		var (
			mu        sync.Mutex
			discarded int
			applied   int
		)
		l := newLookup(t, f, WithResultHook(func(r Result) {
			mu.Lock()
			defer mu.Unlock()
			if r.Discarded {
				discarded++
			} else {
				applied++
			}
		}))

		// fetch A, then the unit toggle starts fetch B for the same city
		l.mu.Lock()
		l.startLocked("Tokyo", domain.Metric)
		l.mu.Unlock()
		a := f.next(t)

		l.mu.Lock()
		l.startLocked("Tokyo", domain.Imperial)
		l.mu.Unlock()
		b := f.next(t)

		b.succeed(report("Tokyo", "JP", 68))
		require.Eventually(t, func() bool { return l.Snapshot().State == domain.Success }, time.Second, 5*time.Millisecond)

		a.succeed(report("Tokyo", "JP", 20))
		l.Wait()

		snap := l.Snapshot()
		require.NotNil(t, snap.Report)
		assert.Equal(t, 68.0, snap.Report.Temperature)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 1, applied)
		assert.Equal(t, 1, discarded)
	})

	t.Run("older completes first", func(t *testing.T) {
		f := newStubFetcher()
		l := newLookup(t, f)

		l.OnInputChange("Tokyo")
		l.OnSearchSubmit()
		a := f.next(t)

		l.OnClear()
		l.OnInputChange("Osaka")
		l.OnSearchSubmit()
		b := f.next(t)

		a.succeed(report("Tokyo", "JP", 20))
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, domain.Loading, l.Snapshot().State)

		b.fail(&domain.APIError{StatusCode: 404})
		l.Wait()

		snap := l.Snapshot()
		assert.Equal(t, domain.Failed, snap.State)
		assert.Nil(t, snap.Report)
	})
}

func TestSubscribeReceivesLatestSnapshot(t *testing.T) {
	f := newStubFetcher()
	l := newLookup(t, f)

	ch, cancel := l.Subscribe()
	defer cancel()

	initial := <-ch
	assert.Equal(t, domain.Idle, initial.State)

	l.OnInputChange("Lima")
	l.OnSearchSubmit()
	f.next(t).succeed(report("Lima", "PE", 22))
	l.Wait()

	snap := <-ch
	assert.Equal(t, domain.Success, snap.State)

	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestCloseCancelsInFlight(t *testing.T) {
	f := newStubFetcher()
	var got []Result
	l := New(f, WithResultHook(func(r Result) { got = append(got, r) }))

	ch, _ := l.Subscribe()
	l.OnInputChange("Rome")
	l.OnSearchSubmit()
	f.next(t)

	l.Close()

	require.Len(t, got, 1)
	assert.True(t, got[0].Discarded)
	assert.ErrorIs(t, got[0].Err, context.Canceled)
	for range ch {
	}
	assert.False(t, l.OnSearchSubmit())
}

func TestUnitChangeAfterCloseKeepsCardConsistent(t *testing.T) {
	f := newStubFetcher()
	l := New(f)

	l.OnInputChange("Paris")
	l.OnSearchSubmit()
	f.next(t).succeed(report("Paris", "FR", 18.2))
	l.Wait()
	l.Close()

	assert.False(t, l.OnUnitChange(domain.Imperial))
	assert.Len(t, f.calls, 0)

	snap := l.Snapshot()
	assert.Equal(t, domain.Metric, snap.Units)
	require.NotNil(t, snap.Card)
	assert.Equal(t, "18°C", snap.Card.Temperature)
	assert.Equal(t, "1 m/s", snap.Card.WindSpeed)
}
