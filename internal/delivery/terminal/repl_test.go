package terminal

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockwerks/weather-forecast-app/internal/domain"
	"github.com/rockwerks/weather-forecast-app/internal/lookup"
)

type tableFetcher map[string]domain.WeatherReport

func (f tableFetcher) Fetch(ctx context.Context, city string, unit domain.UnitSystem) (domain.WeatherReport, error) {
	r, ok := f[city+"/"+unit.String()]
	if !ok {
		return domain.WeatherReport{}, &domain.APIError{StatusCode: 404}
	}
	return r, nil
}

func newFetcher() tableFetcher {
	return tableFetcher{
		"Paris/metric": {
			Location: "Paris", Country: "FR", Temperature: 18.4, FeelsLike: 17.6,
			Humidity: 60, Description: "clear sky", WindSpeed: 3.6, Pressure: 1015,
		},
		"Paris/imperial": {
			Location: "Paris", Country: "FR", Temperature: 65.1, FeelsLike: 63.7,
			Humidity: 60, Description: "clear sky", WindSpeed: 8.1, Pressure: 1015,
		},
	}
}

func runREPL(t *testing.T, input string) string {
	t.Helper()
	l := lookup.New(newFetcher())
	defer l.Close()

	var out bytes.Buffer
	require.NoError(t, NewREPL(l, strings.NewReader(input), &out).Run(context.Background()))
	return out.String()
}

func TestREPLSearch(t *testing.T) {
	out := runREPL(t, "Paris\n:quit\n")

	assert.Contains(t, out, "Fetching weather data...\nParis, FR\n")
	assert.Contains(t, out, "Temperature: 18°C\n")
	assert.Contains(t, out, "Feels like:  18°C\n")
	assert.Contains(t, out, "Humidity:    60%\n")
	assert.Contains(t, out, "Wind Speed:  4 m/s\n")
	assert.Contains(t, out, "Pressure:    1015 hPa\n")
}

func TestREPLUnitToggleRefetchesShownCity(t *testing.T) {
	out := runREPL(t, "Paris\n:imperial\n")

	assert.Contains(t, out, "Temperature: 65°F\n")
	assert.Contains(t, out, "Wind Speed:  8 mph\n")
	assert.Equal(t, 2, strings.Count(out, "Fetching weather data..."))
}

func TestREPLUnitToggleWithoutReport(t *testing.T) {
	out := runREPL(t, ":units f\n:units kelvin\n")

	assert.Contains(t, out, "Units set to imperial.\n")
	assert.Contains(t, out, `Error: unknown unit system: "kelvin"`)
	assert.NotContains(t, out, "Fetching weather data...")
}

func TestREPLFailureShowsHint(t *testing.T) {
	out := runREPL(t, "Nowhere\n")

	assert.Contains(t, out, "Error: city not found or API error: 404\n"+domain.ErrorHint+"\n")
}

func TestREPLBlankLineAndCommands(t *testing.T) {
	out := runREPL(t, "   \n:help\n:clear\n:bogus\n")

	assert.NotContains(t, out, "Fetching weather data...")
	assert.Contains(t, out, ":units <system>")
	assert.Contains(t, out, "Cleared.\n")
	assert.Contains(t, out, `Unknown command "bogus"`)
}

func TestREPLStopsOnCancelledContext(t *testing.T) {
	l := lookup.New(newFetcher())
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// nothing is ever written to the pipe
	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	assert.NoError(t, NewREPL(l, pr, &out).Run(ctx))
}

func TestLookupOnce(t *testing.T) {
	l := lookup.New(newFetcher(), lookup.WithUnits(domain.Imperial))
	defer l.Close()

	var out bytes.Buffer
	require.NoError(t, LookupOnce(l, "Paris", &out))
	assert.Contains(t, out.String(), "Temperature: 65°F\n")

	out.Reset()
	err := LookupOnce(l, "Nowhere", &out)
	assert.ErrorIs(t, err, ErrLookupFailed)
	assert.Contains(t, out.String(), "Error: city not found or API error: 404\n")

	assert.ErrorIs(t, LookupOnce(l, "  ", &out), ErrLookupFailed)
}

func TestRenderIdleIsEmpty(t *testing.T) {
	var out bytes.Buffer
	Render(&out, domain.Snapshot{State: domain.Idle})
	assert.Empty(t, out.String())

	Render(&out, domain.Snapshot{State: domain.Loading})
	assert.Equal(t, "Fetching weather data...\n", out.String())
}
