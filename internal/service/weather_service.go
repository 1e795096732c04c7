package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rockwerks/weather-forecast-app/internal/domain"
)

// DefaultBaseURL is the OpenWeatherMap current weather endpoint
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// WeatherService handles weather data fetching
type WeatherService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

// WeatherOption configures a WeatherService
type WeatherOption func(*WeatherService)

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) WeatherOption {
	return func(s *WeatherService) {
		s.httpClient = c
	}
}

// WithTimeout sets a timeout on a copy of the current client; zero leaves
// requests unbounded.
func WithTimeout(d time.Duration) WeatherOption {
	return func(s *WeatherService) {
		c := *s.httpClient
		c.Timeout = d
		s.httpClient = &c
	}
}

// NewWeatherService creates a new weather service
func NewWeatherService(baseURL, apiKey string, opts ...WeatherOption) *WeatherService {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	s := &WeatherService{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenWeatherResponse represents the OpenWeatherMap API response
// Objects are pointers so a missing one can be told apart from zero values.
type OpenWeatherResponse struct {
	Main *struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind *struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
}

// requestURL keeps the q, appid, units parameter order of the provider docs.
func (s *WeatherService) requestURL(city string, unit domain.UnitSystem) string {
	return fmt.Sprintf("%s?q=%s&appid=%s&units=%s",
		s.baseURL, url.QueryEscape(city), url.QueryEscape(s.apiKey), unit.String())
}

// Fetch issues one GET for city in the given unit system.
func (s *WeatherService) Fetch(ctx context.Context, city string, unit domain.UnitSystem) (domain.WeatherReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.requestURL(city, unit), nil)
	if err != nil {
		return domain.WeatherReport{}, &domain.TransportError{Err: fmt.Errorf("weather: failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.WeatherReport{}, &domain.TransportError{Err: fmt.Errorf("weather: request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.WeatherReport{}, &domain.APIError{StatusCode: resp.StatusCode}
	}

	var owResp OpenWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&owResp); err != nil {
		return domain.WeatherReport{}, &domain.TransportError{Err: fmt.Errorf("weather: failed to decode response: %w", err)}
	}

	if err := owResp.validate(); err != nil {
		return domain.WeatherReport{}, &domain.TransportError{Err: fmt.Errorf("weather: incomplete response: %w", err)}
	}

	return domain.WeatherReport{
		Location:    owResp.Name,
		Country:     owResp.Sys.Country,
		Temperature: owResp.Main.Temp,
		FeelsLike:   owResp.Main.FeelsLike,
		Humidity:    owResp.Main.Humidity,
		Pressure:    owResp.Main.Pressure,
		Description: owResp.Weather[0].Description,
		WindSpeed:   owResp.Wind.Speed,
		Units:       unit,
		FetchedAt:   s.now(),
	}, nil
}

// validate checks the fields a report is built from. The country may be
// empty for locations outside any country.
func (r *OpenWeatherResponse) validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return errors.New("missing name")
	case r.Main == nil:
		return errors.New("missing main")
	case len(r.Weather) == 0:
		return errors.New("missing weather")
	case r.Wind == nil:
		return errors.New("missing wind")
	}
	return nil
}
