package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/rockwerks/weather-forecast-app/pkg/utils"
)

// WeatherReport represents current conditions for a resolved location.
// Values keep the precision returned by the provider; rounding happens in Card.
type WeatherReport struct {
	Location    string     `json:"location"`
	Country     string     `json:"country"`
	Temperature float64    `json:"temperature"`
	FeelsLike   float64    `json:"feels_like"`
	Humidity    int        `json:"humidity"`
	Description string     `json:"description"`
	WindSpeed   float64    `json:"wind_speed"`
	Pressure    int        `json:"pressure"`
	Units       UnitSystem `json:"units"`
	FetchedAt   time.Time  `json:"fetched_at"`
}

// Card holds the display-ready strings of a report
type Card struct {
	Title       string `json:"title"`
	Temperature string `json:"temperature"`
	Description string `json:"description"`
	FeelsLike   string `json:"feels_like"`
	Humidity    string `json:"humidity"`
	WindSpeed   string `json:"wind_speed"`
	Pressure    string `json:"pressure"`
}

// Card renders the report for the given unit system.
func (r WeatherReport) Card(unit UnitSystem) Card {
	return Card{
		Title:       r.Title(),
		Temperature: FormatTemperature(r.Temperature, unit),
		Description: r.Description,
		FeelsLike:   FormatTemperature(r.FeelsLike, unit),
		Humidity:    fmt.Sprintf("%d%%", r.Humidity),
		WindSpeed:   FormatWindSpeed(r.WindSpeed, unit),
		Pressure:    fmt.Sprintf("%d hPa", r.Pressure),
	}
}

// Title is the "<name>, <country>" heading of the result card
func (r WeatherReport) Title() string {
	if r.Country == "" {
		return r.Location
	}
	return r.Location + ", " + r.Country
}

// FormatTemperature rounds to the nearest degree and appends the unit label.
func FormatTemperature(value float64, unit UnitSystem) string {
	return fmt.Sprintf("%d%s", utils.RoundHalfUp(value), unit.TemperatureLabel())
}

// FormatWindSpeed rounds to the nearest integer and appends the unit label.
func FormatWindSpeed(value float64, unit UnitSystem) string {
	return fmt.Sprintf("%d %s", utils.RoundHalfUp(value), unit.WindSpeedLabel())
}

// String is the multi-line plain text form used by the terminal client
func (c Card) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", c.Title)
	fmt.Fprintf(&b, "Temperature: %s\n", c.Temperature)
	fmt.Fprintf(&b, "Description: %s\n", c.Description)
	fmt.Fprintf(&b, "Feels like:  %s\n", c.FeelsLike)
	fmt.Fprintf(&b, "Humidity:    %s\n", c.Humidity)
	fmt.Fprintf(&b, "Wind Speed:  %s\n", c.WindSpeed)
	fmt.Fprintf(&b, "Pressure:    %s\n", c.Pressure)
	return b.String()
}
