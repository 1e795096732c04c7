package domain

import (
	"errors"
	"fmt"
	"strings"
)

// UnitSystem is the active measurement system
type UnitSystem int

const (
	Metric UnitSystem = iota
	Imperial
)

// ErrUnknownUnit is returned when a unit string is neither metric nor imperial
var ErrUnknownUnit = errors.New("unknown unit system")

// ParseUnitSystem accepts the provider's wire names and the °C/°F shorthands.
func ParseUnitSystem(s string) (UnitSystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "metric", "c", "°c", "celsius":
		return Metric, nil
	case "imperial", "f", "°f", "fahrenheit":
		return Imperial, nil
	}
	return Metric, fmt.Errorf("%w: %q", ErrUnknownUnit, s)
}

// String returns the value sent as the provider's units parameter
func (u UnitSystem) String() string {
	if u == Imperial {
		return "imperial"
	}
	return "metric"
}

func (u UnitSystem) TemperatureLabel() string {
	if u == Imperial {
		return "°F"
	}
	return "°C"
}

func (u UnitSystem) WindSpeedLabel() string {
	if u == Imperial {
		return "mph"
	}
	return "m/s"
}

func (u UnitSystem) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *UnitSystem) UnmarshalText(text []byte) error {
	parsed, err := ParseUnitSystem(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
