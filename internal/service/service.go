package service

import (
	"github.com/rockwerks/weather-forecast-app/internal/domain"
)

// DataRepository is re-exported from domain for convenience
type DataRepository = domain.DataRepository
