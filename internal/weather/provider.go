package weather

import (
	"context"
)

// Provider abstracts an upstream weather source (e.g. OpenWeatherMap,
// WeatherAPI, Open-Meteo, QWeather). Implementations return canonical types
// or one of the typed errors in errors.go.
type Provider interface {
	Name() string
	Current(ctx context.Context, q Query) (CurrentConditions, error)
	Hourly(ctx context.Context, q Query) ([]HourlyPoint, error)
	Daily(ctx context.Context, q Query) ([]DailyPoint, error)
	Alerts(ctx context.Context, q Query) ([]Alert, error)
}

// CitySearcher is implemented by providers offering a location lookup.
type CitySearcher interface {
	SearchCities(ctx context.Context, keyword string) ([]CityCandidate, error)
}

// CredentialAware is implemented by providers that need credentials.
// Providers that do not implement it are treated as always configured.
type CredentialAware interface {
	HasCredentials() bool
}

// Warmer is implemented by providers holding state worth preparing ahead of
// requests, such as a signed token.
type Warmer interface {
	WarmUp(ctx context.Context) error
}

// Fallback produces substitute data when no live provider can answer.
// Implementations must not fail.
type Fallback interface {
	Current(q Query) CurrentConditions
	Hourly(q Query) []HourlyPoint
	Daily(q Query) []DailyPoint
	Alerts(q Query) []Alert
	SearchCities(keyword string) []CityCandidate
}
