// Package store persists the single user's favorite cities and dashboard
// preferences.
package store

import (
	"errors"
	"math"
	"time"

	"github.com/i474232898/weather-gateway/internal/weather"
)

var (
	// ErrNotFound is returned when a favorite to remove does not exist.
	ErrNotFound = errors.New("favorite not found")
)

// Favorite is a saved city.
type Favorite struct {
	ID string `json:"id"`
	weather.CityCandidate
	CreatedAt time.Time `json:"createdAt"`
}

// Preferences holds the dashboard settings. There is only ever one row.
type Preferences struct {
	DefaultCity     string `json:"defaultCity"`
	TemperatureUnit string `json:"temperatureUnit"`
	WindSpeedUnit   string `json:"windSpeedUnit"`
	ShowCurrentCard bool   `json:"showCurrentCard"`
	ShowLineChart   bool   `json:"showLineChart"`
	ShowBarChart    bool   `json:"showBarChart"`
	ShowGaugeCard   bool   `json:"showGaugeCard"`
	ShowAlertsCard  bool   `json:"showAlertsCard"`
	ShowAIAssistant bool   `json:"showAiAssistant"`
}

// DefaultPreferences returns the settings used before the user saves any.
func DefaultPreferences() Preferences {
	return Preferences{
		DefaultCity:     "北京",
		TemperatureUnit: "C",
		WindSpeedUnit:   "m/s",
		ShowCurrentCard: true,
		ShowLineChart:   true,
		ShowBarChart:    true,
		ShowGaugeCard:   true,
		ShowAlertsCard:  true,
		ShowAIAssistant: true,
	}
}

// coordTolerance is how close coordinates must be for two cities to match.
const coordTolerance = 1e-4

// sameCity reports whether a and b identify the same place.
func sameCity(a, b weather.CityCandidate) bool {
	return a.Name == b.Name &&
		a.Country == b.Country &&
		math.Abs(a.Lat-b.Lat) < coordTolerance &&
		math.Abs(a.Lon-b.Lon) < coordTolerance
}
