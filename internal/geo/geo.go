// Package geo finds coordinates for a city name, first from the static city
// table and then from the Google geocoding API when a key is configured.
package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"
	"go.uber.org/zap"

	"github.com/i474232898/weather-gateway/internal/weather/location"
)

// ErrUnknownCity is returned when no coordinates can be found for a city.
var ErrUnknownCity = errors.New("unknown city")

type point struct{ lat, lon float64 }

// Locator resolves city names to coordinates and remembers remote answers.
type Locator struct {
	remote func(geocoder.Address) (geocoder.Location, error)
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]point
}

// New creates a Locator. An empty apiKey limits lookups to the static table.
func New(apiKey string, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Locator{
		logger: logger.Named("geo"),
		cache:  make(map[string]point),
	}
	if apiKey != "" {
		geocoder.ApiKey = apiKey
		l.remote = geocoder.Geocoding
	}
	return l
}

// Locate returns the coordinates of city.
func (l *Locator) Locate(ctx context.Context, city string) (lat, lon float64, err error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return 0, 0, ErrUnknownCity
	}
	if lat, lon, ok := location.Coordinates(city); ok {
		return lat, lon, nil
	}

	key := strings.ToLower(city)
	l.mu.RLock()
	p, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return p.lat, p.lon, nil
	}

	if l.remote == nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownCity, city)
	}

	// the geocoder client takes no context; abandon it when ctx ends
	type answer struct {
		loc geocoder.Location
		err error
	}
	done := make(chan answer, 1)
	go func() {
		loc, err := l.remote(geocoder.Address{City: city})
		done <- answer{loc, err}
	}()

	select {
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	case a := <-done:
		if a.err != nil {
			l.logger.Warn("geocoding failed", zap.String("city", city), zap.Error(a.err))
			return 0, 0, fmt.Errorf("%w: %s: %v", ErrUnknownCity, city, a.err)
		}
		l.mu.Lock()
		l.cache[key] = point{a.loc.Latitude, a.loc.Longitude}
		l.mu.Unlock()
		return a.loc.Latitude, a.loc.Longitude, nil
	}
}
