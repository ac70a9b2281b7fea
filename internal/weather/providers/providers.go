// Package providers adapts upstream weather APIs to weather.Provider.
package providers

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/i474232898/weather-gateway/internal/token"
	"github.com/i474232898/weather-gateway/internal/weather"
)

// Provider names accepted by New.
const (
	OpenWeather = "openweather"
	WeatherAPI  = "weatherapi"
	OpenMeteo   = "openmeteo"
	QWeather    = "qweather"
)

// Settings selects and configures one provider.
type Settings struct {
	Provider string
	BaseURL  string // empty means the provider's public endpoint
	APIKey   string

	// Signed-token credentials, used by qweather only.
	ProjectID  string
	KeyID      string
	PrivateKey string

	Limits Limits
}

// New builds the provider named by s.Provider.
func New(s Settings, client *http.Client, logger *zap.Logger) (weather.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case OpenWeather:
		return NewOpenWeatherProvider(client, s.BaseURL, s.APIKey, s.Limits, logger), nil
	case WeatherAPI:
		return NewWeatherAPIProvider(client, s.BaseURL, s.APIKey, s.Limits, logger), nil
	case OpenMeteo:
		return NewOpenMeteoProvider(client, s.BaseURL, s.Limits, logger), nil
	case QWeather, "":
		var issuer *token.Issuer
		if s.ProjectID != "" && s.KeyID != "" && s.PrivateKey != "" {
			issuer = token.NewIssuer(token.Config{
				Subject:       s.ProjectID,
				KeyID:         s.KeyID,
				PrivateKeyPEM: s.PrivateKey,
			})
		}
		return NewQWeatherProvider(client, s.BaseURL, s.APIKey, issuer, s.Limits, logger), nil
	default:
		return nil, fmt.Errorf("unknown weather provider %q", s.Provider)
	}
}
