package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-gateway/internal/weather"
)

const weatherAPIURL = "https://api.weatherapi.com/v1/forecast.json"

// WeatherAPIProvider implements weather.Provider for WeatherAPI.com.
type WeatherAPIProvider struct {
	name     string
	apiKey   string
	endpoint string
	http     *transport
}

func NewWeatherAPIProvider(client *http.Client, baseURL, apiKey string, limits Limits, logger *zap.Logger) *WeatherAPIProvider {
	endpoint := weatherAPIURL
	if baseURL != "" {
		endpoint = joinURL(baseURL, "/v1/forecast.json")
	}
	return &WeatherAPIProvider{
		name:     WeatherAPI,
		apiKey:   apiKey,
		endpoint: endpoint,
		http:     newTransport(WeatherAPI, client, limits, logger),
	}
}

func (p *WeatherAPIProvider) Name() string { return p.name }

func (p *WeatherAPIProvider) HasCredentials() bool { return p.apiKey != "" }

type waCondition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
}

type waSample struct {
	Epoch      int64          `json:"last_updated_epoch"`
	TimeEpoch  int64          `json:"time_epoch"`
	TempC      weather.Number `json:"temp_c"`
	FeelsLikeC weather.Number `json:"feelslike_c"`
	Condition  waCondition    `json:"condition"`
	WindKph    weather.Number `json:"wind_kph"`
	WindDegree weather.Number `json:"wind_degree"`
	PressureMb weather.Number `json:"pressure_mb"`
	PrecipMm   weather.Number `json:"precip_mm"`
	Humidity   weather.Number `json:"humidity"`
	Cloud      weather.Number `json:"cloud"`
	DewpointC  weather.Number `json:"dewpoint_c"`
	VisKm      weather.Number `json:"vis_km"`
	ChanceRain weather.Number `json:"chance_of_rain"`
	ChanceSnow weather.Number `json:"chance_of_snow"`
	AirQuality *struct {
		PM25 weather.Number `json:"pm2_5"`
	} `json:"air_quality"`
}

type waDay struct {
	Date string `json:"date"`
	Day  struct {
		MaxTempC    weather.Number `json:"maxtemp_c"`
		MinTempC    weather.Number `json:"mintemp_c"`
		MaxWindKph  weather.Number `json:"maxwind_kph"`
		PrecipMm    weather.Number `json:"totalprecip_mm"`
		AvgVisKm    weather.Number `json:"avgvis_km"`
		AvgHumidity weather.Number `json:"avghumidity"`
		ChanceRain  weather.Number `json:"daily_chance_of_rain"`
		ChanceSnow  weather.Number `json:"daily_chance_of_snow"`
		Condition   waCondition    `json:"condition"`
		UV          weather.Number `json:"uv"`
	} `json:"day"`
	Astro struct {
		Sunrise   string `json:"sunrise"`
		Sunset    string `json:"sunset"`
		Moonrise  string `json:"moonrise"`
		Moonset   string `json:"moonset"`
		MoonPhase string `json:"moon_phase"`
	} `json:"astro"`
	Hour []waSample `json:"hour"`
}

type waAlert struct {
	Headline  string `json:"headline"`
	Severity  string `json:"severity"`
	Urgency   string `json:"urgency"`
	Category  string `json:"category"`
	Certainty string `json:"certainty"`
	Event     string `json:"event"`
	Effective string `json:"effective"`
	Expires   string `json:"expires"`
	Desc      string `json:"desc"`
}

type waPayload struct {
	Location struct {
		TzID           string `json:"tz_id"`
		LocaltimeEpoch int64  `json:"localtime_epoch"`
	} `json:"location"`
	Current  *waSample `json:"current"`
	Forecast struct {
		ForecastDay []waDay `json:"forecastday"`
	} `json:"forecast"`
	Alerts struct {
		Alert []waAlert `json:"alert"`
	} `json:"alerts"`
}

func (p *WeatherAPIProvider) fetch(ctx context.Context, op string, q weather.Query) (waPayload, error) {
	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", coords(q))
	values.Set("days", "7")
	values.Set("alerts", "yes")
	values.Set("aqi", "yes")

	body, err := p.http.get(ctx, op, p.endpoint, values, nil)
	if err != nil {
		return waPayload{}, err
	}

	var payload waPayload
	if err := decode(p.name, body, &payload); err != nil {
		return waPayload{}, err
	}
	return payload, nil
}

// waIcon turns the protocol-relative icon path into an absolute URL.
func waIcon(icon string) string {
	if strings.HasPrefix(icon, "//") {
		return "https:" + icon
	}
	return icon
}

func waWind(kph, deg weather.Number) weather.Wind {
	speed := weather.KphToMS(kph.Float())
	w := weather.Wind{
		Scale: weather.BeaufortLabel(speed),
		Speed: speed,
	}
	if deg.Valid {
		w.Deg = deg.Int()
		w.Dir = weather.CompassLabel(w.Deg)
	}
	return w
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

var waMoonPhases = map[string]int{
	"new moon":        0,
	"waxing crescent": 1,
	"first quarter":   2,
	"waxing gibbous":  3,
	"full moon":       4,
	"waning gibbous":  5,
	"last quarter":    6,
	"third quarter":   6,
	"waning crescent": 7,
}

func (p *WeatherAPIProvider) Current(ctx context.Context, q weather.Query) (weather.CurrentConditions, error) {
	payload, err := p.fetch(ctx, "current", q)
	if err != nil {
		return weather.CurrentConditions{}, err
	}
	if payload.Current == nil {
		return weather.CurrentConditions{}, &weather.MalformedResponseError{Provider: p.name, Reason: "missing current block"}
	}

	c := payload.Current
	cur := weather.CurrentConditions{
		City:        q.City,
		Lat:         q.Lat,
		Lon:         q.Lon,
		Temp:        c.TempC.Float(),
		FeelsLike:   c.FeelsLikeC.Float(),
		Description: c.Condition.Text,
		Icon:        waIcon(c.Condition.Icon),
		Wind:        waWind(c.WindKph, c.WindDegree),
		Humidity:    c.Humidity.Int(),
		Pressure:    c.PressureMb.Float(),
		Visibility:  c.VisKm.Float(),
		Precip:      c.PrecipMm.Float(),
		Cloud:       c.Cloud.IntPtr(),
		Dew:         c.DewpointC.Ptr(),
		Timestamp:   c.Epoch,
	}
	if c.AirQuality != nil && c.AirQuality.PM25.Valid {
		aqi := weather.PM25ToAQI(c.AirQuality.PM25.Value)
		cur.AQI = &aqi
	}
	return cur, nil
}

func (p *WeatherAPIProvider) Hourly(ctx context.Context, q weather.Query) ([]weather.HourlyPoint, error) {
	payload, err := p.fetch(ctx, "hourly", q)
	if err != nil {
		return nil, err
	}

	// The hour grid is per day; start at the current local hour and roll
	// over into the next day.
	start := payload.Location.LocaltimeEpoch - payload.Location.LocaltimeEpoch%3600
	var samples []waSample
	for _, d := range payload.Forecast.ForecastDay {
		for _, h := range d.Hour {
			if h.TimeEpoch >= start {
				samples = append(samples, h)
			}
		}
	}
	samples, err = requireLen(p.name, "hourly", samples, weather.HourlyPoints)
	if err != nil {
		return nil, err
	}

	points := make([]weather.HourlyPoint, 0, len(samples))
	for _, h := range samples {
		points = append(points, weather.HourlyPoint{
			City:        q.City,
			Lat:         q.Lat,
			Lon:         q.Lon,
			Timestamp:   h.TimeEpoch,
			Temp:        h.TempC.Float(),
			FeelsLike:   h.FeelsLikeC.Float(),
			Description: h.Condition.Text,
			Icon:        waIcon(h.Condition.Icon),
			Wind:        waWind(h.WindKph, h.WindDegree),
			Humidity:    h.Humidity.Int(),
			Pressure:    h.PressureMb.Float(),
			Visibility:  h.VisKm.Float(),
			Precip:      h.PrecipMm.Float(),
			Cloud:       h.Cloud.IntPtr(),
			Dew:         h.DewpointC.Ptr(),
			Pop:         maxf(h.ChanceRain.Float(), h.ChanceSnow.Float()),
		})
	}
	if err := checkHourly(p.name, points); err != nil {
		return nil, err
	}
	return points, nil
}

func (p *WeatherAPIProvider) Daily(ctx context.Context, q weather.Query) ([]weather.DailyPoint, error) {
	payload, err := p.fetch(ctx, "daily", q)
	if err != nil {
		return nil, err
	}
	days, err := requireLen(p.name, "daily", payload.Forecast.ForecastDay, weather.DailyPoints)
	if err != nil {
		return nil, err
	}

	points := make([]weather.DailyPoint, 0, len(days))
	for _, d := range days {
		if _, err := time.Parse("2006-01-02", d.Date); err != nil {
			return nil, &weather.MalformedResponseError{Provider: p.name, Reason: "invalid forecast date", Err: err}
		}
		var phase, phaseIcon string
		if idx, ok := waMoonPhases[strings.ToLower(strings.TrimSpace(d.Astro.MoonPhase))]; ok {
			phase, phaseIcon = weather.MoonPhaseByIndex(idx)
		}
		wind := waWind(d.Day.MaxWindKph, weather.Number{})
		icon := waIcon(d.Day.Condition.Icon)

		points = append(points, weather.DailyPoint{
			City:          q.City,
			Lat:           q.Lat,
			Lon:           q.Lon,
			Date:          d.Date,
			TempMin:       d.Day.MinTempC.Float(),
			TempMax:       d.Day.MaxTempC.Float(),
			TextDay:       d.Day.Condition.Text,
			IconDay:       icon,
			TextNight:     d.Day.Condition.Text,
			IconNight:     strings.Replace(icon, "/day/", "/night/", 1),
			WindDay:       wind,
			WindNight:     wind,
			Humidity:      d.Day.AvgHumidity.Int(),
			Visibility:    d.Day.AvgVisKm.Float(),
			Precip:        d.Day.PrecipMm.Float(),
			UVIndex:       d.Day.UV.IntPtr(),
			Sunrise:       weather.ClockString(d.Astro.Sunrise),
			Sunset:        weather.ClockString(d.Astro.Sunset),
			Moonrise:      weather.ClockString(d.Astro.Moonrise),
			Moonset:       weather.ClockString(d.Astro.Moonset),
			MoonPhase:     phase,
			MoonPhaseIcon: phaseIcon,
			Pop:           maxf(d.Day.ChanceRain.Float(), d.Day.ChanceSnow.Float()),
		})
	}
	if err := checkDaily(p.name, points); err != nil {
		return nil, err
	}
	return points, nil
}

func (p *WeatherAPIProvider) Alerts(ctx context.Context, q weather.Query) ([]weather.Alert, error) {
	payload, err := p.fetch(ctx, "alerts", q)
	if err != nil {
		return nil, err
	}

	loc := time.UTC
	if payload.Location.TzID != "" {
		if l, err := time.LoadLocation(payload.Location.TzID); err == nil {
			loc = l
		}
	}

	alerts := make([]weather.Alert, 0, len(payload.Alerts.Alert))
	for _, a := range payload.Alerts.Alert {
		event := a.Event
		if event == "" {
			event = a.Headline
		}
		var tags []string
		for _, t := range []string{a.Category, a.Urgency, a.Certainty} {
			if t != "" {
				tags = append(tags, t)
			}
		}
		alerts = append(alerts, weather.Alert{
			City:        q.City,
			Lat:         q.Lat,
			Lon:         q.Lon,
			Event:       event,
			Description: a.Desc,
			Start:       weather.Epoch(weather.ParseTimestamp(a.Effective, loc)),
			End:         weather.Epoch(weather.ParseTimestamp(a.Expires, loc)),
			Level:       a.Severity,
			Tags:        strings.Join(tags, ", "),
		})
	}
	return alerts, nil
}

var (
	_ weather.Provider        = (*WeatherAPIProvider)(nil)
	_ weather.CredentialAware = (*WeatherAPIProvider)(nil)
)
