package providers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-gateway/internal/weather"
)

const openWeatherURL = "https://api.openweathermap.org/data/3.0/onecall"

// OpenWeatherProvider implements weather.Provider for the OpenWeatherMap One Call API.
type OpenWeatherProvider struct {
	name     string
	apiKey   string
	endpoint string
	http     *transport
}

func NewOpenWeatherProvider(client *http.Client, baseURL, apiKey string, limits Limits, logger *zap.Logger) *OpenWeatherProvider {
	endpoint := openWeatherURL
	if baseURL != "" {
		endpoint = joinURL(baseURL, "/data/3.0/onecall")
	}
	return &OpenWeatherProvider{
		name:     OpenWeather,
		apiKey:   apiKey,
		endpoint: endpoint,
		http:     newTransport(OpenWeather, client, limits, logger),
	}
}

func (p *OpenWeatherProvider) Name() string { return p.name }

func (p *OpenWeatherProvider) HasCredentials() bool { return p.apiKey != "" }

type owCondition struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owSample struct {
	Dt        weather.Number `json:"dt"`
	Temp      weather.Number `json:"temp"`
	FeelsLike weather.Number `json:"feels_like"`
	Pressure  weather.Number `json:"pressure"`
	Humidity  weather.Number `json:"humidity"`
	DewPoint  weather.Number `json:"dew_point"`
	Clouds    weather.Number `json:"clouds"`
	Visib     weather.Number `json:"visibility"`
	WindSpeed weather.Number `json:"wind_speed"`
	WindDeg   weather.Number `json:"wind_deg"`
	Pop       weather.Number `json:"pop"`
	Weather   []owCondition  `json:"weather"`
	Rain      struct {
		OneH weather.Number `json:"1h"`
	} `json:"rain"`
	Snow struct {
		OneH weather.Number `json:"1h"`
	} `json:"snow"`
}

type owDay struct {
	Dt        weather.Number `json:"dt"`
	Sunrise   weather.Number `json:"sunrise"`
	Sunset    weather.Number `json:"sunset"`
	Moonrise  weather.Number `json:"moonrise"`
	Moonset   weather.Number `json:"moonset"`
	MoonPhase weather.Number `json:"moon_phase"`
	Temp      struct {
		Min   weather.Number `json:"min"`
		Max   weather.Number `json:"max"`
		Night weather.Number `json:"night"`
	} `json:"temp"`
	Pressure  weather.Number `json:"pressure"`
	Humidity  weather.Number `json:"humidity"`
	WindSpeed weather.Number `json:"wind_speed"`
	WindDeg   weather.Number `json:"wind_deg"`
	Clouds    weather.Number `json:"clouds"`
	Pop       weather.Number `json:"pop"`
	Rain      weather.Number `json:"rain"`
	Snow      weather.Number `json:"snow"`
	UVI       weather.Number `json:"uvi"`
	Weather   []owCondition  `json:"weather"`
}

type owAlert struct {
	SenderName  string         `json:"sender_name"`
	Event       string         `json:"event"`
	Start       weather.Number `json:"start"`
	End         weather.Number `json:"end"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
}

type owPayload struct {
	Lat            weather.Number `json:"lat"`
	Lon            weather.Number `json:"lon"`
	TimezoneOffset weather.Number `json:"timezone_offset"`
	Current        *owSample      `json:"current"`
	Hourly         []owSample     `json:"hourly"`
	Daily          []owDay        `json:"daily"`
	Alerts         []owAlert      `json:"alerts"`
}

// fetch calls One Call, excluding every block except keep.
func (p *OpenWeatherProvider) fetch(ctx context.Context, op, keep string, q weather.Query) (owPayload, error) {
	blocks := []string{"current", "minutely", "hourly", "daily", "alerts"}
	exclude := make([]string, 0, len(blocks)-1)
	for _, b := range blocks {
		if b != keep {
			exclude = append(exclude, b)
		}
	}

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(q.Lat, 'f', 4, 64))
	values.Set("lon", strconv.FormatFloat(q.Lon, 'f', 4, 64))
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	values.Set("exclude", strings.Join(exclude, ","))

	body, err := p.http.get(ctx, op, p.endpoint, values, nil)
	if err != nil {
		return owPayload{}, err
	}

	var payload owPayload
	if err := decode(p.name, body, &payload); err != nil {
		return owPayload{}, err
	}
	return payload, nil
}

func owFirst(items []owCondition) owCondition {
	if len(items) == 0 {
		return owCondition{}
	}
	return items[0]
}

func owWind(speed, dir weather.Number) weather.Wind {
	deg := dir.Int()
	return weather.Wind{
		Deg:   deg,
		Dir:   weather.CompassLabel(deg),
		Scale: weather.BeaufortLabel(speed.Float()),
		Speed: speed.Float(),
	}
}

func (p *OpenWeatherProvider) Current(ctx context.Context, q weather.Query) (weather.CurrentConditions, error) {
	payload, err := p.fetch(ctx, "current", "current", q)
	if err != nil {
		return weather.CurrentConditions{}, err
	}
	if payload.Current == nil {
		return weather.CurrentConditions{}, &weather.MalformedResponseError{Provider: p.name, Reason: "missing current block"}
	}

	c := payload.Current
	cond := owFirst(c.Weather)
	return weather.CurrentConditions{
		City:        q.City,
		Lat:         q.Lat,
		Lon:         q.Lon,
		Temp:        c.Temp.Float(),
		FeelsLike:   c.FeelsLike.Float(),
		Description: cond.Description,
		Icon:        cond.Icon,
		Wind:        owWind(c.WindSpeed, c.WindDeg),
		Humidity:    c.Humidity.Int(),
		Pressure:    c.Pressure.Float(),
		Visibility:  weather.MetersToKm(c.Visib.Float()),
		Precip:      c.Rain.OneH.Float() + c.Snow.OneH.Float(),
		Cloud:       c.Clouds.IntPtr(),
		Dew:         c.DewPoint.Ptr(),
		Timestamp:   c.Dt.Int64(),
	}, nil
}

func (p *OpenWeatherProvider) Hourly(ctx context.Context, q weather.Query) ([]weather.HourlyPoint, error) {
	payload, err := p.fetch(ctx, "hourly", "hourly", q)
	if err != nil {
		return nil, err
	}
	hours, err := requireLen(p.name, "hourly", payload.Hourly, weather.HourlyPoints)
	if err != nil {
		return nil, err
	}

	points := make([]weather.HourlyPoint, 0, len(hours))
	for _, h := range hours {
		cond := owFirst(h.Weather)
		points = append(points, weather.HourlyPoint{
			City:        q.City,
			Lat:         q.Lat,
			Lon:         q.Lon,
			Timestamp:   h.Dt.Int64(),
			Temp:        h.Temp.Float(),
			FeelsLike:   h.FeelsLike.Float(),
			Description: cond.Description,
			Icon:        cond.Icon,
			Wind:        owWind(h.WindSpeed, h.WindDeg),
			Humidity:    h.Humidity.Int(),
			Pressure:    h.Pressure.Float(),
			Visibility:  weather.MetersToKm(h.Visib.Float()),
			Precip:      h.Rain.OneH.Float() + h.Snow.OneH.Float(),
			Cloud:       h.Clouds.IntPtr(),
			Dew:         h.DewPoint.Ptr(),
			Pop:         h.Pop.Float() * 100,
		})
	}
	if err := checkHourly(p.name, points); err != nil {
		return nil, err
	}
	return points, nil
}

func (p *OpenWeatherProvider) Daily(ctx context.Context, q weather.Query) ([]weather.DailyPoint, error) {
	payload, err := p.fetch(ctx, "daily", "daily", q)
	if err != nil {
		return nil, err
	}
	days, err := requireLen(p.name, "daily", payload.Daily, weather.DailyPoints)
	if err != nil {
		return nil, err
	}

	loc := time.FixedZone("", payload.TimezoneOffset.Int())
	points := make([]weather.DailyPoint, 0, len(days))
	for _, d := range days {
		cond := owFirst(d.Weather)
		phase, phaseIcon := weather.MoonPhaseFromFraction(d.MoonPhase.Float())
		// One Call has a single daily description; the night half reuses it
		// with the night icon variant.
		nightIcon := strings.TrimSuffix(cond.Icon, "d")
		if nightIcon != "" {
			nightIcon += "n"
		}
		points = append(points, weather.DailyPoint{
			City:          q.City,
			Lat:           q.Lat,
			Lon:           q.Lon,
			Date:          time.Unix(d.Dt.Int64(), 0).In(loc).Format("2006-01-02"),
			TempMin:       d.Temp.Min.Float(),
			TempMax:       d.Temp.Max.Float(),
			TextDay:       cond.Description,
			IconDay:       cond.Icon,
			TextNight:     cond.Description,
			IconNight:     nightIcon,
			WindDay:       owWind(d.WindSpeed, d.WindDeg),
			WindNight:     owWind(d.WindSpeed, d.WindDeg),
			Humidity:      d.Humidity.Int(),
			Pressure:      d.Pressure.Float(),
			Precip:        d.Rain.Float() + d.Snow.Float(),
			Cloud:         d.Clouds.IntPtr(),
			UVIndex:       d.UVI.IntPtr(),
			Sunrise:       weather.ClockFromEpoch(d.Sunrise.Int64(), loc),
			Sunset:        weather.ClockFromEpoch(d.Sunset.Int64(), loc),
			Moonrise:      weather.ClockFromEpoch(d.Moonrise.Int64(), loc),
			Moonset:       weather.ClockFromEpoch(d.Moonset.Int64(), loc),
			MoonPhase:     phase,
			MoonPhaseIcon: phaseIcon,
			Pop:           d.Pop.Float() * 100,
		})
	}
	if err := checkDaily(p.name, points); err != nil {
		return nil, err
	}
	return points, nil
}

func (p *OpenWeatherProvider) Alerts(ctx context.Context, q weather.Query) ([]weather.Alert, error) {
	payload, err := p.fetch(ctx, "alerts", "alerts", q)
	if err != nil {
		return nil, err
	}

	alerts := make([]weather.Alert, 0, len(payload.Alerts))
	for _, a := range payload.Alerts {
		alerts = append(alerts, weather.Alert{
			City:        q.City,
			Lat:         q.Lat,
			Lon:         q.Lon,
			Event:       a.Event,
			Description: a.Description,
			Start:       weather.Epoch(a.Start.Int64(), a.Start.Int64() != 0),
			End:         weather.Epoch(a.End.Int64(), a.End.Int64() != 0),
			Level:       "warning",
			Tags:        strings.Join(a.Tags, ", "),
		})
	}
	return alerts, nil
}

var (
	_ weather.Provider        = (*OpenWeatherProvider)(nil)
	_ weather.CredentialAware = (*OpenWeatherProvider)(nil)
)
