package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-gateway/internal/token"
	"github.com/i474232898/weather-gateway/internal/weather"
	"github.com/i474232898/weather-gateway/internal/weather/location"
)

const qweatherURL = "https://devapi.qweather.com"

// chinaTime is used for naive timestamps, which QWeather reports in local
// time of the queried location.
var chinaTime = time.FixedZone("CST", 8*3600)

// QWeatherProvider implements weather.Provider for QWeather. Requests are
// authenticated with a signed bearer token, or with an API key header when
// no signing material is configured.
type QWeatherProvider struct {
	name    string
	baseURL string
	apiKey  string
	issuer  *token.Issuer
	http    *transport
	logger  *zap.Logger
}

// NewQWeatherProvider creates the provider. issuer may be nil.
func NewQWeatherProvider(client *http.Client, baseURL, apiKey string, issuer *token.Issuer, limits Limits, logger *zap.Logger) *QWeatherProvider {
	if baseURL == "" {
		baseURL = qweatherURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QWeatherProvider{
		name:    QWeather,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		issuer:  issuer,
		http:    newTransport(QWeather, client, limits, logger),
		logger:  logger.Named(QWeather),
	}
}

func (p *QWeatherProvider) Name() string { return p.name }

func (p *QWeatherProvider) HasCredentials() bool {
	return p.issuer != nil || p.apiKey != ""
}

// WarmUp signs a token ahead of the first request.
func (p *QWeatherProvider) WarmUp(ctx context.Context) error {
	if p.issuer == nil {
		return nil
	}
	_, err := p.issuer.Token()
	return err
}

func (p *QWeatherProvider) authHeader() (http.Header, error) {
	h := http.Header{}
	switch {
	case p.issuer != nil:
		tok, err := p.issuer.Token()
		if err != nil {
			return nil, err
		}
		h.Set("Authorization", "Bearer "+tok)
	case p.apiKey != "":
		h.Set("X-QW-Api-Key", p.apiKey)
	}
	return h, nil
}

// locationParam prefers the city's location id and falls back to "lon,lat".
func locationParam(q weather.Query) string {
	if id, ok := location.Resolve(q.City); ok {
		return id
	}
	return fmt.Sprintf("%.2f,%.2f", q.Lon, q.Lat)
}

type qwEnvelope struct {
	Code string `json:"code"`
}

// call performs an authenticated request and decodes the body into v. The
// returned code is the body status; any value but "200" is an error unless
// listed in accept.
func (p *QWeatherProvider) call(ctx context.Context, op, path string, values url.Values, v any, accept ...string) (string, error) {
	header, err := p.authHeader()
	if err != nil {
		return "", err
	}

	body, err := p.http.get(ctx, op, p.baseURL+path, values, header)
	if err != nil {
		return "", err
	}

	var env qwEnvelope
	if err := decode(p.name, body, &env); err != nil {
		return "", err
	}
	if env.Code != "200" {
		for _, code := range accept {
			if env.Code == code {
				return env.Code, nil
			}
		}
		return env.Code, &weather.UpstreamError{
			Provider:   p.name,
			StatusCode: http.StatusOK,
			Body:       truncate(string(body), maxErrorBody),
			Err:        fmt.Errorf("qweather code %q", env.Code),
		}
	}
	if err := decode(p.name, body, v); err != nil {
		return env.Code, err
	}
	return env.Code, nil
}

func qwWind(deg weather.Number, dir string, scale string, kph weather.Number) weather.Wind {
	w := weather.Wind{
		Dir:   dir,
		Scale: scale,
		Speed: weather.KphToMS(kph.Float()),
	}
	if deg.Valid {
		w.Deg = deg.Int()
	} else {
		w.Deg = weather.CompassDegrees(dir)
	}
	return w
}

func qwTime(s string) (int64, error) {
	ts, ok := weather.ParseTimestamp(s, chinaTime)
	if !ok {
		return 0, fmt.Errorf("unparsable time %q", s)
	}
	return ts, nil
}

type qwNow struct {
	ObsTime   string         `json:"obsTime"`
	Temp      weather.Number `json:"temp"`
	FeelsLike weather.Number `json:"feelsLike"`
	Icon      string         `json:"icon"`
	Text      string         `json:"text"`
	Wind360   weather.Number `json:"wind360"`
	WindDir   string         `json:"windDir"`
	WindScale string         `json:"windScale"`
	WindSpeed weather.Number `json:"windSpeed"`
	Humidity  weather.Number `json:"humidity"`
	Precip    weather.Number `json:"precip"`
	Pressure  weather.Number `json:"pressure"`
	Vis       weather.Number `json:"vis"`
	Cloud     weather.Number `json:"cloud"`
	Dew       weather.Number `json:"dew"`
}

func (p *QWeatherProvider) Current(ctx context.Context, q weather.Query) (weather.CurrentConditions, error) {
	var payload struct {
		Now *qwNow `json:"now"`
	}
	values := url.Values{"location": {locationParam(q)}}
	if _, err := p.call(ctx, "current", "/v7/weather/now", values, &payload); err != nil {
		return weather.CurrentConditions{}, err
	}
	if payload.Now == nil {
		return weather.CurrentConditions{}, &weather.MalformedResponseError{Provider: p.name, Reason: "missing now block"}
	}

	n := payload.Now
	ts, err := qwTime(n.ObsTime)
	if err != nil {
		return weather.CurrentConditions{}, &weather.MalformedResponseError{Provider: p.name, Reason: "invalid obsTime", Err: err}
	}

	return weather.CurrentConditions{
		City:        q.City,
		Lat:         q.Lat,
		Lon:         q.Lon,
		Temp:        n.Temp.Float(),
		FeelsLike:   n.FeelsLike.Float(),
		Description: n.Text,
		Icon:        n.Icon,
		Wind:        qwWind(n.Wind360, n.WindDir, n.WindScale, n.WindSpeed),
		Humidity:    n.Humidity.Int(),
		Pressure:    n.Pressure.Float(),
		Visibility:  n.Vis.Float(),
		Precip:      n.Precip.Float(),
		Cloud:       n.Cloud.IntPtr(),
		Dew:         n.Dew.Ptr(),
		Timestamp:   ts,
		AQI:         p.airQuality(ctx, values),
	}, nil
}

// airQuality is best effort: any failure leaves the index absent.
func (p *QWeatherProvider) airQuality(ctx context.Context, values url.Values) *int {
	var payload struct {
		Now *struct {
			AQI weather.Number `json:"aqi"`
		} `json:"now"`
	}
	if _, err := p.call(ctx, "air", "/v7/air/now", values, &payload); err != nil {
		p.logger.Debug("air quality unavailable", zap.Error(err))
		return nil
	}
	if payload.Now == nil {
		return nil
	}
	return payload.Now.AQI.IntPtr()
}

func (p *QWeatherProvider) Hourly(ctx context.Context, q weather.Query) ([]weather.HourlyPoint, error) {
	var payload struct {
		Hourly []struct {
			FxTime    string         `json:"fxTime"`
			Temp      weather.Number `json:"temp"`
			Icon      string         `json:"icon"`
			Text      string         `json:"text"`
			Wind360   weather.Number `json:"wind360"`
			WindDir   string         `json:"windDir"`
			WindScale string         `json:"windScale"`
			WindSpeed weather.Number `json:"windSpeed"`
			Humidity  weather.Number `json:"humidity"`
			Pop       weather.Number `json:"pop"`
			Precip    weather.Number `json:"precip"`
			Pressure  weather.Number `json:"pressure"`
			Cloud     weather.Number `json:"cloud"`
			Dew       weather.Number `json:"dew"`
		} `json:"hourly"`
	}
	values := url.Values{"location": {locationParam(q)}}
	if _, err := p.call(ctx, "hourly", "/v7/weather/24h", values, &payload); err != nil {
		return nil, err
	}
	hours, err := requireLen(p.name, "hourly", payload.Hourly, weather.HourlyPoints)
	if err != nil {
		return nil, err
	}

	points := make([]weather.HourlyPoint, 0, len(hours))
	for _, h := range hours {
		ts, err := qwTime(h.FxTime)
		if err != nil {
			return nil, &weather.MalformedResponseError{Provider: p.name, Reason: "invalid fxTime", Err: err}
		}
		points = append(points, weather.HourlyPoint{
			City:        q.City,
			Lat:         q.Lat,
			Lon:         q.Lon,
			Timestamp:   ts,
			Temp:        h.Temp.Float(),
			FeelsLike:   h.Temp.Float(),
			Description: h.Text,
			Icon:        h.Icon,
			Wind:        qwWind(h.Wind360, h.WindDir, h.WindScale, h.WindSpeed),
			Humidity:    h.Humidity.Int(),
			Pressure:    h.Pressure.Float(),
			Precip:      h.Precip.Float(),
			Cloud:       h.Cloud.IntPtr(),
			Dew:         h.Dew.Ptr(),
			Pop:         h.Pop.Float(),
		})
	}
	if err := checkHourly(p.name, points); err != nil {
		return nil, err
	}
	return points, nil
}

func (p *QWeatherProvider) Daily(ctx context.Context, q weather.Query) ([]weather.DailyPoint, error) {
	var payload struct {
		Daily []struct {
			FxDate         string         `json:"fxDate"`
			Sunrise        string         `json:"sunrise"`
			Sunset         string         `json:"sunset"`
			Moonrise       string         `json:"moonrise"`
			Moonset        string         `json:"moonset"`
			MoonPhase      string         `json:"moonPhase"`
			MoonPhaseIcon  string         `json:"moonPhaseIcon"`
			TempMax        weather.Number `json:"tempMax"`
			TempMin        weather.Number `json:"tempMin"`
			IconDay        string         `json:"iconDay"`
			TextDay        string         `json:"textDay"`
			IconNight      string         `json:"iconNight"`
			TextNight      string         `json:"textNight"`
			Wind360Day     weather.Number `json:"wind360Day"`
			WindDirDay     string         `json:"windDirDay"`
			WindScaleDay   string         `json:"windScaleDay"`
			WindSpeedDay   weather.Number `json:"windSpeedDay"`
			Wind360Night   weather.Number `json:"wind360Night"`
			WindDirNight   string         `json:"windDirNight"`
			WindScaleNight string         `json:"windScaleNight"`
			WindSpeedNight weather.Number `json:"windSpeedNight"`
			Humidity       weather.Number `json:"humidity"`
			Precip         weather.Number `json:"precip"`
			Pressure       weather.Number `json:"pressure"`
			Vis            weather.Number `json:"vis"`
			Cloud          weather.Number `json:"cloud"`
			UVIndex        weather.Number `json:"uvIndex"`
		} `json:"daily"`
	}
	values := url.Values{"location": {locationParam(q)}}
	if _, err := p.call(ctx, "daily", "/v7/weather/7d", values, &payload); err != nil {
		return nil, err
	}
	days, err := requireLen(p.name, "daily", payload.Daily, weather.DailyPoints)
	if err != nil {
		return nil, err
	}

	points := make([]weather.DailyPoint, 0, len(days))
	for _, d := range days {
		if _, err := time.Parse("2006-01-02", d.FxDate); err != nil {
			return nil, &weather.MalformedResponseError{Provider: p.name, Reason: "invalid fxDate", Err: err}
		}
		points = append(points, weather.DailyPoint{
			City:          q.City,
			Lat:           q.Lat,
			Lon:           q.Lon,
			Date:          d.FxDate,
			TempMin:       d.TempMin.Float(),
			TempMax:       d.TempMax.Float(),
			TextDay:       d.TextDay,
			IconDay:       d.IconDay,
			TextNight:     d.TextNight,
			IconNight:     d.IconNight,
			WindDay:       qwWind(d.Wind360Day, d.WindDirDay, d.WindScaleDay, d.WindSpeedDay),
			WindNight:     qwWind(d.Wind360Night, d.WindDirNight, d.WindScaleNight, d.WindSpeedNight),
			Humidity:      d.Humidity.Int(),
			Pressure:      d.Pressure.Float(),
			Visibility:    d.Vis.Float(),
			Precip:        d.Precip.Float(),
			Cloud:         d.Cloud.IntPtr(),
			UVIndex:       d.UVIndex.IntPtr(),
			Sunrise:       weather.ClockString(d.Sunrise),
			Sunset:        weather.ClockString(d.Sunset),
			Moonrise:      weather.ClockString(d.Moonrise),
			Moonset:       weather.ClockString(d.Moonset),
			MoonPhase:     d.MoonPhase,
			MoonPhaseIcon: d.MoonPhaseIcon,
		})
	}
	if err := checkDaily(p.name, points); err != nil {
		return nil, err
	}
	return points, nil
}

func (p *QWeatherProvider) Alerts(ctx context.Context, q weather.Query) ([]weather.Alert, error) {
	var payload struct {
		Warning []struct {
			Title         string `json:"title"`
			Text          string `json:"text"`
			StartTime     string `json:"startTime"`
			EndTime       string `json:"endTime"`
			Level         string `json:"level"`
			Severity      string `json:"severity"`
			SeverityColor string `json:"severityColor"`
			TypeName      string `json:"typeName"`
		} `json:"warning"`
	}
	values := url.Values{"location": {locationParam(q)}}
	if _, err := p.call(ctx, "alerts", "/v7/warning/now", values, &payload); err != nil {
		return nil, err
	}

	alerts := make([]weather.Alert, 0, len(payload.Warning))
	for _, w := range payload.Warning {
		level := w.Level
		if level == "" {
			level = w.SeverityColor
		}
		if level == "" {
			level = w.Severity
		}
		event := w.TypeName
		if event == "" {
			event = w.Title
		}
		alerts = append(alerts, weather.Alert{
			City:        q.City,
			Lat:         q.Lat,
			Lon:         q.Lon,
			Event:       event,
			Description: w.Text,
			Start:       weather.Epoch(weather.ParseTimestamp(w.StartTime, chinaTime)),
			End:         weather.Epoch(weather.ParseTimestamp(w.EndTime, chinaTime)),
			Level:       level,
			Tags:        w.TypeName,
		})
	}
	return alerts, nil
}

// SearchCities queries the geo lookup. A "not found" answer yields a single
// candidate carrying the keyword so callers can still query by name.
func (p *QWeatherProvider) SearchCities(ctx context.Context, keyword string) ([]weather.CityCandidate, error) {
	var payload struct {
		Location []struct {
			Name    string         `json:"name"`
			Adm1    string         `json:"adm1"`
			Country string         `json:"country"`
			Lat     weather.Number `json:"lat"`
			Lon     weather.Number `json:"lon"`
		} `json:"location"`
	}
	values := url.Values{"location": {keyword}}
	code, err := p.call(ctx, "search", "/geo/v2/city/lookup", values, &payload, "404")
	var upstreamErr *weather.UpstreamError
	if errors.As(err, &upstreamErr) && upstreamErr.StatusCode == http.StatusNotFound {
		code, err = "404", nil
	}
	if err != nil {
		return nil, err
	}
	if code == "404" || len(payload.Location) == 0 {
		return []weather.CityCandidate{{Name: keyword}}, nil
	}

	out := make([]weather.CityCandidate, 0, len(payload.Location))
	for _, l := range payload.Location {
		out = append(out, weather.CityCandidate{
			Name:    l.Name,
			Country: l.Country,
			State:   l.Adm1,
			Lat:     l.Lat.Float(),
			Lon:     l.Lon.Float(),
		})
	}
	return out, nil
}

var (
	_ weather.Provider        = (*QWeatherProvider)(nil)
	_ weather.CitySearcher    = (*QWeatherProvider)(nil)
	_ weather.CredentialAware = (*QWeatherProvider)(nil)
	_ weather.Warmer          = (*QWeatherProvider)(nil)
)
