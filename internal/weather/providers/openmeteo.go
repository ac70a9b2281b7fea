package providers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-gateway/internal/weather"
)

const openMeteoURL = "https://api.open-meteo.com/v1/forecast"

// OpenMeteoProvider implements weather.Provider for Open-Meteo. It needs no
// credentials and publishes no alerts.
type OpenMeteoProvider struct {
	name     string
	endpoint string
	http     *transport
	now      func() time.Time
}

func NewOpenMeteoProvider(client *http.Client, baseURL string, limits Limits, logger *zap.Logger) *OpenMeteoProvider {
	endpoint := openMeteoURL
	if baseURL != "" {
		endpoint = joinURL(baseURL, "/v1/forecast")
	}
	return &OpenMeteoProvider{
		name:     OpenMeteo,
		endpoint: endpoint,
		http:     newTransport(OpenMeteo, client, limits, logger),
		now:      time.Now,
	}
}

// WithClock replaces the time source used to skip past hours.
func (p *OpenMeteoProvider) WithClock(now func() time.Time) *OpenMeteoProvider {
	p.now = now
	return p
}

func (p *OpenMeteoProvider) Name() string { return p.name }

const (
	omCurrentVars = "temperature_2m,apparent_temperature,relative_humidity_2m,weather_code,cloud_cover," +
		"surface_pressure,wind_speed_10m,wind_direction_10m,precipitation,visibility,dew_point_2m,is_day"
	omHourlyVars = "temperature_2m,apparent_temperature,relative_humidity_2m,weather_code,cloud_cover," +
		"surface_pressure,wind_speed_10m,wind_direction_10m,precipitation,visibility,dew_point_2m," +
		"precipitation_probability,is_day"
	omDailyVars = "weather_code,temperature_2m_max,temperature_2m_min,sunrise,sunset,uv_index_max," +
		"precipitation_sum,precipitation_probability_max,wind_speed_10m_max,wind_direction_10m_dominant"
)

type omCurrent struct {
	Time        int64          `json:"time"`
	Temp        weather.Number `json:"temperature_2m"`
	FeelsLike   weather.Number `json:"apparent_temperature"`
	Humidity    weather.Number `json:"relative_humidity_2m"`
	WeatherCode weather.Number `json:"weather_code"`
	Cloud       weather.Number `json:"cloud_cover"`
	Pressure    weather.Number `json:"surface_pressure"`
	WindSpeed   weather.Number `json:"wind_speed_10m"`
	WindDir     weather.Number `json:"wind_direction_10m"`
	Precip      weather.Number `json:"precipitation"`
	Visibility  weather.Number `json:"visibility"`
	Dew         weather.Number `json:"dew_point_2m"`
	IsDay       weather.Number `json:"is_day"`
}

// omHourly holds parallel arrays indexed by hour.
type omHourly struct {
	Time        []int64          `json:"time"`
	Temp        []weather.Number `json:"temperature_2m"`
	FeelsLike   []weather.Number `json:"apparent_temperature"`
	Humidity    []weather.Number `json:"relative_humidity_2m"`
	WeatherCode []weather.Number `json:"weather_code"`
	Cloud       []weather.Number `json:"cloud_cover"`
	Pressure    []weather.Number `json:"surface_pressure"`
	WindSpeed   []weather.Number `json:"wind_speed_10m"`
	WindDir     []weather.Number `json:"wind_direction_10m"`
	Precip      []weather.Number `json:"precipitation"`
	Visibility  []weather.Number `json:"visibility"`
	Dew         []weather.Number `json:"dew_point_2m"`
	Pop         []weather.Number `json:"precipitation_probability"`
	IsDay       []weather.Number `json:"is_day"`
}

type omDaily struct {
	Time        []int64          `json:"time"`
	WeatherCode []weather.Number `json:"weather_code"`
	TempMax     []weather.Number `json:"temperature_2m_max"`
	TempMin     []weather.Number `json:"temperature_2m_min"`
	Sunrise     []int64          `json:"sunrise"`
	Sunset      []int64          `json:"sunset"`
	UVIndex     []weather.Number `json:"uv_index_max"`
	Precip      []weather.Number `json:"precipitation_sum"`
	Pop         []weather.Number `json:"precipitation_probability_max"`
	WindSpeed   []weather.Number `json:"wind_speed_10m_max"`
	WindDir     []weather.Number `json:"wind_direction_10m_dominant"`
}

type omPayload struct {
	UTCOffsetSeconds int        `json:"utc_offset_seconds"`
	Current          *omCurrent `json:"current"`
	Hourly           *omHourly  `json:"hourly"`
	Daily            *omDaily   `json:"daily"`
}

func (p *OpenMeteoProvider) fetch(ctx context.Context, op string, q weather.Query, block, vars string) (omPayload, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(q.Lat, 'f', 4, 64))
	values.Set("longitude", strconv.FormatFloat(q.Lon, 'f', 4, 64))
	values.Set(block, vars)
	values.Set("timezone", "auto")
	values.Set("wind_speed_unit", "ms")
	values.Set("timeformat", "unixtime")
	values.Set("forecast_days", "7")

	body, err := p.http.get(ctx, op, p.endpoint, values, nil)
	if err != nil {
		return omPayload{}, err
	}

	var payload omPayload
	if err := decode(p.name, body, &payload); err != nil {
		return omPayload{}, err
	}
	return payload, nil
}

// at returns xs[i], or an absent Number when the array is short.
func at(xs []weather.Number, i int) weather.Number {
	if i < len(xs) {
		return xs[i]
	}
	return weather.Number{}
}

func atInt64(xs []int64, i int) int64 {
	if i < len(xs) {
		return xs[i]
	}
	return 0
}

func omWind(speed, dir weather.Number) weather.Wind {
	deg := dir.Int()
	return weather.Wind{
		Deg:   deg,
		Dir:   weather.CompassLabel(deg),
		Scale: weather.BeaufortLabel(speed.Float()),
		Speed: speed.Float(),
	}
}

func (p *OpenMeteoProvider) Current(ctx context.Context, q weather.Query) (weather.CurrentConditions, error) {
	payload, err := p.fetch(ctx, "current", q, "current", omCurrentVars)
	if err != nil {
		return weather.CurrentConditions{}, err
	}
	if payload.Current == nil {
		return weather.CurrentConditions{}, &weather.MalformedResponseError{Provider: p.name, Reason: "missing current block"}
	}

	c := payload.Current
	text, icon := wmoCondition(c.WeatherCode.Int(), !c.IsDay.Valid || c.IsDay.Int() == 1)
	return weather.CurrentConditions{
		City:        q.City,
		Lat:         q.Lat,
		Lon:         q.Lon,
		Temp:        c.Temp.Float(),
		FeelsLike:   c.FeelsLike.Float(),
		Description: text,
		Icon:        icon,
		Wind:        omWind(c.WindSpeed, c.WindDir),
		Humidity:    c.Humidity.Int(),
		Pressure:    c.Pressure.Float(),
		Visibility:  weather.MetersToKm(c.Visibility.Float()),
		Precip:      c.Precip.Float(),
		Cloud:       c.Cloud.IntPtr(),
		Dew:         c.Dew.Ptr(),
		Timestamp:   c.Time,
	}, nil
}

func (p *OpenMeteoProvider) Hourly(ctx context.Context, q weather.Query) ([]weather.HourlyPoint, error) {
	payload, err := p.fetch(ctx, "hourly", q, "hourly", omHourlyVars)
	if err != nil {
		return nil, err
	}
	if payload.Hourly == nil {
		return nil, &weather.MalformedResponseError{Provider: p.name, Reason: "missing hourly block"}
	}

	// The grid starts at local midnight; skip the hours already past.
	h := payload.Hourly
	now := p.now().Unix()
	first := 0
	for first < len(h.Time) && h.Time[first]+3600 <= now {
		first++
	}
	idx := make([]int, 0, len(h.Time)-first)
	for i := first; i < len(h.Time); i++ {
		idx = append(idx, i)
	}
	idx, err = requireLen(p.name, "hourly", idx, weather.HourlyPoints)
	if err != nil {
		return nil, err
	}

	points := make([]weather.HourlyPoint, 0, len(idx))
	for _, i := range idx {
		text, icon := wmoCondition(at(h.WeatherCode, i).Int(), !at(h.IsDay, i).Valid || at(h.IsDay, i).Int() == 1)
		points = append(points, weather.HourlyPoint{
			City:        q.City,
			Lat:         q.Lat,
			Lon:         q.Lon,
			Timestamp:   h.Time[i],
			Temp:        at(h.Temp, i).Float(),
			FeelsLike:   at(h.FeelsLike, i).Float(),
			Description: text,
			Icon:        icon,
			Wind:        omWind(at(h.WindSpeed, i), at(h.WindDir, i)),
			Humidity:    at(h.Humidity, i).Int(),
			Pressure:    at(h.Pressure, i).Float(),
			Visibility:  weather.MetersToKm(at(h.Visibility, i).Float()),
			Precip:      at(h.Precip, i).Float(),
			Cloud:       at(h.Cloud, i).IntPtr(),
			Dew:         at(h.Dew, i).Ptr(),
			Pop:         at(h.Pop, i).Float(),
		})
	}
	if err := checkHourly(p.name, points); err != nil {
		return nil, err
	}
	return points, nil
}

func (p *OpenMeteoProvider) Daily(ctx context.Context, q weather.Query) ([]weather.DailyPoint, error) {
	payload, err := p.fetch(ctx, "daily", q, "daily", omDailyVars)
	if err != nil {
		return nil, err
	}
	if payload.Daily == nil {
		return nil, &weather.MalformedResponseError{Provider: p.name, Reason: "missing daily block"}
	}

	d := payload.Daily
	days, err := requireLen(p.name, "daily", d.Time, weather.DailyPoints)
	if err != nil {
		return nil, err
	}

	loc := time.FixedZone("", payload.UTCOffsetSeconds)
	points := make([]weather.DailyPoint, 0, len(days))
	for i, day := range days {
		code := at(d.WeatherCode, i).Int()
		textDay, iconDay := wmoCondition(code, true)
		textNight, iconNight := wmoCondition(code, false)
		wind := omWind(at(d.WindSpeed, i), at(d.WindDir, i))

		points = append(points, weather.DailyPoint{
			City:      q.City,
			Lat:       q.Lat,
			Lon:       q.Lon,
			Date:      time.Unix(day, 0).In(loc).Format("2006-01-02"),
			TempMin:   at(d.TempMin, i).Float(),
			TempMax:   at(d.TempMax, i).Float(),
			TextDay:   textDay,
			IconDay:   iconDay,
			TextNight: textNight,
			IconNight: iconNight,
			WindDay:   wind,
			WindNight: wind,
			Precip:    at(d.Precip, i).Float(),
			UVIndex:   at(d.UVIndex, i).IntPtr(),
			Sunrise:   weather.ClockFromEpoch(atInt64(d.Sunrise, i), loc),
			Sunset:    weather.ClockFromEpoch(atInt64(d.Sunset, i), loc),
			Pop:       at(d.Pop, i).Float(),
		})
	}
	if err := checkDaily(p.name, points); err != nil {
		return nil, err
	}
	return points, nil
}

// Alerts always returns an empty list; Open-Meteo has no warnings feed.
func (p *OpenMeteoProvider) Alerts(ctx context.Context, q weather.Query) ([]weather.Alert, error) {
	return []weather.Alert{}, nil
}

// wmoCondition maps a WMO weather interpretation code to a description and an
// icon code from the same icon set the synthetic generator uses.
func wmoCondition(code int, day bool) (text, icon string) {
	switch {
	case code == 0:
		if day {
			return "晴", "100"
		}
		return "晴", "150"
	case code >= 1 && code <= 2:
		if day {
			return "多云", "101"
		}
		return "多云", "151"
	case code == 3:
		return "阴", "104"
	case code == 45 || code == 48:
		return "雾", "501"
	case code >= 51 && code <= 57:
		return "毛毛雨", "309"
	case code == 61 || code == 80:
		return "小雨", "305"
	case code == 63 || code == 81:
		return "中雨", "306"
	case code == 65 || code == 82:
		return "大雨", "307"
	case code == 66 || code == 67:
		return "冻雨", "313"
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return "雪", "400"
	case code >= 95:
		return "雷阵雨", "302"
	default:
		return "未知", "999"
	}
}

var _ weather.Provider = (*OpenMeteoProvider)(nil)
