// Package synthetic produces deterministic, plausible weather data seeded by
// city name. It backs mock mode and stands in for failed provider calls.
package synthetic

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/i474232898/weather-gateway/internal/weather"
	"github.com/i474232898/weather-gateway/internal/weather/location"
)

type condition struct {
	text string
	icon string
}

var (
	conditions = []condition{
		{"晴", "100"}, {"多云", "101"}, {"阴", "104"}, {"小雨", "305"},
		{"中雨", "306"}, {"大雨", "307"}, {"雷阵雨", "302"}, {"雪", "400"},
	}
	nightConditions = []condition{
		{"晴", "150"}, {"多云", "151"}, {"阴", "104"}, {"小雨", "305"}, {"中雨", "306"},
	}
	alertTypes  = []string{"暴雨预警", "大风预警", "高温预警", "寒潮预警", "台风预警"}
	alertLevels = []string{"蓝色", "黄色", "橙色", "红色"}
)

// Generator implements weather.Fallback. The zero value is not usable; call New.
type Generator struct {
	now func() time.Time
}

// New creates a Generator using the wall clock.
func New() *Generator {
	return &Generator{now: time.Now}
}

// WithClock replaces the time source.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// rng returns a fresh source seeded by the city so each operation is
// repeatable on its own.
func rng(city string) *rand.Rand {
	return rand.New(rand.NewSource(int64(xxhash.Sum64String(city))))
}

func between(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

func wind(r *rand.Rand, lo, hi float64) weather.Wind {
	deg := r.Intn(360)
	speed := round1(between(r, lo, hi))
	return weather.Wind{
		Deg:   deg,
		Dir:   weather.CompassLabel(deg),
		Scale: weather.BeaufortLabel(speed),
		Speed: speed,
	}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

// Current returns synthetic current conditions.
func (g *Generator) Current(q weather.Query) weather.CurrentConditions {
	r := rng(q.City)
	temp := round1(between(r, 15, 35))
	c := conditions[r.Intn(len(conditions))]

	return weather.CurrentConditions{
		City:        q.City,
		Lat:         q.Lat,
		Lon:         q.Lon,
		Temp:        temp,
		FeelsLike:   round1(temp + between(r, -2, 2)),
		Description: c.text,
		Icon:        c.icon,
		Wind:        wind(r, 1, 9),
		Humidity:    40 + r.Intn(51),
		Pressure:    float64(1000 + r.Intn(31)),
		Visibility:  round1(between(r, 5, 20)),
		Precip:      round1(between(r, 0, 10)),
		Cloud:       intPtr(r.Intn(101)),
		Dew:         floatPtr(round1(between(r, 10, 20))),
		Timestamp:   g.now().Unix(),
		AQI:         intPtr(20 + r.Intn(131)),
	}
}

// Hourly returns 24 synthetic points starting at the current hour.
func (g *Generator) Hourly(q weather.Query) []weather.HourlyPoint {
	r := rng(q.City)
	start := g.now().Truncate(time.Hour)

	points := make([]weather.HourlyPoint, 0, weather.HourlyPoints)
	for i := 0; i < weather.HourlyPoints; i++ {
		temp := round1(between(r, 15, 35))
		c := conditions[r.Intn(4)]
		points = append(points, weather.HourlyPoint{
			City:        q.City,
			Lat:         q.Lat,
			Lon:         q.Lon,
			Timestamp:   start.Add(time.Duration(i) * time.Hour).Unix(),
			Temp:        temp,
			FeelsLike:   round1(temp + between(r, -2, 2)),
			Description: c.text,
			Icon:        c.icon,
			Wind:        wind(r, 1, 9),
			Humidity:    40 + r.Intn(51),
			Pressure:    float64(1000 + r.Intn(31)),
			Visibility:  round1(between(r, 5, 20)),
			Precip:      round1(between(r, 0, 10)),
			Cloud:       intPtr(r.Intn(101)),
			Dew:         floatPtr(round1(between(r, 10, 20))),
			Pop:         round1(between(r, 0, 50)),
		})
	}
	return points
}

func clock(r *rand.Rand, fromHour, hours int) string {
	return fmt.Sprintf("%02d:%02d", fromHour+r.Intn(hours), r.Intn(60))
}

// Daily returns 7 synthetic days starting today.
func (g *Generator) Daily(q weather.Query) []weather.DailyPoint {
	r := rng(q.City)
	now := g.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	points := make([]weather.DailyPoint, 0, weather.DailyPoints)
	for i := 0; i < weather.DailyPoints; i++ {
		day := conditions[r.Intn(5)]
		night := nightConditions[r.Intn(len(nightConditions))]
		lo := round1(between(r, 15, 24))
		phase, phaseIcon := weather.MoonPhaseByIndex(r.Intn(8))

		points = append(points, weather.DailyPoint{
			City:          q.City,
			Lat:           q.Lat,
			Lon:           q.Lon,
			Date:          today.AddDate(0, 0, i).Format("2006-01-02"),
			TempMin:       lo,
			TempMax:       round1(lo + between(r, 4, 11)),
			TextDay:       day.text,
			IconDay:       day.icon,
			TextNight:     night.text,
			IconNight:     night.icon,
			WindDay:       wind(r, 1, 9),
			WindNight:     wind(r, 1, 6),
			Humidity:      40 + r.Intn(51),
			Pressure:      float64(1000 + r.Intn(31)),
			Visibility:    round1(between(r, 5, 20)),
			Precip:        round1(between(r, 0, 10)),
			Cloud:         intPtr(r.Intn(101)),
			UVIndex:       intPtr(r.Intn(11)),
			Sunrise:       clock(r, 5, 2),
			Sunset:        clock(r, 17, 2),
			Moonrise:      clock(r, 0, 24),
			Moonset:       clock(r, 0, 24),
			MoonPhase:     phase,
			MoonPhaseIcon: phaseIcon,
			Pop:           round1(between(r, 0, 50)),
		})
	}
	return points
}

// Alerts returns one or two synthetic alerts.
func (g *Generator) Alerts(q weather.Query) []weather.Alert {
	r := rng(q.City)
	now := g.now().Truncate(time.Hour)

	n := 1 + r.Intn(2)
	alerts := make([]weather.Alert, 0, n)
	for i := 0; i < n; i++ {
		kind := alertTypes[r.Intn(len(alertTypes))]
		level := alertLevels[r.Intn(len(alertLevels))]
		start := now.Add(time.Duration(r.Intn(6)) * time.Hour).Unix()
		end := start + int64((6+r.Intn(18))*3600)

		alerts = append(alerts, weather.Alert{
			City:  q.City,
			Lat:   q.Lat,
			Lon:   q.Lon,
			Event: kind,
			Description: fmt.Sprintf("%s%s：预计未来24小时内，%s地区将出现%s天气，请注意防范。",
				level, kind, q.City, strings.TrimSuffix(kind, "预警")),
			Start: &start,
			End:   &end,
			Level: level,
			Tags:  level,
		})
	}
	return alerts
}

// SearchCities matches keyword against the static city table.
func (g *Generator) SearchCities(keyword string) []weather.CityCandidate {
	found := location.Search(keyword)
	out := make([]weather.CityCandidate, 0, len(found))
	for _, c := range found {
		out = append(out, weather.CityCandidate{
			Name:    c.Name,
			Country: c.Country,
			State:   c.Province,
			Lat:     c.Lat,
			Lon:     c.Lon,
		})
	}
	return out
}

var _ weather.Fallback = (*Generator)(nil)
