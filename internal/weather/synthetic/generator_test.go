package synthetic

import (
	"reflect"
	"testing"
	"time"

	"github.com/i474232898/weather-gateway/internal/weather"
)

var fixedNow = time.Date(2025, 7, 14, 9, 37, 12, 0, time.UTC)

func newGen() *Generator {
	return New().WithClock(func() time.Time { return fixedNow })
}

func TestCurrentIsDeterministic(t *testing.T) {
	g := newGen()
	for _, city := range []string{"北京", "Paris", "xyz123", ""} {
		q := weather.Query{Lat: 1, Lon: 2, City: city}
		a, b := g.Current(q), g.Current(q)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Current(%q) not deterministic:\n%+v\n%+v", city, a, b)
		}
	}

	if reflect.DeepEqual(g.Current(weather.Query{City: "北京"}), g.Current(weather.Query{City: "上海"})) {
		t.Error("different cities should not produce identical data")
	}
}

func TestCurrentRanges(t *testing.T) {
	g := newGen()
	cur := g.Current(weather.Query{City: "深圳"})

	if cur.Temp < 15 || cur.Temp > 35 {
		t.Errorf("temp %v out of range", cur.Temp)
	}
	if cur.Humidity < 40 || cur.Humidity > 90 {
		t.Errorf("humidity %v out of range", cur.Humidity)
	}
	if cur.Wind.Speed < 1 || cur.Wind.Speed > 9 {
		t.Errorf("wind speed %v out of range", cur.Wind.Speed)
	}
	if cur.Description == "" || cur.Icon == "" {
		t.Error("description and icon must be set")
	}
	if cur.Timestamp != fixedNow.Unix() {
		t.Errorf("timestamp = %d, want %d", cur.Timestamp, fixedNow.Unix())
	}
}

func TestHourlySpacing(t *testing.T) {
	points := newGen().Hourly(weather.Query{City: "成都"})
	if len(points) != weather.HourlyPoints {
		t.Fatalf("expected %d points, got %d", weather.HourlyPoints, len(points))
	}

	start := fixedNow.Truncate(time.Hour).Unix()
	if points[0].Timestamp != start {
		t.Errorf("first point = %d, want current hour %d", points[0].Timestamp, start)
	}
	for i := 1; i < len(points); i++ {
		if diff := points[i].Timestamp - points[i-1].Timestamp; diff != 3600 {
			t.Fatalf("points %d and %d are %ds apart", i-1, i, diff)
		}
	}
}

func TestDailyDates(t *testing.T) {
	points := newGen().Daily(weather.Query{City: "武汉"})
	if len(points) != weather.DailyPoints {
		t.Fatalf("expected %d points, got %d", weather.DailyPoints, len(points))
	}

	for i, p := range points {
		want := fixedNow.AddDate(0, 0, i).Format("2006-01-02")
		if p.Date != want {
			t.Errorf("day %d date = %s, want %s", i, p.Date, want)
		}
		if p.TempMax < p.TempMin {
			t.Errorf("day %d max %v below min %v", i, p.TempMax, p.TempMin)
		}
		if p.MoonPhase == "" || p.MoonPhaseIcon == "" {
			t.Errorf("day %d missing moon data", i)
		}
	}
}

func TestAlerts(t *testing.T) {
	alerts := newGen().Alerts(weather.Query{City: "重庆"})
	if len(alerts) < 1 || len(alerts) > 2 {
		t.Fatalf("expected 1-2 alerts, got %d", len(alerts))
	}
	for _, a := range alerts {
		if a.Start == nil || a.End == nil || *a.End <= *a.Start {
			t.Errorf("alert has invalid window: %+v", a)
		}
		if a.Event == "" || a.Level == "" {
			t.Errorf("alert missing event or level: %+v", a)
		}
	}
}

func TestSearchCities(t *testing.T) {
	g := newGen()

	got := g.SearchCities("深圳")
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].Name != "深圳" || got[0].Country != "中国" || got[0].State != "广东省" {
		t.Errorf("unexpected candidate: %+v", got[0])
	}

	if got := g.SearchCities("xyz123"); len(got) != 0 {
		t.Errorf("expected no candidates, got %+v", got)
	}
}
