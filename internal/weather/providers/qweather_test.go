package providers

import (
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/i474232898/weather-gateway/internal/token"
	"github.com/i474232898/weather-gateway/internal/weather"
)

func testIssuer(t *testing.T) *token.Issuer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return token.NewIssuer(token.Config{
		Subject:       "project-1",
		KeyID:         "kid-1",
		PrivateKeyPEM: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
	})
}

// qweatherServer serves canned bodies per path; unknown paths return 500.
func qweatherServer(t *testing.T, bodies map[string]string, seen func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			seen(r)
		}
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const qwNowBody = `{
	"code": "200",
	"now": {
		"obsTime": "2025-07-14T09:35+08:00",
		"temp": "24",
		"feelsLike": 26,
		"icon": "101",
		"text": "多云",
		"windDir": "东南风",
		"windScale": "3",
		"windSpeed": "36",
		"humidity": "72",
		"precip": "0.0",
		"pressure": "1003",
		"vis": "16",
		"cloud": "",
		"dew": "21"
	}
}`

func TestQWeatherCurrent(t *testing.T) {
	var auth, loc, accept string
	srv := qweatherServer(t, map[string]string{"/v7/weather/now": qwNowBody}, func(r *http.Request) {
		if r.URL.Path == "/v7/weather/now" {
			auth = r.Header.Get("Authorization")
			loc = r.URL.Query().Get("location")
			accept = r.Header.Get("Accept")
		}
	})

	p := NewQWeatherProvider(srv.Client(), srv.URL, "", testIssuer(t), DefaultLimits(), nil)
	cur, err := p.Current(context.Background(), weather.Query{City: "北京", Lat: 39.9, Lon: 116.41})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(auth, "Bearer ") || strings.Count(auth, ".") != 2 {
		t.Errorf("expected a bearer JWT, got %q", auth)
	}
	if loc != "101010100" {
		t.Errorf("expected location id for 北京, got %q", loc)
	}
	if accept != "application/json" {
		t.Errorf("Accept = %q", accept)
	}

	if cur.Temp != 24 || cur.FeelsLike != 26 || cur.Humidity != 72 {
		t.Errorf("unexpected numbers: %+v", cur)
	}
	if cur.Wind.Speed != 10 || cur.Wind.Deg != 135 || cur.Wind.Dir != "东南风" || cur.Wind.Scale != "3" {
		t.Errorf("unexpected wind: %+v", cur.Wind)
	}
	if cur.Timestamp != 1752456900 {
		t.Errorf("timestamp = %d, want 1752456900", cur.Timestamp)
	}
	if cur.Cloud != nil {
		t.Errorf("empty cloud should be absent, got %v", *cur.Cloud)
	}
	if cur.Dew == nil || *cur.Dew != 21 {
		t.Errorf("dew = %v, want 21", cur.Dew)
	}
	if cur.AQI != nil {
		t.Errorf("failed air quality call should leave aqi absent, got %v", *cur.AQI)
	}
}

func TestQWeatherCurrentWithAirQuality(t *testing.T) {
	srv := qweatherServer(t, map[string]string{
		"/v7/weather/now": qwNowBody,
		"/v7/air/now":     `{"code":"200","now":{"aqi":"57"}}`,
	}, nil)

	p := NewQWeatherProvider(srv.Client(), srv.URL, "key", nil, DefaultLimits(), nil)
	cur, err := p.Current(context.Background(), weather.Query{City: "上海"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cur.AQI == nil || *cur.AQI != 57 {
		t.Fatalf("aqi = %v, want 57", cur.AQI)
	}
}

func TestQWeatherLocationAndAuthFallbacks(t *testing.T) {
	var apiKey, auth, loc string
	srv := qweatherServer(t, map[string]string{"/v7/weather/now": qwNowBody}, func(r *http.Request) {
		if r.URL.Path == "/v7/weather/now" {
			apiKey = r.Header.Get("X-QW-Api-Key")
			auth = r.Header.Get("Authorization")
			loc = r.URL.Query().Get("location")
		}
	})

	p := NewQWeatherProvider(srv.Client(), srv.URL, "secret", nil, DefaultLimits(), nil)
	if _, err := p.Current(context.Background(), weather.Query{City: "Paris", Lat: 48.8566, Lon: 2.3522}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if apiKey != "secret" || auth != "" {
		t.Errorf("expected api key header only, got key=%q auth=%q", apiKey, auth)
	}
	if loc != "2.35,48.86" {
		t.Errorf("expected lon,lat for unknown city, got %q", loc)
	}
}

func TestQWeatherBodyCodeIsUpstreamError(t *testing.T) {
	srv := qweatherServer(t, map[string]string{"/v7/weather/now": `{"code":"401"}`}, nil)

	p := NewQWeatherProvider(srv.Client(), srv.URL, "key", nil, DefaultLimits(), nil)
	_, err := p.Current(context.Background(), weather.Query{City: "北京"})
	var upstreamErr *weather.UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if !strings.Contains(upstreamErr.Body, "401") {
		t.Errorf("expected body to be kept, got %q", upstreamErr.Body)
	}
}

func TestQWeatherHTTPStatusIsUpstreamError(t *testing.T) {
	srv := qweatherServer(t, map[string]string{}, nil)

	p := NewQWeatherProvider(srv.Client(), srv.URL, "key", nil, DefaultLimits(), nil)
	_, err := p.Daily(context.Background(), weather.Query{City: "北京"})
	var upstreamErr *weather.UpstreamError
	if !errors.As(err, &upstreamErr) || upstreamErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 UpstreamError, got %v", err)
	}
}

func TestQWeatherTokenFailureSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := qweatherServer(t, map[string]string{"/v7/weather/now": qwNowBody}, func(*http.Request) { calls.Add(1) })

	issuer := token.NewIssuer(token.Config{Subject: "p", KeyID: "k", PrivateKeyPEM: "not a key"})
	p := NewQWeatherProvider(srv.Client(), srv.URL, "", issuer, DefaultLimits(), nil)

	_, err := p.Current(context.Background(), weather.Query{City: "北京"})
	var tokenErr *weather.TokenGenerationError
	if !errors.As(err, &tokenErr) {
		t.Fatalf("expected TokenGenerationError, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("no request should be sent without a token, got %d", calls.Load())
	}
	if err := p.WarmUp(context.Background()); err == nil {
		t.Fatal("expected warm-up to report the bad key")
	}
}

func qwHourlyBody(n int) string {
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, fmt.Sprintf(`{"fxTime":"2025-07-14T%02d:00+08:00","temp":"%d","icon":"100","text":"晴",
			"wind360":"90","windDir":"东风","windScale":"2","windSpeed":"7.2","humidity":"60","pop":"20",
			"precip":"0.0","pressure":"1000","cloud":"10","dew":"18"}`, i%24, 20+i%5))
	}
	return `{"code":"200","hourly":[` + strings.Join(items, ",") + `]}`
}

func TestQWeatherHourly(t *testing.T) {
	srv := qweatherServer(t, map[string]string{"/v7/weather/24h": qwHourlyBody(24)}, nil)

	p := NewQWeatherProvider(srv.Client(), srv.URL, "key", nil, DefaultLimits(), nil)
	points, err := p.Hourly(context.Background(), weather.Query{City: "广州"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != weather.HourlyPoints {
		t.Fatalf("expected %d points, got %d", weather.HourlyPoints, len(points))
	}
	if points[0].Wind.Deg != 90 || points[0].Wind.Speed != 2 || points[0].Pop != 20 {
		t.Errorf("unexpected first point: %+v", points[0])
	}
}

func TestQWeatherHourlyTooShort(t *testing.T) {
	srv := qweatherServer(t, map[string]string{"/v7/weather/24h": qwHourlyBody(12)}, nil)

	p := NewQWeatherProvider(srv.Client(), srv.URL, "key", nil, DefaultLimits(), nil)
	_, err := p.Hourly(context.Background(), weather.Query{City: "广州"})
	var malformed *weather.MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
}

func TestQWeatherDaily(t *testing.T) {
	items := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		items = append(items, fmt.Sprintf(`{"fxDate":"2025-07-%02d","sunrise":"05:01","sunset":"19:45",
			"moonrise":"","moonset":"08:12","moonPhase":"满月","moonPhaseIcon":"804","tempMax":"33","tempMin":"24",
			"iconDay":"100","textDay":"晴","iconNight":"150","textNight":"晴",
			"windDirDay":"西南风","windScaleDay":"1-3","windSpeedDay":"3.6",
			"wind360Night":"0","windDirNight":"北风","windScaleNight":"1-3","windSpeedNight":"7.2",
			"humidity":"70","precip":"0.0","pressure":"1000","vis":"25","cloud":"5","uvIndex":"9"}`, 14+i))
	}
	srv := qweatherServer(t, map[string]string{
		"/v7/weather/7d": `{"code":"200","daily":[` + strings.Join(items, ",") + `]}`,
	}, nil)

	p := NewQWeatherProvider(srv.Client(), srv.URL, "key", nil, DefaultLimits(), nil)
	days, err := p.Daily(context.Background(), weather.Query{City: "深圳"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(days) != weather.DailyPoints {
		t.Fatalf("expected %d days, got %d", weather.DailyPoints, len(days))
	}
	d := days[0]
	if d.Date != "2025-07-14" || d.TempMax != 33 || d.TempMin != 24 {
		t.Errorf("unexpected day: %+v", d)
	}
	if d.WindDay.Deg != 225 || d.WindDay.Speed != 1 {
		t.Errorf("day wind should come from the compass label: %+v", d.WindDay)
	}
	if d.Moonrise != "" || d.Moonset != "08:12" || d.MoonPhaseIcon != "804" {
		t.Errorf("unexpected astro fields: %+v", d)
	}
	if d.UVIndex == nil || *d.UVIndex != 9 {
		t.Errorf("uv = %v, want 9", d.UVIndex)
	}
}

func TestQWeatherDailyRejectsSkippedDay(t *testing.T) {
	items := make([]string, 0, 7)
	for _, day := range []int{14, 15, 16, 18, 19, 20, 21} {
		items = append(items, fmt.Sprintf(`{"fxDate":"2025-07-%02d","tempMax":"30","tempMin":"20"}`, day))
	}
	srv := qweatherServer(t, map[string]string{
		"/v7/weather/7d": `{"code":"200","daily":[` + strings.Join(items, ",") + `]}`,
	}, nil)

	p := NewQWeatherProvider(srv.Client(), srv.URL, "key", nil, DefaultLimits(), nil)
	_, err := p.Daily(context.Background(), weather.Query{City: "深圳"})
	var malformed *weather.MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
}

func TestQWeatherAlerts(t *testing.T) {
	srv := qweatherServer(t, map[string]string{
		"/v7/warning/now": `{"code":"200","warning":[{"title":"北京市气象台发布暴雨蓝色预警","text":"预计...",
			"startTime":"2025-07-14T10:00+08:00","endTime":"","severityColor":"Blue","typeName":"暴雨"}]}`,
	}, nil)

	p := NewQWeatherProvider(srv.Client(), srv.URL, "key", nil, DefaultLimits(), nil)
	alerts, err := p.Alerts(context.Background(), weather.Query{City: "北京"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Event != "暴雨" || a.Level != "Blue" || a.Start == nil || a.End != nil {
		t.Errorf("unexpected alert: %+v", a)
	}
}

func TestQWeatherAlertsEmpty(t *testing.T) {
	srv := qweatherServer(t, map[string]string{"/v7/warning/now": `{"code":"200","warning":[]}`}, nil)

	p := NewQWeatherProvider(srv.Client(), srv.URL, "key", nil, DefaultLimits(), nil)
	alerts, err := p.Alerts(context.Background(), weather.Query{City: "北京"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alerts == nil || len(alerts) != 0 {
		t.Fatalf("expected empty alerts, got %#v", alerts)
	}
}

func TestQWeatherSearchCities(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
		body    string
		want    []weather.CityCandidate
	}{
		{
			name:    "results",
			keyword: "苏州",
			body:    `{"code":"200","location":[{"name":"苏州","adm1":"江苏省","country":"中国","lat":"31.30","lon":"120.59"}]}`,
			want:    []weather.CityCandidate{{Name: "苏州", State: "江苏省", Country: "中国", Lat: 31.30, Lon: 120.59}},
		},
		{
			name:    "not found code",
			keyword: "Atlantis",
			body:    `{"code":"404"}`,
			want:    []weather.CityCandidate{{Name: "Atlantis"}},
		},
		{
			name:    "empty list",
			keyword: "Atlantis",
			body:    `{"code":"200","location":[]}`,
			want:    []weather.CityCandidate{{Name: "Atlantis"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := qweatherServer(t, map[string]string{"/geo/v2/city/lookup": tt.body}, nil)
			p := NewQWeatherProvider(srv.Client(), srv.URL, "key", nil, DefaultLimits(), nil)

			got, err := p.SearchCities(context.Background(), tt.keyword)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("candidate %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
