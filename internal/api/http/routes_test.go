package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-gateway/internal/geo"
	"github.com/i474232898/weather-gateway/internal/store"
	"github.com/i474232898/weather-gateway/internal/weather"
	"github.com/i474232898/weather-gateway/internal/weather/synthetic"
)

// failingProvider fails every call so the gateway has to degrade.
type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }

func (failingProvider) Current(context.Context, weather.Query) (weather.CurrentConditions, error) {
	return weather.CurrentConditions{}, &weather.UpstreamError{Provider: "failing", StatusCode: 503}
}

func (failingProvider) Hourly(context.Context, weather.Query) ([]weather.HourlyPoint, error) {
	return nil, &weather.UpstreamError{Provider: "failing", StatusCode: 503}
}

func (failingProvider) Daily(context.Context, weather.Query) ([]weather.DailyPoint, error) {
	return nil, &weather.UpstreamError{Provider: "failing", StatusCode: 503}
}

func (failingProvider) Alerts(context.Context, weather.Query) ([]weather.Alert, error) {
	return nil, &weather.UpstreamError{Provider: "failing", StatusCode: 503}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestApp(t *testing.T, provider weather.Provider) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	gw := weather.NewGateway(provider, synthetic.New(), weather.Options{}, nil)
	RegisterRoutes(app, Deps{
		Gateway: gw,
		Store:   store.NewMemoryStore(),
		Locator: geo.New("", nil),
		Service: "weather-gateway",
		Version: "test",
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("decode %s %s: %v", method, target, err)
	}
	return resp, env
}

func TestWeatherLocationValidation(t *testing.T) {
	app := newTestApp(t, nil)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"coordinates", "/api/weather/current?lat=39.9&lon=116.4", http.StatusOK},
		{"known city", "/api/weather/current?city=" + url.QueryEscape("北京"), http.StatusOK},
		{"unknown city", "/api/weather/current?city=Atlantis", http.StatusBadRequest},
		{"nothing", "/api/weather/current", http.StatusBadRequest},
		{"lat only", "/api/weather/current?lat=39.9", http.StatusBadRequest},
		{"bad number", "/api/weather/current?lat=abc&lon=116.4", http.StatusBadRequest},
		{"lat out of range", "/api/weather/current?lat=91&lon=0", http.StatusBadRequest},
		{"lon out of range", "/api/weather/current?lat=0&lon=-181", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := do(t, app, http.MethodGet, tt.target, "")
			if resp.StatusCode != tt.status {
				t.Fatalf("expected status %d, got %d (%s)", tt.status, resp.StatusCode, env.Message)
			}
			if env.Code != tt.status {
				t.Fatalf("expected envelope code %d, got %d", tt.status, env.Code)
			}
		})
	}
}

func TestWeatherEndpointsMockMode(t *testing.T) {
	app := newTestApp(t, nil)
	q := "?lat=31.23&lon=121.47&city=" + url.QueryEscape("上海")

	tests := []struct {
		path string
		want int // expected array length, or -1 for an object
	}{
		{"/api/weather/current", -1},
		{"/api/weather/forecast/hourly", weather.HourlyPoints},
		{"/api/weather/forecast/daily", weather.DailyPoints},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, env := do(t, app, http.MethodGet, tt.path+q, "")
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			if got := resp.Header.Get(headerSource); got != weather.SourceSynthetic {
				t.Fatalf("expected source %q, got %q", weather.SourceSynthetic, got)
			}
			if got := resp.Header.Get(headerDegraded); got != "false" {
				t.Fatalf("expected degraded false, got %q", got)
			}
			if tt.want < 0 {
				var cur weather.CurrentConditions
				if err := json.Unmarshal(env.Data, &cur); err != nil {
					t.Fatalf("decode data: %v", err)
				}
				if cur.City != "上海" || cur.Lat != 31.23 {
					t.Fatalf("unexpected current conditions: %+v", cur)
				}
				return
			}
			var items []json.RawMessage
			if err := json.Unmarshal(env.Data, &items); err != nil {
				t.Fatalf("decode data: %v", err)
			}
			if len(items) != tt.want {
				t.Fatalf("expected %d items, got %d", tt.want, len(items))
			}
		})
	}
}

func TestAlertsAlwaysArray(t *testing.T) {
	app := newTestApp(t, failingProvider{})

	resp, env := do(t, app, http.MethodGet, "/api/weather/alerts?lat=1&lon=2", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if string(env.Data) == "null" {
		t.Fatal("alerts must be an array")
	}
}

func TestDegradedHeaders(t *testing.T) {
	app := newTestApp(t, failingProvider{})

	resp, env := do(t, app, http.MethodGet, "/api/weather/current?lat=39.9&lon=116.4", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("provider failure must not surface, got %d", resp.StatusCode)
	}
	if env.Code != http.StatusOK {
		t.Fatalf("expected envelope code 200, got %d", env.Code)
	}
	if got := resp.Header.Get(headerDegraded); got != "true" {
		t.Fatalf("expected degraded true, got %q", got)
	}
	if got := resp.Header.Get(headerSource); got != weather.SourceSynthetic {
		t.Fatalf("expected synthetic source, got %q", got)
	}
}

func TestCitySearch(t *testing.T) {
	app := newTestApp(t, nil)

	resp, _ := do(t, app, http.MethodGet, "/api/cities/search?keyword=%20", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank keyword: expected 400, got %d", resp.StatusCode)
	}

	resp, env := do(t, app, http.MethodGet, "/api/cities/search?keyword="+url.QueryEscape("杭州"), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var cities []weather.CityCandidate
	if err := json.Unmarshal(env.Data, &cities); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(cities) == 0 || cities[0].Name != "杭州" {
		t.Fatalf("unexpected search result: %+v", cities)
	}
}

func TestFavoritesLifecycle(t *testing.T) {
	app := newTestApp(t, nil)
	body := `{"name":"杭州","country":"中国","lat":30.27,"lon":120.15}`

	resp, _ := do(t, app, http.MethodPost, "/api/favorites", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add: expected 200, got %d", resp.StatusCode)
	}
	// Adding the same city again is not an error.
	resp, _ = do(t, app, http.MethodPost, "/api/favorites", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("re-add: expected 200, got %d", resp.StatusCode)
	}

	_, env := do(t, app, http.MethodGet, "/api/favorites", "")
	var favorites []store.Favorite
	if err := json.Unmarshal(env.Data, &favorites); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(favorites) != 1 {
		t.Fatalf("expected 1 favorite, got %d", len(favorites))
	}

	target := "/api/favorites?name=" + url.QueryEscape("杭州") + "&country=" + url.QueryEscape("中国") + "&lat=30.27&lon=120.15"
	resp, _ = do(t, app, http.MethodDelete, target, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	resp, _ = do(t, app, http.MethodDelete, target, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestFavoritesValidation(t *testing.T) {
	app := newTestApp(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"country":"中国","lat":30,"lon":120}`},
		{"bad latitude", `{"name":"x","lat":100,"lon":120}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := do(t, app, http.MethodPost, "/api/favorites", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestPreferencesPatch(t *testing.T) {
	app := newTestApp(t, nil)

	_, env := do(t, app, http.MethodGet, "/api/preferences", "")
	var prefs store.Preferences
	if err := json.Unmarshal(env.Data, &prefs); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if prefs != store.DefaultPreferences() {
		t.Fatalf("expected defaults, got %+v", prefs)
	}

	resp, env := do(t, app, http.MethodPut, "/api/preferences", `{"temperatureUnit":"F","showBarChart":false}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, env.Message)
	}
	if err := json.Unmarshal(env.Data, &prefs); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	want := store.DefaultPreferences()
	want.TemperatureUnit = "F"
	want.ShowBarChart = false
	if prefs != want {
		t.Fatalf("expected %+v, got %+v", want, prefs)
	}

	resp, _ = do(t, app, http.MethodPut, "/api/preferences", `{"temperatureUnit":"K"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid unit: expected 400, got %d", resp.StatusCode)
	}
}

func TestConcurrentPreferencePatchesAllApply(t *testing.T) {
	app := newTestApp(t, nil)
	patches := []string{
		`{"showCurrentCard":false}`,
		`{"showLineChart":false}`,
		`{"showBarChart":false}`,
		`{"showGaugeCard":false}`,
		`{"temperatureUnit":"F"}`,
		`{"defaultCity":"成都"}`,
	}

	var wg sync.WaitGroup
	for _, body := range patches {
		wg.Add(1)
		go func(body string) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPut, "/api/preferences", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if resp, err := app.Test(req); err != nil || resp.StatusCode != http.StatusOK {
				t.Errorf("patch %s failed: %v", body, err)
			}
		}(body)
	}
	wg.Wait()

	_, env := do(t, app, http.MethodGet, "/api/preferences", "")
	var got store.Preferences
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	want := store.DefaultPreferences()
	want.ShowCurrentCard = false
	want.ShowLineChart = false
	want.ShowBarChart = false
	want.ShowGaugeCard = false
	want.TemperatureUnit = "F"
	want.DefaultCity = "成都"
	if got != want {
		t.Fatalf("expected every patch applied, got %+v", got)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, nil)

	resp, env := do(t, app, http.MethodGet, "/api/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var health map[string]string
	if err := json.Unmarshal(env.Data, &health); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if health["status"] != "UP" || health["provider"] != weather.SourceSynthetic {
		t.Fatalf("unexpected health: %v", health)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mresp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mresp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", mresp.StatusCode)
	}
}
