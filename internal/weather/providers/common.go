package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-gateway/internal/metrics"
	"github.com/i474232898/weather-gateway/internal/weather"
)

const (
	userAgent = "weather-gateway/1.0 (+https://github.com/i474232898/weather-gateway)"
	// maxErrorBody bounds how much of a failed response is kept in an error.
	maxErrorBody = 512
)

var (
	errNoHTTPClient = errors.New("http client not configured")
	errRateLimited  = errors.New("rate limited")
)

// Limits bundles the per-provider request budget and breaker settings.
type Limits struct {
	RequestsPerSecond float64
	Burst             int
	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		RequestsPerSecond: 10,
		Burst:             20,
		BreakerFailures:   5,
		BreakerTimeout:    2 * time.Minute,
	}
}

// transport performs single-attempt GET requests for one provider through a
// rate limiter and circuit breaker.
type transport struct {
	provider string
	client   *http.Client
	limiter  *rate.Limiter
	circuit  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

func newTransport(provider string, client *http.Client, limits Limits, logger *zap.Logger) *transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named(provider)

	if limits.RequestsPerSecond <= 0 {
		limits.RequestsPerSecond = DefaultLimits().RequestsPerSecond
	}
	if limits.Burst <= 0 {
		limits.Burst = DefaultLimits().Burst
	}
	if limits.BreakerFailures == 0 {
		limits.BreakerFailures = DefaultLimits().BreakerFailures
	}
	if limits.BreakerTimeout <= 0 {
		limits.BreakerTimeout = DefaultLimits().BreakerTimeout
	}

	failures := limits.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     limits.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &transport{
		provider: provider,
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), limits.Burst),
		circuit:  cb,
		logger:   logger,
	}
}

// get issues one GET request and returns the body of a 2xx response.
// Every failure is reported as *weather.UpstreamError.
func (t *transport) get(ctx context.Context, op, endpoint string, query url.Values, header http.Header) ([]byte, error) {
	start := time.Now()
	body, err := t.do(ctx, endpoint, query, header)
	metrics.RecordUpstream(t.provider, op, time.Since(start), err)

	if err != nil {
		t.logger.Debug("upstream request failed",
			zap.String("operation", op),
			zap.String("endpoint", redact(endpoint)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	t.logger.Debug("upstream request succeeded",
		zap.String("operation", op),
		zap.String("endpoint", redact(endpoint)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("bytes", len(body)))
	return body, nil
}

func (t *transport) do(ctx context.Context, endpoint string, query url.Values, header http.Header) ([]byte, error) {
	if t.client == nil {
		return nil, &weather.UpstreamError{Provider: t.provider, Err: errNoHTTPClient}
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, &weather.UpstreamError{Provider: t.provider, Err: fmt.Errorf("%w: %v", errRateLimited, err)}
	}

	u := endpoint
	if len(query) > 0 {
		u = fmt.Sprintf("%s?%s", endpoint, query.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &weather.UpstreamError{Provider: t.provider, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	result, err := t.circuit.Execute(func() (interface{}, error) {
		resp, execErr := t.client.Do(req)
		if execErr != nil {
			return nil, &weather.UpstreamError{Provider: t.provider, Err: execErr}
		}
		defer resp.Body.Close()

		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, &weather.UpstreamError{Provider: t.provider, Err: readErr}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &weather.UpstreamError{
				Provider:   t.provider,
				StatusCode: resp.StatusCode,
				Body:       truncate(string(data), maxErrorBody),
			}
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &weather.UpstreamError{Provider: t.provider, Err: err}
		}
		return nil, err
	}

	data, ok := result.([]byte)
	if !ok {
		return nil, &weather.UpstreamError{Provider: t.provider, Err: fmt.Errorf("unexpected result type %T from circuit breaker", result)}
	}
	return data, nil
}

// decode unmarshals body into v, reporting failures as malformed responses.
func decode(provider string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &weather.MalformedResponseError{Provider: provider, Reason: "invalid json", Err: err}
	}
	return nil
}

// requireLen rejects forecasts shorter than the canonical length and trims
// longer ones.
func requireLen[T any](provider, what string, points []T, want int) ([]T, error) {
	if len(points) < want {
		return nil, &weather.MalformedResponseError{
			Provider: provider,
			Reason:   fmt.Sprintf("%s has %d points, want %d", what, len(points), want),
		}
	}
	return points[:want], nil
}

// checkHourly requires consecutive hours exactly 3600s apart.
func checkHourly(provider string, points []weather.HourlyPoint) error {
	for i := 1; i < len(points); i++ {
		if gap := points[i].Timestamp - points[i-1].Timestamp; gap != 3600 {
			return &weather.MalformedResponseError{
				Provider: provider,
				Reason:   fmt.Sprintf("hourly point %d is %ds after the previous one, want 3600s", i, gap),
			}
		}
	}
	return nil
}

// checkDaily requires one point per calendar day in ascending order.
func checkDaily(provider string, points []weather.DailyPoint) error {
	var prev time.Time
	for i, p := range points {
		day, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return &weather.MalformedResponseError{Provider: provider, Reason: fmt.Sprintf("daily point %d has date %q", i, p.Date), Err: err}
		}
		if i > 0 && !day.Equal(prev.AddDate(0, 0, 1)) {
			return &weather.MalformedResponseError{
				Provider: provider,
				Reason:   fmt.Sprintf("daily point %d is %s, want the day after %s", i, p.Date, prev.Format("2006-01-02")),
			}
		}
		prev = day
	}
	return nil
}

func coords(q weather.Query) string {
	return fmt.Sprintf("%.4f,%.4f", q.Lat, q.Lon)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// redact drops everything but scheme, host and path, so API keys passed as
// query parameters never reach the logs.
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host + u.Path
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
