package weather

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/i474232898/weather-gateway/internal/metrics"
)

// Source values reported in Result.Source.
const (
	SourceSynthetic = "synthetic"
)

// Result wraps a canonical value with diagnostics about where it came from.
type Result[T any] struct {
	Data     T
	Degraded bool   // true when a live call failed and synthetic data was substituted
	Source   string // provider name or SourceSynthetic
}

// Options controls provider selection.
type Options struct {
	ForceMock    bool // always serve synthetic data
	ForceRealAPI bool // call the provider even when it reports missing credentials
}

// Gateway answers weather queries from the configured provider and falls back
// to synthetic data on any provider failure. Its weather operations never fail.
type Gateway struct {
	provider Provider
	fallback Fallback
	opts     Options
	logger   *zap.Logger
}

// NewGateway creates a Gateway. provider may be nil, which means mock only.
func NewGateway(provider Provider, fallback Fallback, opts Options, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		provider: provider,
		fallback: fallback,
		opts:     opts,
		logger:   logger.Named("gateway"),
	}
}

// live reports whether the provider should be attempted at all.
func (g *Gateway) live() bool {
	if g.opts.ForceMock || g.provider == nil {
		return false
	}
	if g.opts.ForceRealAPI {
		return true
	}
	if ca, ok := g.provider.(CredentialAware); ok {
		return ca.HasCredentials()
	}
	return true
}

// ProviderName returns the configured provider, or SourceSynthetic in mock mode.
func (g *Gateway) ProviderName() string {
	if !g.live() {
		return SourceSynthetic
	}
	return g.provider.Name()
}

// execute runs call once against the provider and substitutes synthetic data
// on failure.
func execute[T any](ctx context.Context, g *Gateway, op string, q Query,
	call func(Provider, context.Context, Query) (T, error), synth func(Query) T) Result[T] {
	if !g.live() {
		g.logger.Debug("serving synthetic data", zap.String("operation", op), zap.String("city", q.City))
		return Result[T]{Data: synth(q), Source: SourceSynthetic}
	}

	data, err := call(g.provider, ctx, q)
	if err == nil {
		return Result[T]{Data: data, Source: g.provider.Name()}
	}

	reason := FailureReason(err)
	metrics.RecordFallback(op, reason)
	g.logger.Warn("provider call failed, falling back to synthetic data",
		zap.String("provider", g.provider.Name()),
		zap.String("operation", op),
		zap.String("city", q.City),
		zap.Float64("lat", q.Lat),
		zap.Float64("lon", q.Lon),
		zap.String("reason", reason),
		zap.Error(err))
	return Result[T]{Data: synth(q), Degraded: true, Source: SourceSynthetic}
}

// Current returns current conditions for q.
func (g *Gateway) Current(ctx context.Context, q Query) Result[CurrentConditions] {
	return execute(ctx, g, "current", q, Provider.Current, g.fallback.Current)
}

// Hourly returns the 24-hour forecast for q.
func (g *Gateway) Hourly(ctx context.Context, q Query) Result[[]HourlyPoint] {
	return execute(ctx, g, "hourly", q, Provider.Hourly, g.fallback.Hourly)
}

// Daily returns the 7-day forecast for q.
func (g *Gateway) Daily(ctx context.Context, q Query) Result[[]DailyPoint] {
	return execute(ctx, g, "daily", q, Provider.Daily, g.fallback.Daily)
}

// Alerts returns active alerts for q, possibly none.
func (g *Gateway) Alerts(ctx context.Context, q Query) Result[[]Alert] {
	res := execute(ctx, g, "alerts", q, Provider.Alerts, g.fallback.Alerts)
	if res.Data == nil {
		res.Data = []Alert{}
	}
	return res
}

// SearchCities looks up cities by keyword. A blank keyword is the only error
// this gateway reports to callers.
func (g *Gateway) SearchCities(ctx context.Context, keyword string) (Result[[]CityCandidate], error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return Result[[]CityCandidate]{}, &InputError{Field: "keyword", Reason: "must not be blank"}
	}

	var searcher CitySearcher
	if g.live() {
		searcher, _ = g.provider.(CitySearcher)
	}
	if searcher == nil {
		return Result[[]CityCandidate]{Data: g.fallback.SearchCities(keyword), Source: SourceSynthetic}, nil
	}

	search := func(_ Provider, ctx context.Context, q Query) ([]CityCandidate, error) {
		return searcher.SearchCities(ctx, q.City)
	}
	synth := func(q Query) []CityCandidate { return g.fallback.SearchCities(q.City) }

	res := execute(ctx, g, "search", Query{City: keyword}, search, synth)
	if res.Data == nil {
		res.Data = []CityCandidate{}
	}
	return res, nil
}

// WarmUp prepares provider state such as signed tokens. Failures are logged
// only; the next request will retry.
func (g *Gateway) WarmUp(ctx context.Context) {
	if !g.live() {
		return
	}
	w, ok := g.provider.(Warmer)
	if !ok {
		return
	}
	if err := w.WarmUp(ctx); err != nil {
		g.logger.Warn("provider warm-up failed", zap.String("provider", g.provider.Name()), zap.Error(err))
	}
}
