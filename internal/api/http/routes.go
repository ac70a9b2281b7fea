package httpapi

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-gateway/internal/store"
	"github.com/i474232898/weather-gateway/internal/weather"
)

const (
	headerDegraded = "X-Weather-Degraded"
	headerSource   = "X-Weather-Source"
)

var validate = validator.New()

// Store persists favorites and preferences.
type Store interface {
	ListFavorites(ctx context.Context) ([]store.Favorite, error)
	AddFavorite(ctx context.Context, city weather.CityCandidate) (store.Favorite, error)
	RemoveFavorite(ctx context.Context, city weather.CityCandidate) error
	GetPreferences(ctx context.Context) (store.Preferences, error)
	UpdatePreferences(ctx context.Context, fn func(store.Preferences) store.Preferences) (store.Preferences, error)
}

// Locator finds coordinates for a city name.
type Locator interface {
	Locate(ctx context.Context, city string) (lat, lon float64, err error)
}

// Deps are the collaborators the routes need.
type Deps struct {
	Gateway *weather.Gateway
	Store   Store
	Locator Locator
	Service string
	Version string
}

// apiResponse is the envelope around every JSON body.
type apiResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

func success(c *fiber.Ctx, data any) error {
	return c.JSON(apiResponse{
		Code:      fiber.StatusOK,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

// ErrorHandler renders errors in the response envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(apiResponse{
		Code:      code,
		Message:   err.Error(),
		Timestamp: time.Now().UnixMilli(),
	})
}

// weatherResult writes res with its provenance headers.
func weatherResult[T any](c *fiber.Ctx, res weather.Result[T]) error {
	c.Set(headerDegraded, strconv.FormatBool(res.Degraded))
	c.Set(headerSource, res.Source)
	return success(c, res.Data)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	gw := deps.Gateway

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return success(c, fiber.Map{
			"status":   "UP",
			"service":  deps.Service,
			"version":  deps.Version,
			"provider": gw.ProviderName(),
		})
	})

	w := api.Group("/weather")

	w.Get("/current", func(c *fiber.Ctx) error {
		q, err := resolveQuery(c, deps.Locator)
		if err != nil {
			return err
		}
		return weatherResult(c, gw.Current(c.UserContext(), q))
	})

	w.Get("/forecast/hourly", func(c *fiber.Ctx) error {
		q, err := resolveQuery(c, deps.Locator)
		if err != nil {
			return err
		}
		return weatherResult(c, gw.Hourly(c.UserContext(), q))
	})

	w.Get("/forecast/daily", func(c *fiber.Ctx) error {
		q, err := resolveQuery(c, deps.Locator)
		if err != nil {
			return err
		}
		return weatherResult(c, gw.Daily(c.UserContext(), q))
	})

	w.Get("/alerts", func(c *fiber.Ctx) error {
		q, err := resolveQuery(c, deps.Locator)
		if err != nil {
			return err
		}
		return weatherResult(c, gw.Alerts(c.UserContext(), q))
	})

	api.Get("/cities/search", func(c *fiber.Ctx) error {
		res, err := gw.SearchCities(c.UserContext(), c.Query("keyword"))
		var inputErr *weather.InputError
		if errors.As(err, &inputErr) {
			return fiber.NewError(fiber.StatusBadRequest, inputErr.Error())
		}
		if err != nil {
			return err
		}
		return weatherResult(c, res)
	})

	registerFavoriteRoutes(api, deps.Store)
	registerPreferenceRoutes(api, deps.Store)
}

// locationQuery holds query parameters for identifying a location.
type locationQuery struct {
	City string   `validate:"omitempty,max=100"`
	Lat  *float64 `validate:"omitempty,gte=-90,lte=90"`
	Lon  *float64 `validate:"omitempty,gte=-180,lte=180"`
}

func parseFloatQuery(c *fiber.Ctx, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
	}
	return &v, nil
}

func parseLocationQuery(c *fiber.Ctx) (locationQuery, error) {
	var (
		q   locationQuery
		err error
	)
	q.City = strings.TrimSpace(c.Query("city"))
	if q.Lat, err = parseFloatQuery(c, "lat"); err != nil {
		return q, err
	}
	if q.Lon, err = parseFloatQuery(c, "lon"); err != nil {
		return q, err
	}
	if err := validate.Struct(q); err != nil {
		return q, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return q, nil
}

// resolveQuery turns the request into a weather.Query, looking up coordinates
// when only a city name was given.
func resolveQuery(c *fiber.Ctx, locator Locator) (weather.Query, error) {
	lq, err := parseLocationQuery(c)
	if err != nil {
		return weather.Query{}, err
	}

	q := weather.Query{City: lq.City}
	if lq.Lat != nil && lq.Lon != nil {
		q.Lat, q.Lon = *lq.Lat, *lq.Lon
		return q, nil
	}
	if lq.City == "" || locator == nil {
		return weather.Query{}, fiber.NewError(fiber.StatusBadRequest, "lat and lon are required unless city is given")
	}

	lat, lon, err := locator.Locate(c.UserContext(), lq.City)
	if err != nil {
		return weather.Query{}, fiber.NewError(fiber.StatusBadRequest, "unknown city "+strconv.Quote(lq.City)+"; pass lat and lon")
	}
	q.Lat, q.Lon = lat, lon
	return q, nil
}
