package httpapi

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-gateway/internal/store"
	"github.com/i474232898/weather-gateway/internal/weather"
)

type favoriteRequest struct {
	Name    string  `json:"name" validate:"required,max=100"`
	Country string  `json:"country" validate:"max=100"`
	State   string  `json:"state" validate:"max=100"`
	Lat     float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon     float64 `json:"lon" validate:"gte=-180,lte=180"`
}

func (r favoriteRequest) city() weather.CityCandidate {
	return weather.CityCandidate{
		Name:    r.Name,
		Country: r.Country,
		State:   r.State,
		Lat:     r.Lat,
		Lon:     r.Lon,
	}
}

func registerFavoriteRoutes(api fiber.Router, st Store) {
	api.Get("/favorites", func(c *fiber.Ctx) error {
		favorites, err := st.ListFavorites(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list favorites")
		}
		return success(c, favorites)
	})

	api.Post("/favorites", func(c *fiber.Ctx) error {
		var req favoriteRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		favorite, err := st.AddFavorite(c.UserContext(), req.city())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to add favorite")
		}
		return success(c, favorite)
	})

	// DELETE identifies the city by query parameters.
	api.Delete("/favorites", func(c *fiber.Ctx) error {
		req := favoriteRequest{
			Name:    c.Query("name"),
			Country: c.Query("country"),
		}
		for key, dst := range map[string]*float64{"lat": &req.Lat, "lon": &req.Lon} {
			if raw := c.Query(key); raw != "" {
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
				}
				*dst = v
			}
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		err := st.RemoveFavorite(c.UserContext(), req.city())
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "favorite not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to remove favorite")
		}
		return success(c, nil)
	})
}
