package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-gateway/internal/store"
)

// preferencesPatch updates only the fields that are present.
type preferencesPatch struct {
	DefaultCity     *string `json:"defaultCity" validate:"omitempty,min=1,max=100"`
	TemperatureUnit *string `json:"temperatureUnit" validate:"omitempty,oneof=C F"`
	WindSpeedUnit   *string `json:"windSpeedUnit" validate:"omitempty,oneof=m/s km/h mph"`
	ShowCurrentCard *bool   `json:"showCurrentCard"`
	ShowLineChart   *bool   `json:"showLineChart"`
	ShowBarChart    *bool   `json:"showBarChart"`
	ShowGaugeCard   *bool   `json:"showGaugeCard"`
	ShowAlertsCard  *bool   `json:"showAlertsCard"`
	ShowAIAssistant *bool   `json:"showAiAssistant"`
}

func (p preferencesPatch) apply(cur store.Preferences) store.Preferences {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setString(&cur.DefaultCity, p.DefaultCity)
	setString(&cur.TemperatureUnit, p.TemperatureUnit)
	setString(&cur.WindSpeedUnit, p.WindSpeedUnit)
	setBool(&cur.ShowCurrentCard, p.ShowCurrentCard)
	setBool(&cur.ShowLineChart, p.ShowLineChart)
	setBool(&cur.ShowBarChart, p.ShowBarChart)
	setBool(&cur.ShowGaugeCard, p.ShowGaugeCard)
	setBool(&cur.ShowAlertsCard, p.ShowAlertsCard)
	setBool(&cur.ShowAIAssistant, p.ShowAIAssistant)
	return cur
}

func registerPreferenceRoutes(api fiber.Router, st Store) {
	api.Get("/preferences", func(c *fiber.Ctx) error {
		prefs, err := st.GetPreferences(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load preferences")
		}
		return success(c, prefs)
	})

	api.Put("/preferences", func(c *fiber.Ctx) error {
		var patch preferencesPatch
		if err := c.BodyParser(&patch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(patch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		saved, err := st.UpdatePreferences(c.UserContext(), patch.apply)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to save preferences")
		}
		return success(c, saved)
	})
}
