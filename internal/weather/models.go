package weather

// Canonical, provider-agnostic weather types. Optional measurements are
// pointers so that "not reported" stays distinguishable from a measured zero.

// Wind groups the wind fields reported by every provider.
type Wind struct {
	Deg   int     `json:"deg"`
	Dir   string  `json:"dir"`   // compass label, e.g. "东南风" or "SE"
	Scale string  `json:"scale"` // Beaufort scale label, e.g. "3" or "1-2"
	Speed float64 `json:"speed"` // m/s
}

// CurrentConditions is the normalized observation for a location.
type CurrentConditions struct {
	City        string   `json:"city"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	Temp        float64  `json:"temp"`
	FeelsLike   float64  `json:"feelsLike"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Wind        Wind     `json:"wind"`
	Humidity    int      `json:"humidity"`
	Pressure    float64  `json:"pressure"`   // hPa
	Visibility  float64  `json:"visibility"` // km
	Precip      float64  `json:"precip"`     // mm
	Cloud       *int     `json:"cloud,omitempty"`
	Dew         *float64 `json:"dew,omitempty"`
	Timestamp   int64    `json:"timestamp"` // epoch seconds
	AQI         *int     `json:"aqi,omitempty"`
}

// HourlyPoint is a single hour of a 24-hour forecast.
type HourlyPoint struct {
	City        string   `json:"city"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	Timestamp   int64    `json:"timestamp"`
	Temp        float64  `json:"temp"`
	FeelsLike   float64  `json:"feelsLike"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Wind        Wind     `json:"wind"`
	Humidity    int      `json:"humidity"`
	Pressure    float64  `json:"pressure"`
	Visibility  float64  `json:"visibility"`
	Precip      float64  `json:"precip"`
	Cloud       *int     `json:"cloud,omitempty"`
	Dew         *float64 `json:"dew,omitempty"`
	Pop         float64  `json:"pop"` // probability of precipitation, 0-100
}

// DailyPoint is a single day of a 7-day forecast.
type DailyPoint struct {
	City          string   `json:"city"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`
	Date          string   `json:"date"` // YYYY-MM-DD
	TempMin       float64  `json:"tempMin"`
	TempMax       float64  `json:"tempMax"`
	TextDay       string   `json:"textDay"`
	IconDay       string   `json:"iconDay"`
	TextNight     string   `json:"textNight"`
	IconNight     string   `json:"iconNight"`
	WindDay       Wind     `json:"windDay"`
	WindNight     Wind     `json:"windNight"`
	Humidity      int      `json:"humidity"`
	Pressure      float64  `json:"pressure"`
	Visibility    float64  `json:"visibility"`
	Precip        float64  `json:"precip"`
	Cloud         *int     `json:"cloud,omitempty"`
	UVIndex       *int     `json:"uvIndex,omitempty"`
	Sunrise       string   `json:"sunrise,omitempty"`
	Sunset        string   `json:"sunset,omitempty"`
	Moonrise      string   `json:"moonrise,omitempty"`
	Moonset       string   `json:"moonset,omitempty"`
	MoonPhase     string   `json:"moonPhase,omitempty"`
	MoonPhaseIcon string   `json:"moonPhaseIcon,omitempty"`
	Pop           float64  `json:"pop"`
}

// Alert is an active weather warning. Start and End are nil when the
// upstream did not report them.
type Alert struct {
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Event       string  `json:"event"`
	Description string  `json:"description"`
	Start       *int64  `json:"start,omitempty"`
	End         *int64  `json:"end,omitempty"`
	Level       string  `json:"level"`
	Tags        string  `json:"tags"`
}

// CityCandidate is a location search hit. The same shape is used by the
// favorites store.
type CityCandidate struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Query identifies the location a weather operation is about.
type Query struct {
	Lat  float64
	Lon  float64
	City string
}

// Forecast lengths every provider must deliver.
const (
	HourlyPoints = 24
	DailyPoints  = 7
)
