package weather

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Number is a JSON value that upstreams send either as a number or as a
// string ("24", "0.0", ""). Unparsable or missing values are left invalid.
type Number struct {
	Value float64
	Valid bool
}

// UnmarshalJSON never fails: anything that is not a number is treated as absent.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		data = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	n.Value, n.Valid = v, true
	return nil
}

// Num builds a valid Number.
func Num(v float64) Number { return Number{Value: v, Valid: true} }

// Float returns the value, defaulting to 0 when absent.
func (n Number) Float() float64 {
	if !n.Valid {
		return 0
	}
	return n.Value
}

// Int returns the value rounded to the nearest integer, 0 when absent.
func (n Number) Int() int {
	return int(math.Round(n.Float()))
}

// Int64 returns the value rounded to the nearest integer, 0 when absent.
func (n Number) Int64() int64 {
	return int64(math.Round(n.Float()))
}

// Ptr returns nil when absent.
func (n Number) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// IntPtr returns nil when absent.
func (n Number) IntPtr() *int {
	if !n.Valid {
		return nil
	}
	v := int(math.Round(n.Value))
	return &v
}

// compassDegrees maps 8-point compass labels to degrees.
var compassDegrees = map[string]int{
	"北": 0, "东北": 45, "东": 90, "东南": 135, "南": 180, "西南": 225, "西": 270, "西北": 315,
	"n": 0, "ne": 45, "e": 90, "se": 135, "s": 180, "sw": 225, "w": 270, "nw": 315,
	"north": 0, "northeast": 45, "east": 90, "southeast": 135,
	"south": 180, "southwest": 225, "west": 270, "northwest": 315,
}

// CompassDegrees converts a compass label to degrees. A trailing "风" is
// ignored; unrecognized labels map to 0.
func CompassDegrees(label string) int {
	key := strings.TrimSuffix(strings.TrimSpace(label), "风")
	key = strings.ToLower(strings.NewReplacer("-", "", " ", "").Replace(key))
	return compassDegrees[key]
}

var compassLabels = [8]string{"北风", "东北风", "东风", "东南风", "南风", "西南风", "西风", "西北风"}

// CompassLabel returns the 8-point label for a bearing in degrees.
func CompassLabel(deg int) string {
	deg = ((deg % 360) + 360) % 360
	return compassLabels[((deg+22)/45)%8]
}

// beaufortLimits holds the upper bound in m/s of Beaufort forces 0-11.
var beaufortLimits = [...]float64{0.3, 1.6, 3.4, 5.5, 8.0, 10.8, 13.9, 17.2, 20.8, 24.5, 28.5, 32.7}

// BeaufortLabel returns the Beaufort force for a wind speed in m/s.
func BeaufortLabel(speed float64) string {
	for force, limit := range beaufortLimits {
		if speed < limit {
			return strconv.Itoa(force)
		}
	}
	return "12"
}

// KphToMS converts km/h to m/s.
func KphToMS(kph float64) float64 { return kph / 3.6 }

// MetersToKm converts a visibility in meters to kilometers.
func MetersToKm(m float64) float64 { return m / 1000 }

// timestampLayouts lists the datetime shapes providers use, offset-aware first.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp converts an upstream timestamp into epoch seconds. It accepts
// epoch seconds as a string, offset-aware datetimes and naive local datetimes,
// which are interpreted in loc.
func ParseTimestamp(s string, loc *time.Location) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		return epoch, true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), true
		}
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}

// ClockString normalizes "06:45", "6:45 AM" or "06:45 PM" to 24h "HH:MM".
// Unparsable values ("No moonrise") yield "".
func ClockString(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "03:04 PM", "3:04 PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04")
		}
	}
	return ""
}

// ClockFromEpoch formats an epoch second as "HH:MM" in loc.
func ClockFromEpoch(epoch int64, loc *time.Location) string {
	if epoch == 0 {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(epoch, 0).In(loc).Format("15:04")
}

// Epoch returns a pointer to epoch, or nil when ok is false.
func Epoch(epoch int64, ok bool) *int64 {
	if !ok {
		return nil
	}
	return &epoch
}

var moonPhaseNames = [8]string{"新月", "蛾眉月", "上弦月", "盈凸月", "满月", "亏凸月", "下弦月", "残月"}

// MoonPhaseByIndex returns the name and icon code of phase i (0 new moon,
// 4 full moon), wrapping around the eight phases.
func MoonPhaseByIndex(i int) (name, icon string) {
	i = ((i % 8) + 8) % 8
	return moonPhaseNames[i], strconv.Itoa(800 + i)
}

// MoonPhaseFromFraction maps a lunation fraction in [0,1] (0 and 1 new moon,
// 0.5 full moon) onto the eight named phases.
func MoonPhaseFromFraction(f float64) (name, icon string) {
	return MoonPhaseByIndex(int(math.Round(f * 8)))
}

// pm25Breakpoints is the US EPA PM2.5 breakpoint table (µg/m³ → AQI).
var pm25Breakpoints = []struct {
	cLo, cHi float64
	iLo, iHi float64
}{
	{0.0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 350.4, 301, 400},
	{350.5, 500.4, 401, 500},
}

// PM25ToAQI converts a PM2.5 concentration to the US AQI scale.
func PM25ToAQI(pm float64) int {
	if pm <= 0 {
		return 0
	}
	c := math.Floor(pm*10) / 10
	for _, bp := range pm25Breakpoints {
		if c <= bp.cHi {
			if c < bp.cLo {
				c = bp.cLo
			}
			return int(math.Round((bp.iHi-bp.iLo)/(bp.cHi-bp.cLo)*(c-bp.cLo) + bp.iLo))
		}
	}
	return 500
}
