// Package location maps human-readable city names to provider location
// identifiers and well-known coordinates.
package location

import "strings"

// City is one entry of the static city table.
type City struct {
	Name     string // local-language name
	Alias    string // English name
	ID       string // QWeather location id
	Province string
	Country  string
	Lat      float64
	Lon      float64
}

// cities is read-only after package initialization.
var cities = []City{
	{Name: "北京", Alias: "Beijing", ID: "101010100", Province: "北京市", Country: "中国", Lat: 39.90, Lon: 116.41},
	{Name: "上海", Alias: "Shanghai", ID: "101020100", Province: "上海市", Country: "中国", Lat: 31.23, Lon: 121.47},
	{Name: "广州", Alias: "Guangzhou", ID: "101280101", Province: "广东省", Country: "中国", Lat: 23.13, Lon: 113.26},
	{Name: "深圳", Alias: "Shenzhen", ID: "101280601", Province: "广东省", Country: "中国", Lat: 22.54, Lon: 114.06},
	{Name: "成都", Alias: "Chengdu", ID: "101270101", Province: "四川省", Country: "中国", Lat: 30.57, Lon: 104.07},
	{Name: "杭州", Alias: "Hangzhou", ID: "101210101", Province: "浙江省", Country: "中国", Lat: 30.27, Lon: 120.16},
	{Name: "武汉", Alias: "Wuhan", ID: "101200101", Province: "湖北省", Country: "中国", Lat: 30.59, Lon: 114.31},
	{Name: "西安", Alias: "Xi'an", ID: "101110101", Province: "陕西省", Country: "中国", Lat: 34.34, Lon: 108.94},
	{Name: "南京", Alias: "Nanjing", ID: "101190101", Province: "江苏省", Country: "中国", Lat: 32.06, Lon: 118.80},
	{Name: "天津", Alias: "Tianjin", ID: "101030100", Province: "天津市", Country: "中国", Lat: 39.13, Lon: 117.20},
	{Name: "重庆", Alias: "Chongqing", ID: "101040100", Province: "重庆市", Country: "中国", Lat: 29.56, Lon: 106.55},
	{Name: "苏州", Alias: "Suzhou", ID: "101190401", Province: "江苏省", Country: "中国", Lat: 31.30, Lon: 120.59},
	// "Fuzhou" usually means 福州, so 抚州 has no English alias.
	{Name: "抚州", ID: "101240401", Province: "江西省", Country: "中国", Lat: 27.95, Lon: 116.36},
}

var byName = func() map[string]City {
	m := make(map[string]City, len(cities)*2)
	for _, c := range cities {
		m[c.Name] = c
		if c.Alias != "" {
			m[strings.ToLower(c.Alias)] = c
		}
	}
	return m
}()

// Lookup finds a city by exact local name or case-insensitive English alias.
func Lookup(name string) (City, bool) {
	name = strings.TrimSpace(name)
	if c, ok := byName[name]; ok {
		return c, true
	}
	c, ok := byName[strings.ToLower(name)]
	return c, ok
}

// Resolve returns the provider location id for name. ok is false when the
// city is unknown and the caller should send raw coordinates instead.
func Resolve(name string) (id string, ok bool) {
	c, ok := Lookup(name)
	if !ok {
		return "", false
	}
	return c.ID, true
}

// Coordinates returns the well-known coordinates of a city.
func Coordinates(name string) (lat, lon float64, ok bool) {
	c, ok := Lookup(name)
	if !ok {
		return 0, 0, false
	}
	return c.Lat, c.Lon, true
}

// Search returns every city whose name contains keyword, whose name is
// contained in keyword, or whose English alias contains keyword.
func Search(keyword string) []City {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil
	}
	lower := strings.ToLower(keyword)

	var out []City
	for _, c := range cities {
		alias := strings.ToLower(c.Alias)
		if strings.Contains(c.Name, keyword) || strings.Contains(keyword, c.Name) ||
			(alias != "" && strings.Contains(alias, lower)) {
			out = append(out, c)
		}
	}
	return out
}
