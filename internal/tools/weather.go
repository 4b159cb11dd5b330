package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/soyeahso/kairos/internal/version"
)

const defaultWeatherBaseURL = "https://api.openweathermap.org"

// WeatherTool looks up current conditions through the OpenWeatherMap API.
type WeatherTool struct {
	apiKey     string
	units      string
	baseURL    string
	httpClient *http.Client
}

// NewWeatherTool creates the OpenWeatherMap tool. units is "metric",
// "imperial" or "standard".
func NewWeatherTool(apiKey, units string) *WeatherTool {
	if units == "" {
		units = "metric"
	}
	return &WeatherTool{
		apiKey:     apiKey,
		units:      units,
		baseURL:    defaultWeatherBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (w *WeatherTool) Name() string { return "OpenWeatherMap" }

func (w *WeatherTool) Description() string {
	return "Fetches the current weather for a location from OpenWeatherMap. " +
		"Input is a location string such as \"Lucknow\" or \"London,GB\"."
}

func (w *WeatherTool) InputSchema() string {
	return `{"type":"object","properties":{"city":{"type":"string","description":"City name, optionally with a country code (e.g. London,GB)"}},"required":["city"]}`
}

func (w *WeatherTool) Execute(ctx context.Context, args string) (string, error) {
	city, err := stringArg(args, "city")
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", w.apiKey)
	q.Set("units", w.units)
	endpoint := w.baseURL + "/data/2.5/weather?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openweathermap request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading openweathermap response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("openweathermap: %s (%d)", apiErr.Message, resp.StatusCode)
	}

	var data owmResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("parsing openweathermap response: %w", err)
	}
	return data.format(city, w.units), nil
}

type owmResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
}

func (r owmResponse) format(query, units string) string {
	tempUnit, speedUnit := "°C", "m/s"
	switch units {
	case "imperial":
		tempUnit, speedUnit = "°F", "mph"
	case "standard":
		tempUnit = "K"
	}

	place := r.Name
	if place == "" {
		place = query
	}
	if r.Sys.Country != "" {
		place += ", " + r.Sys.Country
	}

	status := "unknown"
	if len(r.Weather) > 0 {
		descs := make([]string, len(r.Weather))
		for i, w := range r.Weather {
			descs[i] = w.Description
		}
		status = strings.Join(descs, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "In %s, the current weather is as follows:\n", place)
	fmt.Fprintf(&b, "Detailed status: %s\n", status)
	fmt.Fprintf(&b, "Wind speed: %.1f %s, direction: %d°\n", r.Wind.Speed, speedUnit, r.Wind.Deg)
	fmt.Fprintf(&b, "Humidity: %d%%\n", r.Main.Humidity)
	b.WriteString("Temperature:\n")
	fmt.Fprintf(&b, "  - Current: %.1f%s\n", r.Main.Temp, tempUnit)
	fmt.Fprintf(&b, "  - High: %.1f%s\n", r.Main.TempMax, tempUnit)
	fmt.Fprintf(&b, "  - Low: %.1f%s\n", r.Main.TempMin, tempUnit)
	fmt.Fprintf(&b, "  - Feels like: %.1f%s\n", r.Main.FeelsLike, tempUnit)
	fmt.Fprintf(&b, "Cloud cover: %d%%", r.Clouds.All)
	return b.String()
}
