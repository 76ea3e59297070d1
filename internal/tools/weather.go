package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

// GetWeather reports current conditions for a place.
type GetWeather struct {
	geocoder *Geocoder
	client   *resty.Client
}

func NewGetWeather(geocoder *Geocoder, weatherBaseURL string) *GetWeather {
	return &GetWeather{
		geocoder: geocoder,
		client:   resty.New().SetBaseURL(weatherBaseURL).SetTimeout(8 * time.Second),
	}
}

func (t *GetWeather) Name() string { return "get_weather" }

func (t *GetWeather) Definition() map[string]interface{} {
	return funcDef("get_weather",
		"Get the current weather for a city or place.",
		map[string]interface{}{
			"location": strProp("City or place name."),
		},
		"location")
}

func (t *GetWeather) Execute(ctx context.Context, args map[string]interface{}, _ *Context) (string, error) {
	location := argString(args, "location")
	if location == "" {
		return "", fmt.Errorf("location is required")
	}

	lat, lon, name, err := t.geocoder.Resolve(ctx, location)
	if err != nil {
		return "", err
	}

	var body forecastResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParam("latitude", lat).
		SetQueryParam("longitude", lon).
		SetQueryParam("current", "temperature_2m,weather_code,wind_speed_10m").
		SetResult(&body).
		Get("/v1/forecast")
	if err != nil {
		return "", fmt.Errorf("forecast request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("forecast request: status %d", resp.StatusCode())
	}

	return fmt.Sprintf("Weather in %s: %s, %.0f degrees Celsius, wind %.0f km/h.",
		shortName(name), describeWeatherCode(body.Current.WeatherCode),
		body.Current.Temperature, body.Current.WindSpeed), nil
}

func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 3:
		return "partly cloudy"
	case code <= 48:
		return "foggy"
	case code <= 57:
		return "drizzle"
	case code <= 67:
		return "rain"
	case code <= 77:
		return "snow"
	case code <= 82:
		return "rain showers"
	case code <= 86:
		return "snow showers"
	default:
		return "thunderstorm"
	}
}
