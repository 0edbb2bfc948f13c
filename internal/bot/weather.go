package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/MariDenig/chatBot-hist/internal/log"
)

// openWeatherURL is the current-weather endpoint of OpenWeatherMap.
const openWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// weatherTimeout bounds one lookup, both attempts included.
const weatherTimeout = 10 * time.Second

// User-facing replies for weather lookup failures, matching the wording
// the frontend displays.
const (
	weatherNotConfigured = "O serviço de clima não está configurado no momento."
	weatherUnavailable   = "Não foi possível obter as informações do clima no momento. Tente novamente mais tarde."
	weatherBadKey        = "O serviço de clima está temporariamente indisponível. Chave de API inválida."
	weatherRateLimited   = "Limite de requisições ao serviço de clima excedido. Tente novamente em alguns minutos."
)

// WeatherClient looks up current weather conditions on OpenWeatherMap.
type WeatherClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  log.Logger
}

// NewWeatherClient creates a weather client. An empty apiKey is allowed;
// lookups then return a not-configured reply.
func NewWeatherClient(apiKey string, logger log.Logger) *WeatherClient {
	return &WeatherClient{
		apiKey:  apiKey,
		baseURL: openWeatherURL,
		client:  &http.Client{Timeout: weatherTimeout},
		logger:  logger,
	}
}

// owmResponse is the subset of the OpenWeatherMap payload we render.
type owmResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// Report returns a user-facing weather report for location. Lookup
// failures are translated into user-facing Portuguese messages; the
// returned string is always presentable.
func (w *WeatherClient) Report(ctx context.Context, location string) string {
	if w.apiKey == "" {
		return weatherNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, weatherTimeout)
	defer cancel()

	// Brazilian cities first; retry with the bare name for anywhere else.
	data, status, err := w.fetch(ctx, location+", BR")
	if err != nil || status != http.StatusOK {
		data, status, err = w.fetch(ctx, location)
	}

	switch {
	case err != nil:
		w.logger.Warn("weather lookup failed", "location", location, "error", err)
		return weatherUnavailable
	case status == http.StatusNotFound:
		return fmt.Sprintf("Não foi possível encontrar informações sobre o clima para %q. "+
			"Verifique o nome da cidade e tente novamente.", location)
	case status == http.StatusUnauthorized:
		w.logger.Error("OpenWeatherMap rejected the API key")
		return weatherBadKey
	case status == http.StatusTooManyRequests:
		return weatherRateLimited
	case status != http.StatusOK:
		w.logger.Warn("unexpected weather response", "location", location, "status", status)
		return weatherUnavailable
	}

	description := ""
	if len(data.Weather) > 0 {
		description = data.Weather[0].Description
	}

	return fmt.Sprintf("Clima em %s:\n"+
		"Temperatura: %.1f°C\n"+
		"Sensação térmica: %.1f°C\n"+
		"Condição: %s\n"+
		"Umidade: %d%%\n"+
		"Velocidade do vento: %.1f m/s",
		data.Name, data.Main.Temp, data.Main.FeelsLike, description, data.Main.Humidity, data.Wind.Speed)
}

// fetch performs one lookup and decodes the body on success.
func (w *WeatherClient) fetch(ctx context.Context, query string) (*owmResponse, int, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("appid", w.apiKey)
	params.Set("units", "metric")
	params.Set("lang", "pt_br")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building weather request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching weather: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var data owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decoding weather response: %w", err)
	}
	return &data, resp.StatusCode, nil
}
