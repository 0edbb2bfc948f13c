package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MariDenig/chatBot-hist/internal/log"
)

// newTestWeatherClient points the client at a stub OpenWeatherMap.
func newTestWeatherClient(t *testing.T, handler http.HandlerFunc) *WeatherClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewWeatherClient("test-key", log.NewNop())
	c.baseURL = srv.URL
	return c
}

func TestWeatherReport(t *testing.T) {
	t.Parallel()

	t.Run("renders the weather", func(t *testing.T) {
		t.Parallel()

		c := newTestWeatherClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Curitiba, BR", r.URL.Query().Get("q"))
			assert.Equal(t, "metric", r.URL.Query().Get("units"))
			assert.Equal(t, "pt_br", r.URL.Query().Get("lang"))

			w.Header().Set("Content-Type", "application/json")
			_, err := w.Write([]byte(`{
				"name": "Curitiba",
				"main": {"temp": 18.3, "feels_like": 17.1, "humidity": 82},
				"weather": [{"description": "nublado"}],
				"wind": {"speed": 3.6}
			}`))
			require.NoError(t, err)
		})

		report := c.Report(context.Background(), "Curitiba")
		assert.Contains(t, report, "Clima em Curitiba:")
		assert.Contains(t, report, "Temperatura: 18.3°C")
		assert.Contains(t, report, "Sensação térmica: 17.1°C")
		assert.Contains(t, report, "Condição: nublado")
		assert.Contains(t, report, "Umidade: 82%")
		assert.Contains(t, report, "Velocidade do vento: 3.6 m/s")
	})

	t.Run("retries without country suffix", func(t *testing.T) {
		t.Parallel()

		var queries []string
		c := newTestWeatherClient(t, func(w http.ResponseWriter, r *http.Request) {
			queries = append(queries, r.URL.Query().Get("q"))
			if r.URL.Query().Get("q") == "Paris" {
				_, _ = w.Write([]byte(`{"name": "Paris", "main": {"temp": 10}, "weather": [], "wind": {}}`))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		})

		report := c.Report(context.Background(), "Paris")
		assert.Equal(t, []string{"Paris, BR", "Paris"}, queries)
		assert.Contains(t, report, "Clima em Paris:")
	})

	t.Run("unknown city", func(t *testing.T) {
		t.Parallel()

		c := newTestWeatherClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		report := c.Report(context.Background(), "Atlântida")
		assert.Contains(t, report, "Não foi possível encontrar informações sobre o clima")
		assert.Contains(t, report, "Atlântida")
	})

	t.Run("invalid API key", func(t *testing.T) {
		t.Parallel()

		c := newTestWeatherClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		assert.Equal(t, weatherBadKey, c.Report(context.Background(), "Curitiba"))
	})

	t.Run("rate limited", func(t *testing.T) {
		t.Parallel()

		c := newTestWeatherClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		assert.Equal(t, weatherRateLimited, c.Report(context.Background(), "Curitiba"))
	})

	t.Run("no API key configured", func(t *testing.T) {
		t.Parallel()

		c := NewWeatherClient("", log.NewNop())
		assert.Equal(t, weatherNotConfigured, c.Report(context.Background(), "Curitiba"))
	})
}
