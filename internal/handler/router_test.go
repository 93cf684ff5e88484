package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	modelchat "github.com/zhouzirui/beacon/internal/model/chat"
	"github.com/zhouzirui/beacon/internal/model/persona"
	"github.com/zhouzirui/beacon/internal/observe"
	chatService "github.com/zhouzirui/beacon/internal/service/chat"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	registry := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	require.NoError(t, err)
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	require.NoError(t, err)

	personas := persona.NewRegistry(persona.Seed())
	chatSvc, err := chatService.NewService(chatService.Deps{
		Personas: personas,
		Completer: chatService.CompleterFunc(func(context.Context, string, []modelchat.Turn, string) (string, error) {
			return "ok", nil
		}),
		Metrics: metrics,
	}, "ARK")
	require.NoError(t, err)

	return NewRouter(personas, chatSvc, Options{
		Metrics:        metrics,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	return resp
}

func TestRouterServesEndpoints(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusOK, get(t, r, "/").Code)
	assert.Equal(t, http.StatusOK, get(t, r, "/theme.css?persona=RAY").Code)
	assert.Equal(t, http.StatusOK, get(t, r, "/api/personas").Code)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/api/session/unknown").Code)
}

func TestRouterHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(`{"personaId":"BOLT"}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusCreated, resp.Code)

	health := get(t, r, "/healthz")
	require.Equal(t, http.StatusOK, health.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(health.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["sessions"])

	metrics := get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "beacon_chat_active_sessions")
	assert.Contains(t, metrics.Body.String(), "beacon_http_request_duration")
}
