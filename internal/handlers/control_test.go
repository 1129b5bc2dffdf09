package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sousvide_simulator/internal/models"
	"sousvide_simulator/internal/service"
)

func doJSON(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response not JSON: %v (%s)", err, w.Body.String())
		}
	}
	return w, resp
}

func TestControlReset(t *testing.T) {
	h, services := newTestHandler()
	router := h.InitControlRoutes()

	if err := services.Device.Start(65, models.UnitCelsius, 3600); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	w, resp := doJSON(t, router, http.MethodPost, "/reset", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if resp["status"] != "reset" || resp["state"] != models.StateIdle {
		t.Fatalf("unexpected response: %v", resp)
	}
	if got := services.Device.Snapshot().State(); got != models.StateIdle {
		t.Fatalf("device state = %s, want IDLE", got)
	}

	// Ambient override changes the water temperature it resets to.
	w, resp = doJSON(t, router, http.MethodPost, "/reset", `{"ambient_temp": 30}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp["temperature"].(float64) != 30 {
		t.Fatalf("temperature = %v, want 30", resp["temperature"])
	}
}

func TestControlSetState(t *testing.T) {
	h, services := newTestHandler()
	router := h.InitControlRoutes()

	body := `{"state": "COOKING", "temperature": 64.5, "target_temperature": 65, "timer": 3600, "timer_remaining": 1800}`
	w, resp := doJSON(t, router, http.MethodPost, "/set-state", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if resp["state"] != models.StateCooking || resp["timer_remaining"].(float64) != 1800 {
		t.Fatalf("unexpected response: %v", resp)
	}

	s := services.Device.Snapshot()
	if s.State() != models.StateCooking || s.TemperatureInfo.WaterTemperature != 64.5 {
		t.Fatalf("device not updated: %+v", s)
	}

	w, resp = doJSON(t, router, http.MethodPost, "/set-state", `{"state": "EXPLODED"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp["error"] != "INVALID_STATE" {
		t.Fatalf("error = %v, want INVALID_STATE", resp["error"])
	}
}

func TestControlSetTimeScale(t *testing.T) {
	h, services := newTestHandler()
	router := h.InitControlRoutes()

	w, resp := doJSON(t, router, http.MethodPost, "/set-time-scale", `{"time_scale": 60}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if resp["time_scale"].(float64) != 60 {
		t.Fatalf("unexpected response: %v", resp)
	}
	if got := services.Scenario.TimeScale(); got != 60 {
		t.Fatalf("time scale = %v, want 60", got)
	}

	w, resp = doJSON(t, router, http.MethodPost, "/set-time-scale", `{}`)
	if w.Code != http.StatusBadRequest || resp["error"] != "MISSING_TIME_SCALE" {
		t.Fatalf("status = %d, error = %v", w.Code, resp["error"])
	}

	w, resp = doJSON(t, router, http.MethodPost, "/set-time-scale", `{"time_scale": -5}`)
	if w.Code != http.StatusBadRequest || resp["error"] != "INVALID_TIME_SCALE" {
		t.Fatalf("status = %d, error = %v", w.Code, resp["error"])
	}
}

func TestControlTriggerAndClearError(t *testing.T) {
	h, services := newTestHandler()
	router := h.InitControlRoutes()

	w, resp := doJSON(t, router, http.MethodPost, "/trigger-error", `{"error_type": "haunted"}`)
	if w.Code != http.StatusBadRequest || resp["error"] != "INVALID_ERROR_TYPE" {
		t.Fatalf("status = %d, error = %v", w.Code, resp["error"])
	}

	w, resp = doJSON(t, router, http.MethodPost, "/trigger-error", `{}`)
	if w.Code != http.StatusBadRequest || resp["error"] != "MISSING_ERROR_TYPE" {
		t.Fatalf("status = %d, error = %v", w.Code, resp["error"])
	}

	w, resp = doJSON(t, router, http.MethodPost, "/trigger-error",
		`{"error_type": "network_latency", "latency_ms": 5}`)
	if w.Code != http.StatusOK || resp["status"] != "triggered" {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if services.Scenario.CommandLatency() == 0 {
		t.Fatalf("latency not applied")
	}

	w, resp = doJSON(t, router, http.MethodGet, "/errors", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	active := resp["active_errors"].([]any)
	if len(active) != 1 || active[0] != service.FaultNetworkLatency {
		t.Fatalf("unexpected active errors: %v", active)
	}

	w, resp = doJSON(t, router, http.MethodPost, "/clear-error", `{"error_type": "network_latency"}`)
	if w.Code != http.StatusOK || resp["status"] != "cleared" {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if services.Scenario.CommandLatency() != 0 {
		t.Fatalf("latency still applied after clear")
	}
}

func TestControlGetState(t *testing.T) {
	h, services := newTestHandler()
	router := h.InitControlRoutes()

	if err := services.Device.Start(65, models.UnitCelsius, 3600); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	w, resp := doJSON(t, router, http.MethodGet, "/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp["cooker_id"] != "anova sim-0000000000" || resp["online"] != true {
		t.Fatalf("unexpected response: %v", resp)
	}
	js := resp["job_status"].(map[string]any)
	if js["state"] != models.StatePreheating || js["cook_time_remaining"].(float64) != 3600 {
		t.Fatalf("unexpected job_status: %v", js)
	}
	if resp["time_scale"].(float64) != 1 {
		t.Fatalf("time_scale = %v, want 1", resp["time_scale"])
	}
}

func TestControlGetMessages(t *testing.T) {
	h, services := newTestHandler()
	router := h.InitControlRoutes()

	services.Messages.Record(context.Background(),
		models.DirectionInbound, []byte(`{"command": "CMD_APC_STOP", "requestId": "r1"}`))

	w, resp := doJSON(t, router, http.MethodGet, "/messages?limit=10&direction=inbound", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp["count"].(float64) != 1 {
		t.Fatalf("count = %v, want 1", resp["count"])
	}

	w, resp = doJSON(t, router, http.MethodGet, "/messages?direction=sideways", "")
	if w.Code != http.StatusBadRequest || resp["error"] != "INVALID_DIRECTION" {
		t.Fatalf("status = %d, error = %v", w.Code, resp["error"])
	}

	w, resp = doJSON(t, router, http.MethodGet, "/messages?limit=abc", "")
	if w.Code != http.StatusBadRequest || resp["error"] != "INVALID_LIMIT" {
		t.Fatalf("status = %d, error = %v", w.Code, resp["error"])
	}
}

func TestControlHealth(t *testing.T) {
	h, _ := newTestHandler()
	router := h.InitControlRoutes()

	w, resp := doJSON(t, router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp["status"] != "ok" || resp["service"] != "control-api" {
		t.Fatalf("unexpected response: %v", resp)
	}
	if resp["simulator_state"] != models.StateIdle {
		t.Fatalf("simulator_state = %v", resp["simulator_state"])
	}
}
