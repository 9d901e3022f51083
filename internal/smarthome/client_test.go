package smarthome

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/resilience"
)

func testConfig(url string) config.SmartHomeConfig {
	return config.SmartHomeConfig{
		URL:              url,
		RequestTimeout:   5 * time.Second,
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		MaxRetries:       3,
		RetryBaseDelay:   time.Millisecond,
	}
}

func TestClient_Devices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/devices" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode([]Device{
			{ID: "d1", Name: "Desk Lamp"},
			{ID: "d2", Name: "Kitchen Bulb 1"},
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	devices, err := c.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devices) != 2 || devices[0].Name != "Desk Lamp" {
		t.Errorf("unexpected devices: %+v", devices)
	}
}

func TestClient_SetDeviceState(t *testing.T) {
	var gotBody State
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/devices/d1" || r.Method != http.MethodPut {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	on := true
	bri := 80
	err := c.SetDeviceState(context.Background(), "d1", State{On: &on, Brightness: &bri})
	if err != nil {
		t.Fatalf("SetDeviceState: %v", err)
	}
	if gotBody.On == nil || !*gotBody.On {
		t.Error("expected on=true in request body")
	}
	if gotBody.Brightness == nil || *gotBody.Brightness != 80 {
		t.Error("expected brightness=80 in request body")
	}
	if gotBody.Color != nil || gotBody.ColorTemp != nil {
		t.Error("unset fields should be omitted from the request body")
	}
}

func TestClient_SetGroupState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/groups/g1/state" || r.Method != http.MethodPut {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(GroupStateResult{Results: []DeviceResult{
			{Device: "Lamp A", Success: true},
			{Device: "Lamp B", Success: false, Error: "unreachable"},
		}})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	on := false
	result, err := c.SetGroupState(context.Background(), "g1", State{On: &on})
	if err != nil {
		t.Fatalf("SetGroupState: %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(result.Results))
	}
	if !result.Results[0].Success || result.Results[1].Success {
		t.Errorf("unexpected results: %+v", result.Results)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode([]Device{{ID: "d1", Name: "Lamp"}})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	devices, err := c.Devices(context.Background())
	if err != nil {
		t.Fatalf("expected recovery after retries, got: %v", err)
	}
	if len(devices) != 1 {
		t.Errorf("got %d devices, want 1", len(devices))
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("server saw %d calls, want 4 (3 failures + 1 success)", got)
	}
	// Successful recovery keeps the breaker closed.
	if c.Breaker().State() != resilience.StateClosed {
		t.Errorf("breaker state = %v, want closed", c.Breaker().State())
	}
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.Devices(context.Background())
	if err == nil {
		t.Fatal("expected error for 404")
	}
	var se *resilience.StatusError
	if !errors.As(err, &se) || se.StatusCode != 404 {
		t.Errorf("expected StatusError 404, got: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want 1 (no retry on 404)", got)
	}
}

func TestClient_BreakerOpensAndFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.FailureThreshold = 4
	c := NewClient(cfg, nil)

	// One failing call makes 4 attempts, crossing the threshold.
	if _, err := c.Devices(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if c.Breaker().State() != resilience.StateOpen {
		t.Fatalf("breaker state = %v, want open", c.Breaker().State())
	}

	before := calls.Load()
	_, err := c.Devices(context.Background())
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("error = %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != before {
		t.Error("open breaker should fail fast without hitting the server")
	}
}
