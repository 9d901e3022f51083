package smarthome

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/httpkit"
	"github.com/hearthd/hearth/internal/resilience"
)

// Client is the smart-home REST API client. All calls flow through a
// shared retrier and circuit breaker so a flapping hub degrades into
// fast failures instead of piled-up timeouts.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retrier    *resilience.Retrier
	logger     *slog.Logger
}

// NewClient creates a client from configuration.
func NewClient(cfg config.SmartHomeConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		RecoveryTimeout:  cfg.RecoveryTimeout,
		Logger:           logger,
	})
	return &Client{
		baseURL: cfg.URL,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(cfg.RequestTimeout),
		),
		retrier: resilience.NewRetrier(resilience.RetrierConfig{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay,
			Breaker:    breaker,
			Logger:     logger,
		}),
		logger: logger,
	}
}

// Breaker exposes the circuit breaker, mainly for health reporting.
func (c *Client) Breaker() *resilience.Breaker {
	return c.retrier.Breaker()
}

// Devices retrieves all devices.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := c.get(ctx, "/devices", &devices); err != nil {
		return nil, fmt.Errorf("get devices: %w", err)
	}
	return devices, nil
}

// Rooms retrieves all rooms with their devices.
func (c *Client) Rooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.get(ctx, "/rooms", &rooms); err != nil {
		return nil, fmt.Errorf("get rooms: %w", err)
	}
	return rooms, nil
}

// Groups retrieves all device groups.
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := c.get(ctx, "/groups", &groups); err != nil {
		return nil, fmt.Errorf("get groups: %w", err)
	}
	return groups, nil
}

// SetDeviceState applies a partial state update to one device.
func (c *Client) SetDeviceState(ctx context.Context, deviceID string, state State) error {
	c.logger.Info("setting device state", "device_id", deviceID, "state", state)
	if err := c.put(ctx, "/devices/"+deviceID, state, nil); err != nil {
		return fmt.Errorf("set device %s state: %w", deviceID, err)
	}
	return nil
}

// SetGroupState applies a state update to every device in a group via
// the dedicated group endpoint, returning the per-device outcomes.
func (c *Client) SetGroupState(ctx context.Context, groupID string, state State) (*GroupStateResult, error) {
	c.logger.Info("setting group state", "group_id", groupID, "state", state)
	var result GroupStateResult
	if err := c.put(ctx, "/groups/"+groupID+"/state", state, &result); err != nil {
		return nil, fmt.Errorf("set group %s state: %w", groupID, err)
	}
	return &result, nil
}

// get performs a GET request with retry and circuit breaking.
func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.retrier.Do(ctx, "GET "+path, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, path, nil, result)
	})
}

// put performs a PUT request with retry and circuit breaking.
func (c *Client) put(ctx context.Context, path string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return c.retrier.Do(ctx, "PUT "+path, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPut, path, body, result)
	})
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, result any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	// Drain and close to ensure connection reuse even when result is nil.
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &resilience.StatusError{
			StatusCode: resp.StatusCode,
			Body:       httpkit.ReadErrorBody(resp.Body, 512),
		}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
