// internal/identity/device_gateway.go
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dineshratn/sos-app-sub001/internal/common/config"
	"github.com/dineshratn/sos-app-sub001/internal/common/logger"
)

// DeviceIdentity is what the gateway reports for a valid device token.
type DeviceIdentity struct {
	DeviceID uuid.UUID `json:"device_id"`
	UserID   uuid.UUID `json:"user_id"`
}

// DeviceGateway validates wearable device tokens for auto-triggered
// emergencies.
type DeviceGateway interface {
	ValidateToken(ctx context.Context, token string) (*DeviceIdentity, error)
}

// ErrInvalidDeviceToken is returned when the gateway rejects the token.
var ErrInvalidDeviceToken = fmt.Errorf("invalid device token")

// HTTPDeviceGateway talks to the device registry's validation endpoint.
type HTTPDeviceGateway struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

// NewHTTPDeviceGateway creates a gateway client from config.
func NewHTTPDeviceGateway(cfg config.ServiceClientConfig, log logger.Logger) *HTTPDeviceGateway {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPDeviceGateway{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  log.WithFields(map[string]interface{}{"component": "device_gateway"}),
	}
}

// ValidateToken resolves a device token to its registered device and owner.
func (g *HTTPDeviceGateway) ValidateToken(ctx context.Context, token string) (*DeviceIdentity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidDeviceToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/internal/devices/validate", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build device validation request: %w", err)
	}
	req.Header.Set("X-Device-Token", token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device validation request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var identity DeviceIdentity
		if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
			return nil, fmt.Errorf("failed to decode device identity: %w", err)
		}
		return &identity, nil
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return nil, ErrInvalidDeviceToken
	default:
		return nil, fmt.Errorf("device gateway returned status %d", resp.StatusCode)
	}
}
