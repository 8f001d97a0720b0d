// internal/directory/directory.go
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dineshratn/sos-app-sub001/internal/common/config"
	"github.com/dineshratn/sos-app-sub001/internal/common/logger"
	"github.com/dineshratn/sos-app-sub001/internal/models"
)

// Contact is an emergency contact as the directory service reports it.
// Tier orders who is notified first; endpoints may be absent per channel.
type Contact struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Tier         int       `json:"tier"`
	PushEndpoint string    `json:"push_endpoint,omitempty"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	Email        string    `json:"email,omitempty"`
}

// SupportsChannel reports whether the contact has an endpoint for the
// channel.
func (c Contact) SupportsChannel(channel models.Channel) bool {
	switch channel {
	case models.ChannelPush:
		return c.PushEndpoint != ""
	case models.ChannelSMS:
		return c.PhoneNumber != ""
	case models.ChannelEmail:
		return c.Email != ""
	default:
		return false
	}
}

// ContactDirectory resolves a user's emergency contacts.
type ContactDirectory interface {
	ContactsForUser(ctx context.Context, userID uuid.UUID, maxTier int) ([]Contact, error)
}

// HTTPDirectory talks to the user service's contact endpoint.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

// NewHTTPDirectory creates a directory client from config.
func NewHTTPDirectory(cfg config.ServiceClientConfig, log logger.Logger) *HTTPDirectory {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPDirectory{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  log.WithFields(map[string]interface{}{"component": "contact_directory"}),
	}
}

// ContactsForUser fetches contacts up to and including maxTier, ordered by
// tier.
func (d *HTTPDirectory) ContactsForUser(ctx context.Context, userID uuid.UUID, maxTier int) ([]Contact, error) {
	url := fmt.Sprintf("%s/internal/users/%s/contacts?max_tier=%d", d.baseURL, userID, maxTier)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build directory request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned status %d", resp.StatusCode)
	}

	var payload struct {
		Contacts []Contact `json:"contacts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode directory response: %w", err)
	}

	return payload.Contacts, nil
}
