package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalAccountClient genera direcciones localmente. Solo dev: no hay servicio
// de cuentas real detrás.
type LocalAccountClient struct{}

func (LocalAccountClient) CreateAccount(ctx context.Context, identityID, currency string) (string, error) {
	return "acct-" + strings.ToLower(currency) + "-" + uuid.NewString(), nil
}

// HTTPAccountClient crea cuentas contra el servicio externo de cuentas vía
// POST JSON.
type HTTPAccountClient struct {
	URL    string
	APIKey string
	Client *http.Client
}

// NewHTTPAccountClient crea un cliente HTTP del servicio de cuentas.
func NewHTTPAccountClient(url, apiKey string, timeout time.Duration) *HTTPAccountClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPAccountClient{URL: url, APIKey: apiKey, Client: &http.Client{Timeout: timeout}}
}

type createAccountRequest struct {
	OwnerID  string `json:"owner_id"`
	Currency string `json:"currency"`
}

type createAccountResponse struct {
	Address string `json:"address"`
}

func (c *HTTPAccountClient) CreateAccount(ctx context.Context, identityID, currency string) (string, error) {
	body, err := json.Marshal(createAccountRequest{OwnerID: identityID, Currency: currency})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("account service status %d", resp.StatusCode)
	}

	var out createAccountResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode account response: %w", err)
	}
	if out.Address == "" {
		return "", fmt.Errorf("account service returned empty address")
	}
	return out.Address, nil
}
