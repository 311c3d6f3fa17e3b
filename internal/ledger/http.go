package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/halcyonlabs/idcore/internal/observability/logger"
)

// HTTPClient envía transacciones como POST JSON al servicio de ledger.
type HTTPClient struct {
	URL    string
	Client *http.Client
}

// NewHTTPClient crea un cliente HTTP del ledger.
func NewHTTPClient(url string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) LogTransaction(ctx context.Context, tx Transaction) error {
	log := logger.From(ctx).With(
		logger.Component("ledger"),
		logger.String("tx_type", tx.Type),
		logger.String("entity_id", tx.EntityID),
	)

	body, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		log.Warn("ledger unreachable", logger.Err(err))
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Warn("ledger rejected transaction", logger.Int("status", resp.StatusCode))
		return fmt.Errorf("ledger status %d", resp.StatusCode)
	}
	return nil
}
