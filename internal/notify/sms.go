package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/halcyonlabs/idcore/internal/observability/logger"
	"github.com/halcyonlabs/idcore/internal/util"
)

// HTTPSMSSender implementa SMSSender contra un gateway HTTP genérico
// (POST JSON {to, message}).
type HTTPSMSSender struct {
	GatewayURL string
	APIKey     string
	Client     *http.Client
}

// NewHTTPSMSSender crea un sender SMS. Si gatewayURL es vacío retorna un
// sender log-only para dev.
func NewHTTPSMSSender(gatewayURL, apiKey string) SMSSender {
	if gatewayURL == "" {
		return logOnlySMS{}
	}
	return &HTTPSMSSender{
		GatewayURL: gatewayURL,
		APIKey:     apiKey,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSMSSender) SendSMS(ctx context.Context, to, message string) error {
	body, _ := json.Marshal(map[string]string{"to": to, "message": message})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway status %d", resp.StatusCode)
	}
	return nil
}

// logOnlySMS solo loguea; dev/testing sin gateway configurado.
type logOnlySMS struct{}

func (logOnlySMS) SendSMS(ctx context.Context, to, message string) error {
	logger.From(ctx).Debug("sms (log-only)",
		logger.Component("notify.sms"),
		logger.String("to", util.MaskPhone(to)),
	)
	return nil
}
