package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/trackrelay/internal/event/domain"
)

// ConversionsClient implementa DeliveryClient contra la API de conversiones
// del destino. Un resultado definitivo por invocación: nil = aceptado,
// error = intento fallido. Los reintentos los gobierna la cola, no este
// cliente.
type ConversionsClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	log        *zap.Logger
}

// Verificación estática
var _ domain.DeliveryClient = (*ConversionsClient)(nil)

func NewConversionsClient(baseURL, token string, log *zap.Logger) *ConversionsClient {
	return &ConversionsClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		token:      token,
		log:        log,
	}
}

type conversionsPayload struct {
	Data []*domain.CanonicalEvent `json:"data"`
}

func (c *ConversionsClient) Send(ctx context.Context, evt *domain.CanonicalEvent) error {
	body, err := json.Marshal(conversionsPayload{Data: []*domain.CanonicalEvent{evt}})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("destination rejected event: status %d: %s", resp.StatusCode, snippet)
	}

	c.log.Debug("Event accepted by destination",
		zap.String("event_id", evt.ServerData.EventID.String()),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}
