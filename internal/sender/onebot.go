package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OneBot posts notifications to a OneBot v11 HTTP API.
type OneBot struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewOneBot creates a sink for the API at baseURL. token may be empty.
func NewOneBot(baseURL, token string, logger *zap.Logger) *OneBot {
	return &OneBot{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type oneBotResponse struct {
	Status  string `json:"status"`
	RetCode int    `json:"retcode"`
	Message string `json:"message"`
}

func (o *OneBot) Deliver(ctx context.Context, to Recipient, text string) {
	if err := o.send(ctx, to, text); err != nil {
		o.logger.Error("notification failed",
			zap.Stringer("kind", to.Kind),
			zap.String("to", to.ID),
			zap.Error(err),
		)
		return
	}
	o.logger.Debug("notification sent", zap.Stringer("kind", to.Kind), zap.String("to", to.ID))
}

func (o *OneBot) send(ctx context.Context, to Recipient, text string) error {
	id, err := strconv.ParseInt(to.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("onebot recipient %q: %w", to.ID, err)
	}

	endpoint := "/send_private_msg"
	payload := map[string]any{"user_id": id, "message": text}
	if to.Kind == Group {
		endpoint = "/send_group_msg"
		payload = map[string]any{"group_id": id, "message": text}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("onebot encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("onebot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("onebot post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("onebot %s: http %d: %s", endpoint, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var result oneBotResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("onebot decode response: %w", err)
	}
	if result.Status == "failed" || result.RetCode != 0 {
		return fmt.Errorf("onebot %s: retcode %d: %s", endpoint, result.RetCode, result.Message)
	}
	return nil
}
