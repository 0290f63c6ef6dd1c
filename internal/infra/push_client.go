package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// MaxBatchTokens is the provider-imposed ceiling on tokens per request.
const MaxBatchTokens = 500

type PushBatch struct {
	Tokens []string          `json:"registration_ids"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

type PushResult struct {
	Results []SendResult `json:"results"`
}

type SendResult struct {
	Token string `json:"token"`
	Err   string `json:"error,omitempty"`
}

// Permanent reports whether the provider error means the token is dead and
// must be pruned. Transient errors leave the token active; the next event
// naturally retries delivery.
func (r SendResult) Permanent() bool {
	switch r.Err {
	case "NotRegistered", "InvalidRegistration", "MismatchSenderId":
		return true
	}
	return false
}

// PushClient dispatches notification batches to the push provider.
type PushClient struct {
	baseURL    string
	serverKey  string
	httpClient *http.Client
}

func NewPushClient(baseURL, serverKey string, timeout time.Duration) *PushClient {
	return &PushClient{
		baseURL:    baseURL,
		serverKey:  serverKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *PushClient) Send(ctx context.Context, batch PushBatch) (*PushResult, error) {
	if len(batch.Tokens) > MaxBatchTokens {
		return nil, fmt.Errorf("push batch of %d tokens exceeds provider limit %d", len(batch.Tokens), MaxBatchTokens)
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.serverKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("push provider returned status %d", resp.StatusCode)
	}
	var result PushResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
