package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"orderflow/internal/domain"
)

// TokenDirectoryClient reads device tokens from the token directory service.
type TokenDirectoryClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTokenDirectoryClient(baseURL string, timeout time.Duration) *TokenDirectoryClient {
	return &TokenDirectoryClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *TokenDirectoryClient) ListActive(ctx context.Context, roles []domain.Role) ([]domain.DeviceToken, error) {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	url := fmt.Sprintf("%s/tokens?active=true&roles=%s", c.baseURL, strings.Join(names, ","))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token directory returned status %d", resp.StatusCode)
	}
	var tokens []domain.DeviceToken
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (c *TokenDirectoryClient) Deactivate(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	body, err := json.Marshal(map[string][]string{"tokens": tokens})
	if err != nil {
		return err
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tokens/deactivate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("token directory returned status %d", resp.StatusCode)
	}
	return nil
}
