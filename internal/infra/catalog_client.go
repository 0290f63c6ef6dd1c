package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type ProductInfo struct {
	ID        uint64 `json:"id"`
	AccountID uint64 `json:"accountId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Available bool   `json:"available"`
}

type AccountInfo struct {
	ID     uint64 `json:"id"`
	Active bool   `json:"active"`
}

type TableInfo struct {
	ID        uint64 `json:"id"`
	AccountID uint64 `json:"accountId"`
}

// CatalogClient talks to the menu/account service. Missing entities come
// back as nil rather than an error so callers can map them to their own
// not-found taxonomy.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewCatalogClient(baseURL string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *CatalogClient) GetProduct(ctx context.Context, accountID, productID uint64) (*ProductInfo, error) {
	var p ProductInfo
	ok, err := c.getJSON(ctx, fmt.Sprintf("%s/accounts/%d/products/%d", c.baseURL, accountID, productID), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (c *CatalogClient) GetAccount(ctx context.Context, accountID uint64) (*AccountInfo, error) {
	var a AccountInfo
	ok, err := c.getJSON(ctx, fmt.Sprintf("%s/accounts/%d", c.baseURL, accountID), &a)
	if err != nil || !ok {
		return nil, err
	}
	return &a, nil
}

func (c *CatalogClient) GetTable(ctx context.Context, accountID, tableID uint64) (*TableInfo, error) {
	var t TableInfo
	ok, err := c.getJSON(ctx, fmt.Sprintf("%s/accounts/%d/tables/%d", c.baseURL, accountID, tableID), &t)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

func (c *CatalogClient) getJSON(ctx context.Context, url string, out any) (bool, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("catalog service returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, err
	}
	return true, nil
}
