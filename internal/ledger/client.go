package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// OperationRecord is one raw ledger operation as returned by the
// operations API. Amounts stay decimal strings end to end.
type OperationRecord struct {
	ID            string    `json:"id"`
	PagingToken   string    `json:"paging_token"`
	Type          string    `json:"type"`
	CreatedAt     time.Time `json:"created_at"`
	SourceAccount string    `json:"source_account"`
	From          string    `json:"from"`
	Amount        string    `json:"amount"`
	Asset         string    `json:"asset"`
	TxHash        string    `json:"transaction_hash"`
	Index         uint64    `json:"index"`
}

type operationsPage struct {
	Records []OperationRecord `json:"records"`
}

// Client queries a cursor-paged ledger operations API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a ledger client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("ledger url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse ledger url: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Operations fetches one page of operations strictly after cursor, in
// ascending order. An empty cursor starts from the beginning of the stream.
func (c *Client) Operations(ctx context.Context, cursor string, limit int) ([]OperationRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	endpoint, err := url.Parse(c.baseURL + "/operations")
	if err != nil {
		return nil, fmt.Errorf("build operations url: %w", err)
	}
	query := endpoint.Query()
	query.Set("order", "asc")
	query.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build operations request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch operations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch operations: status %d: %s", resp.StatusCode, string(body))
	}

	var page operationsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode operations page: %w", err)
	}
	return page.Records, nil
}
