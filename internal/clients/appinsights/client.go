// Package appinsights provides a client to run KQL queries against the Application Insights REST API.
package appinsights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/rs/zerolog"

	"tracepayload/internal/models"
)

// ErrNoTables is returned when a query response carries no result table.
var ErrNoTables = errors.New("query response has no tables")

// Client executes queries against a single Application Insights application.
type Client struct {
	baseURL       string
	applicationID string
	apiKey        string
	client        *http.Client
	logger        zerolog.Logger
}

// NewClient creates a new Application Insights client
func NewClient(baseURL, applicationID, apiKey string, timeout time.Duration, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.applicationinsights.io"
	}
	return &Client{
		baseURL:       baseURL,
		applicationID: applicationID,
		apiKey:        apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With().Str("component", "appinsights").Logger(),
	}
}

// queryRequest is the body of a query call.
type queryRequest struct {
	Query string `json:"query"`
}

// QueryResponse represents the tabular query response
type QueryResponse struct {
	Tables []Table `json:"tables"`
}

// Table is one result table of a query response.
type Table struct {
	Name    string          `json:"name"`
	Columns []Column        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// Column describes one column of a result table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Query executes a KQL query and returns the (timestamp, message) rows of the first table.
func (c *Client) Query(ctx context.Context, query string) ([]models.RawLogRow, error) {
	resp, err := c.execute(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(resp.Tables) == 0 {
		return nil, ErrNoTables
	}

	rows := make([]models.RawLogRow, 0, len(resp.Tables[0].Rows))
	for i, cells := range resp.Tables[0].Rows {
		row, err := toRow(cells)
		if err != nil {
			c.logger.Warn().Int("row", i).Err(err).Msg("Skipping unreadable result row")
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// execute posts the query and decodes the raw response.
func (c *Client) execute(ctx context.Context, query string) (*QueryResponse, error) {
	body, err := json.Marshal(queryRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := c.newRequest(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, string(respBody))
	}

	var result QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// newRequest creates the query POST request with auth headers
func (c *Client) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path.Join(u.Path, "/v1/apps", c.applicationID, "query")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	return req, nil
}

// toRow converts a [timestamp, message] cell list into a RawLogRow.
func toRow(cells []interface{}) (models.RawLogRow, error) {
	if len(cells) < 2 {
		return models.RawLogRow{}, fmt.Errorf("expected 2 cells, got %d", len(cells))
	}
	ts, ok := cells[0].(string)
	if !ok {
		return models.RawLogRow{}, fmt.Errorf("timestamp cell is %T, not a string", cells[0])
	}
	timestamp, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return models.RawLogRow{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	message, ok := cells[1].(string)
	if !ok {
		return models.RawLogRow{}, fmt.Errorf("message cell is %T, not a string", cells[1])
	}
	return models.RawLogRow{Timestamp: timestamp, Message: message}, nil
}
