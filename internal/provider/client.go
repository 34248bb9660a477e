// Package provider is the client for the external trade-data provider.
// The provider speaks GraphQL over HTTP; this package owns the query
// language, authentication and transport, and hands the rest of the
// service plain normalized records.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default configuration values.
const (
	DefaultEndpoint = "https://streaming.bitquery.io/eap"
	DefaultTimeout  = 30 * time.Second
)

// Client issues GraphQL queries to the trade-data provider.
type Client struct {
	endpoint string
	token    string
	client   *http.Client
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithEndpoint overrides the provider endpoint.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a provider client authenticated with the given token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: DefaultEndpoint,
		token:    token,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Error carries the upstream error payload for a failed provider call:
// a transport failure, a non-success status, or an errors payload embedded
// in an otherwise successful response. Calls are not retried here; retry
// policy belongs to the caller.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("provider error: %s", e.Detail)
}

// graphqlRequest is the outbound query envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the inbound envelope. Errors may accompany a 200.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// query executes a single GraphQL request and decodes data into result.
func (c *Client) query(ctx context.Context, q string, vars map[string]any, result any) error {
	body, err := json.Marshal(graphqlRequest{Query: q, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Detail: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{StatusCode: resp.StatusCode, Detail: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return &Error{StatusCode: resp.StatusCode, Detail: string(respBody)}
	}

	var envelope graphqlResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return &Error{StatusCode: resp.StatusCode, Detail: fmt.Sprintf("malformed response body: %v", err)}
	}

	if len(envelope.Errors) > 0 {
		detail, _ := json.Marshal(envelope.Errors)
		return &Error{StatusCode: resp.StatusCode, Detail: string(detail)}
	}

	if result != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return &Error{StatusCode: resp.StatusCode, Detail: fmt.Sprintf("unmarshal data: %v", err)}
		}
	}

	return nil
}
