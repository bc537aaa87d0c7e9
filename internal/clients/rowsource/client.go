package rowsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader is the header name for request ID tracking
const RequestIDHeader = "x-insights-request-id"

// Client is the REST client of the remote query service. Queries are addressed
// by name; their parameters travel as query string values.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new query service client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetHTTPClient allows setting a custom HTTP client
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// createRequest creates a GET request carrying the caller's identity header
func (c *Client) createRequest(ctx context.Context, endpoint string, params url.Values, identityHeader string) (*http.Request, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if identityHeader != "" {
		req.Header.Set("x-rh-identity", identityHeader)
	}

	log.Printf("[DEBUG] Query service - GET %s - Request-ID: %s", endpoint, requestID)
	return req, nil
}

// doRequest executes an HTTP request and handles the response
func (c *Client) doRequest(req *http.Request, result interface{}) error {
	requestID := req.Header.Get(RequestIDHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[DEBUG] Query service - Request failed - Request-ID: %s, Error: %v", requestID, err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	log.Printf("[DEBUG] Query service - Response received - Request-ID: %s, Status: %d", requestID, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
		}
		return fmt.Errorf("API error (status %d): %s - %s", resp.StatusCode, errResp.Error, errResp.Message)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func queryParams(params map[string]string) url.Values {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return values
}

// Count returns the number of rows the named query matches
func (c *Client) Count(ctx context.Context, query string, params map[string]string, identityHeader string) (int, error) {
	endpoint := fmt.Sprintf("/queries/%s/count", url.PathEscape(query))

	req, err := c.createRequest(ctx, endpoint, queryParams(params), identityHeader)
	if err != nil {
		return 0, err
	}

	var result CountResponse
	if err := c.doRequest(req, &result); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return result.Count, nil
}

// Rows returns one page of the named query's rows
func (c *Client) Rows(ctx context.Context, query string, params map[string]string, offset, limit int, identityHeader string) (*RowsResponse, error) {
	endpoint := fmt.Sprintf("/queries/%s/rows", url.PathEscape(query))

	values := queryParams(params)
	values.Set("offset", strconv.Itoa(offset))
	values.Set("limit", strconv.Itoa(limit))

	req, err := c.createRequest(ctx, endpoint, values, identityHeader)
	if err != nil {
		return nil, err
	}

	var result RowsResponse
	if err := c.doRequest(req, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch rows: %w", err)
	}
	return &result, nil
}
