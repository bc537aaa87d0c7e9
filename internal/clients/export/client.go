package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	platformIdentity "github.com/redhatinsights/platform-go-middlewares/v2/identity"

	"insights-export/internal/identity"
)

// APIError is a non-2xx response from the export service
type APIError struct {
	StatusCode int
	Errors     []ErrorObject
	Body       string
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
	}
	details := make([]string, len(e.Errors))
	for i, obj := range e.Errors {
		details[i] = obj.Title + " - " + obj.Detail
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, strings.Join(details, "; "))
}

// IsNotFound reports whether err is a 404 from the export service
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client represents the export service REST client
type Client struct {
	baseURL        string
	httpClient     *http.Client
	identityHeader string
}

// NewClient creates a client acting as the given user of orgID.
// baseURL includes the API prefix, e.g. http://localhost:8000/api/export/v1
func NewClient(baseURL, orgID, username, userID string) (*Client, error) {
	header, err := identity.EncodeHeader(platformIdentity.XRHID{
		Identity: platformIdentity.Identity{
			OrgID:    orgID,
			Type:     "User",
			AuthType: "jwt-auth",
			Internal: platformIdentity.Internal{OrgID: orgID},
			User: &platformIdentity.User{
				Username: username,
				UserID:   userID,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		identityHeader: header,
	}, nil
}

// SetHTTPClient allows setting a custom HTTP client
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// createRequest creates an HTTP request carrying the client identity
func (c *Client) createRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-rh-identity", c.identityHeader)

	return req, nil
}

// send executes req and returns the response, turning error statuses into *APIError
func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil {
			apiErr.Errors = errResp.Errors
		}
		return nil, apiErr
	}

	return resp, nil
}

// doRequest executes an HTTP request and decodes the JSON response into result
func (c *Client) doRequest(req *http.Request, result interface{}) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// CreateExport plans a new export
func (c *Client) CreateExport(ctx context.Context, req ExportRequest) (*ExportResponse, error) {
	httpReq, err := c.createRequest(ctx, http.MethodPost, "/exports", req)
	if err != nil {
		return nil, err
	}

	var result ExportResponse
	if err := c.doRequest(httpReq, &result); err != nil {
		return nil, fmt.Errorf("failed to create export: %w", err)
	}
	return &result, nil
}

// ListExports retrieves one page of the caller's exports
func (c *Client) ListExports(ctx context.Context, params *ListParams) (*ExportListResponse, error) {
	endpoint := "/exports"

	if params != nil {
		queryParams := url.Values{}

		if params.Status != nil {
			queryParams.Add("status", string(*params.Status))
		}
		if params.Limit != nil {
			queryParams.Add("limit", strconv.Itoa(*params.Limit))
		}
		if params.Offset != nil {
			queryParams.Add("offset", strconv.Itoa(*params.Offset))
		}

		if len(queryParams) > 0 {
			endpoint += "?" + queryParams.Encode()
		}
	}

	req, err := c.createRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var result ExportListResponse
	if err := c.doRequest(req, &result); err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	return &result, nil
}

// GetExport retrieves the progress of an export
func (c *Client) GetExport(ctx context.Context, exportID string) (*ExportResponse, error) {
	return c.exportCall(ctx, http.MethodGet, exportPath(exportID, ""), "get export")
}

// StepExport processes the next chunk of an export
func (c *Client) StepExport(ctx context.Context, exportID string) (*ExportResponse, error) {
	return c.exportCall(ctx, http.MethodPost, exportPath(exportID, "step"), "step export")
}

// RunExport steps an export to completion and finalizes it
func (c *Client) RunExport(ctx context.Context, exportID string) (*OutcomeResponse, error) {
	return c.outcomeCall(ctx, exportPath(exportID, "run"), "run export")
}

// FinalizeExport finalizes an export whose rows are all written
func (c *Client) FinalizeExport(ctx context.Context, exportID string) (*OutcomeResponse, error) {
	return c.outcomeCall(ctx, exportPath(exportID, "finalize"), "finalize export")
}

func (c *Client) exportCall(ctx context.Context, method, endpoint, action string) (*ExportResponse, error) {
	req, err := c.createRequest(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var result ExportResponse
	if err := c.doRequest(req, &result); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", action, err)
	}
	return &result, nil
}

func (c *Client) outcomeCall(ctx context.Context, endpoint, action string) (*OutcomeResponse, error) {
	req, err := c.createRequest(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var result OutcomeResponse
	if err := c.doRequest(req, &result); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", action, err)
	}
	return &result, nil
}

// DownloadExport streams a finished artifact into w and returns the bytes copied
func (c *Client) DownloadExport(ctx context.Context, exportID string, w io.Writer) (int64, error) {
	req, err := c.createRequest(ctx, http.MethodGet, exportPath(exportID, "download"), nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.send(req)
	if err != nil {
		return 0, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read download data: %w", err)
	}
	return n, nil
}

// GetExportDownloadURL returns the full download URL for an export
func (c *Client) GetExportDownloadURL(exportID string) string {
	return c.baseURL + exportPath(exportID, "download")
}

// DeleteExport deletes an export and its artifact
func (c *Client) DeleteExport(ctx context.Context, exportID string) error {
	req, err := c.createRequest(ctx, http.MethodDelete, exportPath(exportID, ""), nil)
	if err != nil {
		return err
	}

	if err := c.doRequest(req, nil); err != nil {
		return fmt.Errorf("failed to delete export: %w", err)
	}
	return nil
}

func exportPath(exportID, action string) string {
	p := "/exports/" + url.PathEscape(exportID)
	if action != "" {
		p += "/" + action
	}
	return p
}
