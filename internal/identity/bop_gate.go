package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
)

// BopAccessGate verifies with the BOP user service that the caller is an
// active member of the organization that owns the artifact.
type BopAccessGate struct {
	baseURL     string
	httpClient  *http.Client
	apiToken    string
	clientID    string
	insightsEnv string
}

var _ ports.AccessGate = (*BopAccessGate)(nil)

// NewBopAccessGate creates a new BopAccessGate with the given base URL and credentials
func NewBopAccessGate(baseURL, apiToken, clientID, insightsEnv string) *BopAccessGate {
	log.Printf("[DEBUG] Using BOP based access gate: %s", baseURL)
	return NewBopAccessGateWithClient(baseURL, apiToken, clientID, insightsEnv, &http.Client{
		Timeout: 2 * time.Second,
	})
}

// NewBopAccessGateWithClient creates a new BopAccessGate with a custom HTTP client
func NewBopAccessGateWithClient(baseURL, apiToken, clientID, insightsEnv string, client *http.Client) *BopAccessGate {
	return &BopAccessGate{
		baseURL:     baseURL,
		apiToken:    apiToken,
		clientID:    clientID,
		insightsEnv: insightsEnv,
		httpClient:  client,
	}
}

// UserLookupRequest is the payload of a BOP user lookup
type UserLookupRequest struct {
	Users []string `json:"users"`
}

type UserInfo struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	AccountNumber string `json:"account_number"`
	OrgID         string `json:"org_id"`
	IsActive      bool   `json:"is_active"`
}

func (g *BopAccessGate) Check(ctx context.Context, artifactURI string) (domain.AccessDecision, error) {
	ident, ok := FromContext(ctx)
	if !ok || ident.Identity.User == nil || ident.Identity.User.Username == "" {
		log.Printf("[DEBUG] BopAccessGate - no user identity for %s", artifactURI)
		return domain.AccessDeny, nil
	}
	orgID := ident.Identity.OrgID
	username := ident.Identity.User.Username

	users, err := g.lookup(ctx, username)
	if err != nil {
		return domain.AccessDeny, err
	}

	if len(users) != 1 {
		log.Printf("[DEBUG] BopAccessGate - expected one user for %s, got %d", username, len(users))
		return domain.AccessDeny, nil
	}

	if !users[0].IsActive {
		log.Printf("[DEBUG] BopAccessGate - inactive user %s", username)
		return domain.AccessDeny, nil
	}

	if users[0].OrgID != orgID {
		log.Printf("[DEBUG] BopAccessGate - org-id mismatch for %s: %s != %s", username, users[0].OrgID, orgID)
		return domain.AccessDeny, nil
	}

	return domain.AccessAllow, nil
}

func (g *BopAccessGate) lookup(ctx context.Context, username string) ([]UserInfo, error) {
	body, err := json.Marshal(UserLookupRequest{Users: []string{username}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/users", g.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-rh-apitoken", g.apiToken)
	req.Header.Set("x-rh-clientid", g.clientID)
	req.Header.Set("x-rh-insights-env", g.insightsEnv)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call user service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("user service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var users []UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return users, nil
}
