package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	platformIdentity "github.com/redhatinsights/platform-go-middlewares/v2/identity"

	"insights-export/internal/core/domain"
)

// ForJob builds the identity of the user who requested an export
func ForJob(job domain.ExportJob) platformIdentity.XRHID {
	return platformIdentity.XRHID{
		Identity: platformIdentity.Identity{
			OrgID:    job.OrgID,
			Type:     "User",
			AuthType: "jwt-auth",
			Internal: platformIdentity.Internal{
				OrgID: job.OrgID,
			},
			User: &platformIdentity.User{
				Username: job.Username,
				UserID:   job.UserID,
			},
		},
	}
}

// FromContext returns the identity stored in ctx, if any
func FromContext(ctx context.Context) (platformIdentity.XRHID, bool) {
	if platformIdentity.EncodeIdentity(ctx) == "" {
		return platformIdentity.XRHID{}, false
	}
	return platformIdentity.GetIdentity(ctx), true
}

// ContextForJob makes sure ctx carries an identity. Background work acts as the
// user who requested the export; a request identity already in ctx is kept.
func ContextForJob(ctx context.Context, job domain.ExportJob) context.Context {
	if _, ok := FromContext(ctx); ok {
		return ctx
	}
	return platformIdentity.WithIdentity(ctx, ForJob(job))
}

// EncodeHeader serializes an identity as an x-rh-identity header value
func EncodeHeader(ident platformIdentity.XRHID) (string, error) {
	if ident.Identity.OrgID == "" {
		return "", fmt.Errorf("orgID cannot be empty")
	}

	identityJSON, err := json.Marshal(ident)
	if err != nil {
		return "", fmt.Errorf("failed to marshal identity: %w", err)
	}

	return base64.StdEncoding.EncodeToString(identityJSON), nil
}
