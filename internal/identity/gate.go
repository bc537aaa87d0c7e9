package identity

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
)

// OrgGate allows access to artifacts stored under the caller's organization
type OrgGate struct {
	baseDir string
}

var _ ports.AccessGate = (*OrgGate)(nil)

func NewOrgGate(baseDir string) *OrgGate {
	return &OrgGate{baseDir: baseDir}
}

func (g *OrgGate) Check(ctx context.Context, artifactURI string) (domain.AccessDecision, error) {
	ident, ok := FromContext(ctx)
	if !ok || ident.Identity.OrgID == "" {
		log.Printf("[DEBUG] OrgGate - no identity for %s", artifactURI)
		return domain.AccessDeny, nil
	}

	rel, err := filepath.Rel(g.baseDir, artifactURI)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		log.Printf("[DEBUG] OrgGate - %s is outside %s", artifactURI, g.baseDir)
		return domain.AccessDeny, nil
	}

	// artifacts live under the org ID itself; one that would be rewritten owns nothing
	orgID := ident.Identity.OrgID
	if !domain.IsSafeSegment(orgID) {
		log.Printf("[DEBUG] OrgGate - org %q is not a valid directory name", orgID)
		return domain.AccessDeny, nil
	}

	owner := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	if owner != orgID {
		log.Printf("[DEBUG] OrgGate - org %s may not read %s", ident.Identity.OrgID, artifactURI)
		return domain.AccessDeny, nil
	}

	return domain.AccessAllow, nil
}

// AllowAllGate allows every request. Used by the local CLI.
type AllowAllGate struct{}

var _ ports.AccessGate = AllowAllGate{}

func (AllowAllGate) Check(ctx context.Context, artifactURI string) (domain.AccessDecision, error) {
	return domain.AccessAllow, nil
}

// ChainGate allows access only when every gate allows it
type ChainGate struct {
	gates []ports.AccessGate
}

var _ ports.AccessGate = (*ChainGate)(nil)

func NewChainGate(gates ...ports.AccessGate) *ChainGate {
	return &ChainGate{gates: gates}
}

func (g *ChainGate) Check(ctx context.Context, artifactURI string) (domain.AccessDecision, error) {
	for _, gate := range g.gates {
		decision, err := gate.Check(ctx, artifactURI)
		if err != nil {
			return domain.AccessDeny, err
		}
		if decision != domain.AccessAllow {
			return decision, nil
		}
	}
	return domain.AccessAllow, nil
}
