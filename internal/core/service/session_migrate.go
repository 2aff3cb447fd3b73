package service

import (
	"github.com/jtuchinsky/finance-planner-cli/internal/core/domain"
	"github.com/jtuchinsky/finance-planner-cli/pkg/token"
)

// migrate brings a document written before tenant support up to date.
// It reports whether f changed and must be persisted.
//
// Steps, in order:
//  1. a missing tenant_preferences becomes an empty map
//  2. a missing current_tenant_id stays unset
//  3. records without a tenant_id key get one from the access token, which
//     also seeds the user's preference when none exists
//  4. an unset current tenant adopts the current user's preference
func migrate(f *domain.SessionFile, gaps *domain.SchemaGaps) bool {
	changed := false

	if gaps != nil && gaps.TenantPreferences {
		if f.TenantPreferences == nil {
			f.TenantPreferences = make(map[string]int64)
		}
		changed = true
	}
	if gaps != nil && gaps.CurrentTenantID {
		changed = true
	}

	if gaps != nil {
		for _, email := range gaps.RecordTenantID {
			rec, ok := f.Credentials[email]
			if !ok {
				continue
			}
			// Writing the record back adds the tenant_id key even when it
			// stays null, so the next load sees a migrated record.
			changed = true
			tenantID, ok := token.TenantID(rec.AccessToken)
			if !ok {
				continue
			}
			rec.TenantID = &tenantID
			if _, exists := f.TenantPreferences[email]; !exists {
				f.TenantPreferences[email] = tenantID
			}
		}
	}

	if f.CurrentTenantID == nil && f.CurrentUser != "" {
		if tenantID, ok := f.TenantPreferences[f.CurrentUser]; ok {
			f.CurrentTenantID = &tenantID
			changed = true
		}
	}

	return changed
}
