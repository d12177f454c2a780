package jobs

import (
	"context"

	"github.com/covenant-hq/covenant/internal/tenant"
)

const tenantPageSize = 200

// TenantLister resolves which associations a sweep covers.
type TenantLister interface {
	Get(ctx context.Context, tenantID int64) (tenant.Tenant, error)
	List(ctx context.Context, limit, offset int) ([]tenant.Tenant, int, error)
}

// resolveTenants expands a payload tenant scope: a concrete ID targets one
// association, zero targets all of them.
func resolveTenants(ctx context.Context, lister TenantLister, tenantID int64) ([]tenant.Tenant, error) {
	if tenantID != 0 {
		tn, err := lister.Get(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		return []tenant.Tenant{tn}, nil
	}
	all := make([]tenant.Tenant, 0)
	for offset := 0; ; offset += tenantPageSize {
		page, total, err := lister.List(ctx, tenantPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 || len(all) >= total {
			break
		}
	}
	return all, nil
}
