package projections

import (
	"context"
	"time"

	auditstore "coursebook/internal/adapters/storage/audit"
	"coursebook/internal/application/listutil"
	"coursebook/internal/domain/audit"
)

// AuditFilterKeys are the query parameters the audit list filters on.
var AuditFilterKeys = []string{"category", "action", "actor_id", "resource_id", "from", "to"}

// GetAuditLogResult carries one page of audit events.
type GetAuditLogResult struct {
	Events []audit.Event     `json:"events"`
	Page   listutil.PageInfo `json:"page"`
}

// GetAuditLogDeps holds dependencies for QueryGetAuditLog.
type GetAuditLogDeps struct {
	Audit AuditStore
}

// QueryGetAuditLog returns audit events newest first.
// PRE: params parsed with listutil.ParseListParams and AuditFilterKeys
// POST: Unparseable from/to dates are ignored
func QueryGetAuditLog(ctx context.Context, params listutil.ListParams, deps GetAuditLogDeps) (GetAuditLogResult, error) {
	f := auditstore.Filter{
		Category:   audit.Category(params.Filters["category"]),
		Action:     audit.Action(params.Filters["action"]),
		ActorID:    params.Filters["actor_id"],
		ResourceID: params.Filters["resource_id"],
	}
	if t, err := time.Parse("2006-01-02", params.Filters["from"]); err == nil {
		f.From = t
	}
	if t, err := time.Parse("2006-01-02", params.Filters["to"]); err == nil {
		f.To = t.Add(24*time.Hour - time.Nanosecond)
	}

	total, err := deps.Audit.Count(ctx, f)
	if err != nil {
		return GetAuditLogResult{}, err
	}
	info := listutil.NewPageInfo(params.Page, params.PerPage, total)
	events, err := deps.Audit.List(ctx, f, info.PerPage, info.Offset())
	if err != nil {
		return GetAuditLogResult{}, err
	}
	if events == nil {
		events = []audit.Event{}
	}
	return GetAuditLogResult{Events: events, Page: info}, nil
}
