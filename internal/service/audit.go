package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// Audit limits.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)

// Audit reads the audit trail written by the event consumer.
type Audit struct {
	store repository.Store
}

func NewAudit(store repository.Store) *Audit {
	if store == nil {
		panic("nil store passed to NewAudit")
	}
	return &Audit{store: store}
}

// Recent returns up to limit entries, newest first.  A non-positive limit
// means DefaultAuditLimit; larger values are capped at MaxAuditLimit.
func (a *Audit) Recent(ctx context.Context, limit int) ([]model.AuditLog, error) {
	switch {
	case limit <= 0:
		limit = DefaultAuditLimit
	case limit > MaxAuditLimit:
		limit = MaxAuditLimit
	}
	logs, err := a.store.ListAuditLogs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
