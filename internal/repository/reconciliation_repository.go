package repository

import (
	"context"
	"time"

	"github.com/platewise/backoffice/internal/domain"
)

// ReconciliationRepository persists daily sales reconciliations. At most one
// non-terminal record exists per (branch, date); the check-then-create runs
// inside one transaction.
type ReconciliationRepository interface {
	// GetOrCreateActive returns the active (non-reconciled) record for the
	// branch and day, creating a fresh pending one when the latest record is
	// terminal or none exists.
	GetOrCreateActive(ctx context.Context, branch string, date time.Time) (*domain.SalesReconciliation, error)

	Get(ctx context.Context, id int64) (*domain.SalesReconciliation, error)
	List(ctx context.Context, branch string) ([]*domain.SalesReconciliation, error)

	// Save writes status, receipt total, breakdown and derived totals
	// atomically.
	Save(ctx context.Context, rec *domain.SalesReconciliation) error
}
