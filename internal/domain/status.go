package domain

import "strings"

// InvoiceStatus is the lifecycle state of a digitized supplier invoice.
type InvoiceStatus string

const (
	InvoiceUploaded    InvoiceStatus = "uploaded"
	InvoiceProcessing  InvoiceStatus = "processing"
	InvoiceProcessed   InvoiceStatus = "processed"
	InvoiceNeedsReview InvoiceStatus = "needs review"
	InvoiceRejected    InvoiceStatus = "rejected"
)

// CanStartProcessing reports whether a process request may move the invoice
// into the processing state. A document already being processed is a
// conflict, never a retry.
func (s InvoiceStatus) CanStartProcessing() bool {
	switch s {
	case InvoiceUploaded, InvoiceNeedsReview, InvoiceRejected, InvoiceProcessed:
		return true
	default:
		return false
	}
}

// CanEditItems reports whether manual line-item edits are meaningful for the
// current state. Rejected invoices must be reprocessed, not edited, and an
// invoice still in upload/processing has no line items yet.
func (s InvoiceStatus) CanEditItems() bool {
	return s == InvoiceProcessed || s == InvoiceNeedsReview
}

// ParseInvoiceStatus returns the status for a stored label (case-insensitive).
func ParseInvoiceStatus(label string) (InvoiceStatus, bool) {
	switch InvoiceStatus(strings.ToLower(label)) {
	case InvoiceUploaded, InvoiceProcessing, InvoiceProcessed, InvoiceNeedsReview, InvoiceRejected:
		return InvoiceStatus(strings.ToLower(label)), true
	}
	return "", false
}

// ReconciliationStatus is the lifecycle state of a daily sales reconciliation.
type ReconciliationStatus string

const (
	ReconciliationPending     ReconciliationStatus = "pending"
	ReconciliationNeedsReview ReconciliationStatus = "needs_review"
	ReconciliationRejected    ReconciliationStatus = "rejected"
	ReconciliationReconciled  ReconciliationStatus = "reconciled"
)

// Terminal reports whether the record is closed. Only reconciled records are
// terminal; a rejected record still blocks a second active record for the
// same branch and day until a new receipt replaces it.
func (s ReconciliationStatus) Terminal() bool {
	return s == ReconciliationReconciled
}

// CanConfirm reports whether an explicit confirm action may close the record.
func (s ReconciliationStatus) CanConfirm() bool {
	return s == ReconciliationPending || s == ReconciliationNeedsReview
}

// CanFlag reports whether an explicit flag action may mark the record for
// review. Any non-terminal record can be flagged.
func (s ReconciliationStatus) CanFlag() bool {
	return !s.Terminal()
}

// CanUpdateBreakdown reports whether the recipe-level breakdown may still be
// edited.
func (s ReconciliationStatus) CanUpdateBreakdown() bool {
	return s == ReconciliationPending || s == ReconciliationNeedsReview
}
