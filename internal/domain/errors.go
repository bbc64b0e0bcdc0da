package domain

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyProcessing rejects a process request for an invoice that is
	// already being extracted.
	ErrAlreadyProcessing = errors.New("invoice processing already in progress")

	// ErrInvalidTransition rejects an operation that is not meaningful for
	// the record's current status.
	ErrInvalidTransition = errors.New("operation not allowed in current status")

	// ErrBreakdownExceedsReceipt rejects a sales breakdown whose total
	// exceeds the receipt total beyond the 5-cent tolerance.
	ErrBreakdownExceedsReceipt = errors.New("breakdown sales exceed receipt total beyond tolerance")

	// ErrKpiExists rejects a second KPI for an insight that already has one.
	ErrKpiExists = errors.New("insight already has a KPI")

	// ErrMissingCredential is returned when the AI credential is not configured.
	ErrMissingCredential = errors.New("AI API key is not configured")
)
