package domain

import "testing"

func TestInvoiceStatus_CanStartProcessing(t *testing.T) {
	cases := []struct {
		status InvoiceStatus
		want   bool
	}{
		{InvoiceUploaded, true},
		{InvoiceNeedsReview, true},
		{InvoiceRejected, true},
		{InvoiceProcessed, true},
		{InvoiceProcessing, false},
		{InvoiceStatus("garbage"), false},
	}
	for _, tc := range cases {
		if got := tc.status.CanStartProcessing(); got != tc.want {
			t.Errorf("%s.CanStartProcessing() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestInvoiceStatus_CanEditItems(t *testing.T) {
	cases := []struct {
		status InvoiceStatus
		want   bool
	}{
		{InvoiceProcessed, true},
		{InvoiceNeedsReview, true},
		{InvoiceUploaded, false},
		{InvoiceProcessing, false},
		{InvoiceRejected, false},
	}
	for _, tc := range cases {
		if got := tc.status.CanEditItems(); got != tc.want {
			t.Errorf("%s.CanEditItems() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestParseInvoiceStatus(t *testing.T) {
	if s, ok := ParseInvoiceStatus("Needs Review"); !ok || s != InvoiceNeedsReview {
		t.Fatalf("ParseInvoiceStatus(Needs Review) = %q, %v", s, ok)
	}
	if _, ok := ParseInvoiceStatus("archived"); ok {
		t.Fatal("unknown label should not parse")
	}
}

func TestReconciliationStatus_Lifecycle(t *testing.T) {
	cases := []struct {
		status       ReconciliationStatus
		terminal     bool
		canConfirm   bool
		canFlag      bool
		canBreakdown bool
	}{
		{ReconciliationPending, false, true, true, true},
		{ReconciliationNeedsReview, false, true, true, true},
		{ReconciliationRejected, false, false, true, false},
		{ReconciliationReconciled, true, false, false, false},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tc.status, got, tc.terminal)
		}
		if got := tc.status.CanConfirm(); got != tc.canConfirm {
			t.Errorf("%s.CanConfirm() = %v, want %v", tc.status, got, tc.canConfirm)
		}
		if got := tc.status.CanFlag(); got != tc.canFlag {
			t.Errorf("%s.CanFlag() = %v, want %v", tc.status, got, tc.canFlag)
		}
		if got := tc.status.CanUpdateBreakdown(); got != tc.canBreakdown {
			t.Errorf("%s.CanUpdateBreakdown() = %v, want %v", tc.status, got, tc.canBreakdown)
		}
	}
}
