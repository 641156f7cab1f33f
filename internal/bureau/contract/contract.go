// Package contract holds reusable conformance checks for bureau adapters.
package contract

import (
	"context"
	"testing"

	"loanflow/internal/bureau"
)

// ReportTest is one credit-report contract case.
type ReportTest struct {
	Name         string
	PAN          string
	ValidateFunc func(report *bureau.CreditReport) error
}

// ReportSuite runs contract cases against a CreditBureau.
type ReportSuite struct {
	Bureau bureau.CreditBureau
	Tests  []ReportTest
}

// Run executes all contract tests in the suite.
func (s *ReportSuite) Run(t *testing.T) {
	for _, test := range s.Tests {
		t.Run(test.Name, func(t *testing.T) {
			report, err := s.Bureau.FetchReport(context.Background(), test.PAN)
			if err != nil {
				t.Fatalf("fetch report failed: %v", err)
			}

			if report.CIBILScore < 300 || report.CIBILScore > 900 {
				t.Errorf("cibil score %d out of range [300, 900]", report.CIBILScore)
			}
			if report.PaymentHistory < 0 || report.PaymentHistory > 100 {
				t.Errorf("payment history %f out of range [0, 100]", report.PaymentHistory)
			}
			if report.CreditUtilization < 0 || report.CreditUtilization > 100 {
				t.Errorf("credit utilization %f out of range [0, 100]", report.CreditUtilization)
			}
			if report.RecentInquiries < 0 || report.Defaults < 0 || report.CreditHistoryLength < 0 {
				t.Error("counts must be non-negative")
			}
			if report.FetchedAt.IsZero() {
				t.Error("FetchedAt not set")
			}

			if test.ValidateFunc != nil {
				if err := test.ValidateFunc(report); err != nil {
					t.Errorf("custom validation failed: %v", err)
				}
			}
		})
	}
}

// ErrorContractTest validates that adapter errors follow the taxonomy.
type ErrorContractTest struct {
	Name          string
	Call          func(ctx context.Context) error
	ExpectedError bureau.ErrorCategory
	ExpectedRetry bool
}

// Run executes an error contract test.
func (ect *ErrorContractTest) Run(t *testing.T) {
	t.Run(ect.Name, func(t *testing.T) {
		err := ect.Call(context.Background())
		if err == nil {
			t.Fatal("expected error but got none")
		}

		if !bureau.IsProviderError(err) {
			t.Fatalf("expected a provider error, got %T: %v", err, err)
		}
		if category := bureau.GetCategory(err); category != ect.ExpectedError {
			t.Errorf("expected error category %s, got %s", ect.ExpectedError, category)
		}
		if retryable := bureau.IsRetryable(err); retryable != ect.ExpectedRetry {
			t.Errorf("expected retryable=%v, got %v", ect.ExpectedRetry, retryable)
		}
	})
}
