package bureau_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanflow/internal/bureau"
	"loanflow/internal/bureau/contract"
)

func TestSimulatorReportContract(t *testing.T) {
	sim := bureau.NewSimulator()
	sim.RegisterReport(bureau.CreditReport{PAN: "ABCDE1234F", CIBILScore: 780, PaymentHistory: 98, CreditUtilization: 30})

	suite := &contract.ReportSuite{
		Bureau: sim,
		Tests: []contract.ReportTest{
			{
				Name: "registered report is returned",
				PAN:  "abcde1234f",
				ValidateFunc: func(r *bureau.CreditReport) error {
					if r.CIBILScore != 780 {
						return errors.New("expected registered score")
					}
					return nil
				},
			},
			{Name: "derived report stays in range", PAN: "ZZZZZ9999Z"},
			{Name: "another derived report", PAN: "PQRST5678U"},
		},
	}
	suite.Run(t)
}

func TestSimulatorDeterminism(t *testing.T) {
	ctx := context.Background()
	a, err := bureau.NewSimulator().FetchReport(ctx, "KLMNO4321P")
	require.NoError(t, err)
	b, err := bureau.NewSimulator().FetchReport(ctx, "KLMNO4321P")
	require.NoError(t, err)

	a.FetchedAt, b.FetchedAt = time.Time{}, time.Time{}
	assert.Equal(t, a, b)
}

func TestSimulatorIdentity(t *testing.T) {
	ctx := context.Background()
	sim := bureau.NewSimulator()

	t.Run("echoes unknown applicants", func(t *testing.T) {
		v, err := sim.Verify(ctx, bureau.IdentityQuery{PAN: "abcde1234f", FullName: "Ravi Kumar", DateOfBirth: "1990-05-15"})
		require.NoError(t, err)
		assert.True(t, v.IsValid)
		assert.Equal(t, "RAVI KUMAR", v.FullName)
		assert.Equal(t, "ABCDE1234F", v.PAN)
		assert.False(t, v.CheckedAt.IsZero())
	})

	t.Run("malformed PAN is invalid", func(t *testing.T) {
		v, err := sim.Verify(ctx, bureau.IdentityQuery{PAN: "INVALID123", FullName: "Ravi Kumar"})
		require.NoError(t, err)
		assert.False(t, v.IsValid)
	})

	t.Run("registered record wins", func(t *testing.T) {
		sim.RegisterIdentity(bureau.IdentityVerification{IsValid: true, PAN: "ABCDE1234F", FullName: "Kumar Ravi", DateOfBirth: "15/05/1990"})
		v, err := sim.Verify(ctx, bureau.IdentityQuery{PAN: "ABCDE1234F", FullName: "Ravi Kumar"})
		require.NoError(t, err)
		assert.Equal(t, "Kumar Ravi", v.FullName)
	})

	t.Run("secondary id masked to last four", func(t *testing.T) {
		v, err := sim.VerifySecondary(ctx, "1234 5678 9012")
		require.NoError(t, err)
		assert.True(t, v.Verified)
		assert.Equal(t, "XXXX-XXXX-9012", v.MaskedID)

		v, err = sim.VerifySecondary(ctx, "12")
		require.NoError(t, err)
		assert.False(t, v.Verified)
	})
}

func TestSimulatorFailures(t *testing.T) {
	sim := bureau.NewSimulator()
	sim.FailFor("ABCDE1234F", bureau.ErrorProviderOutage)
	sim.FailFor("999988887777", bureau.ErrorNotFound)

	tests := []contract.ErrorContractTest{
		{
			Name:          "report outage is retryable",
			Call:          func(ctx context.Context) error { _, err := sim.FetchReport(ctx, "ABCDE1234F"); return err },
			ExpectedError: bureau.ErrorProviderOutage,
			ExpectedRetry: true,
		},
		{
			Name:          "secondary not found is permanent",
			Call:          func(ctx context.Context) error { _, err := sim.VerifySecondary(ctx, "999988887777"); return err },
			ExpectedError: bureau.ErrorNotFound,
		},
		{
			Name:          "empty pan has no report",
			Call:          func(ctx context.Context) error { _, err := sim.FetchReport(ctx, ""); return err },
			ExpectedError: bureau.ErrorNotFound,
		},
	}
	for i := range tests {
		tests[i].Run(t)
	}
}

func TestSimulatorLatencyHonoursContext(t *testing.T) {
	sim := bureau.NewSimulator()
	sim.Latency = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := sim.FetchReport(ctx, "ABCDE1234F")
	require.Error(t, err)
	assert.Equal(t, bureau.ErrorTimeout, bureau.GetCategory(err))
}
