package pipeline

import (
	"github.com/shopspring/decimal"
)

// LoanPolicy sizes and prices an approved loan.
type LoanPolicy struct {
	// IncomeMultiplier caps the approved amount at monthly income times this.
	IncomeMultiplier float64
	// ProcessingFeePct is charged on the approved amount.
	ProcessingFeePct float64
	// DefaultAnnualRate applies when the credit band has no entry in RateByBand.
	DefaultAnnualRate float64
	RateByBand        map[string]float64
}

// DefaultLoanPolicy returns the standard personal loan policy.
func DefaultLoanPolicy() LoanPolicy {
	return LoanPolicy{
		IncomeMultiplier:  12,
		ProcessingFeePct:  2,
		DefaultAnnualRate: 12,
		RateByBand: map[string]float64{
			"excellent": 10.5,
			"good":      12,
			"fair":      14,
		},
	}
}

// LoanTerms are the offered terms. Money amounts are whole currency units.
type LoanTerms struct {
	RequestedAmount int64    `json:"requested_amount"`
	ApprovedAmount  int64    `json:"approved_amount"`
	AmountCapped    bool     `json:"amount_capped"`
	TenureMonths    int      `json:"tenure_months"`
	AnnualRate      float64  `json:"annual_rate"`
	CreditBand      string   `json:"credit_band,omitempty"`
	EMI             int64    `json:"emi"`
	ProcessingFee   int64    `json:"processing_fee"`
	TotalPayable    int64    `json:"total_payable"`
	Conditions      []string `json:"conditions,omitempty"`
}

// RateFor returns the annual rate in percent for a credit band.
func (p LoanPolicy) RateFor(band string) float64 {
	if r, ok := p.RateByBand[band]; ok {
		return r
	}
	return p.DefaultAnnualRate
}

// Terms computes the offer for a request. The approved amount is the smaller
// of the requested amount and the income cap.
func (p LoanPolicy) Terms(requested int64, tenureMonths int, monthlyIncome float64, band string) LoanTerms {
	approved := decimal.NewFromInt(requested)
	limit := decimal.NewFromFloat(monthlyIncome).Mul(decimal.NewFromFloat(p.IncomeMultiplier)).Floor()
	capped := false
	if p.IncomeMultiplier > 0 && limit.LessThan(approved) {
		approved = limit
		capped = true
	}
	principal := approved.IntPart()
	rate := p.RateFor(band)
	emi := EMI(principal, rate, tenureMonths)
	fee := approved.Mul(decimal.NewFromFloat(p.ProcessingFeePct)).Div(decimal.NewFromInt(100)).Round(0)

	return LoanTerms{
		RequestedAmount: requested,
		ApprovedAmount:  principal,
		AmountCapped:    capped,
		TenureMonths:    tenureMonths,
		AnnualRate:      rate,
		CreditBand:      band,
		EMI:             emi,
		ProcessingFee:   fee.IntPart(),
		TotalPayable:    emi * int64(tenureMonths),
	}
}

// divPrecision is the scale kept through the annuity division.
const divPrecision = 16

// EMI returns the equated monthly instalment P·r·(1+r)^n / ((1+r)^n − 1)
// with r the monthly rate, rounded half away from zero to whole units.
// A zero rate spreads the principal evenly.
func EMI(principal int64, annualRatePct float64, months int) int64 {
	if months <= 0 || principal <= 0 {
		return 0
	}
	p := decimal.NewFromInt(principal)
	n := decimal.NewFromInt(int64(months))
	if annualRatePct <= 0 {
		return p.DivRound(n, divPrecision).Round(0).IntPart()
	}
	r := monthlyRate(annualRatePct)
	growth := decimal.NewFromInt(1).Add(r).Pow(n)
	num := p.Mul(r).Mul(growth)
	den := growth.Sub(decimal.NewFromInt(1))
	return num.DivRound(den, divPrecision).Round(0).IntPart()
}

// PrincipalFromEMI inverts EMI: the principal that a given instalment repays.
func PrincipalFromEMI(emi int64, annualRatePct float64, months int) float64 {
	if months <= 0 || emi <= 0 {
		return 0
	}
	e := decimal.NewFromInt(emi)
	n := decimal.NewFromInt(int64(months))
	if annualRatePct <= 0 {
		return e.Mul(n).InexactFloat64()
	}
	r := monthlyRate(annualRatePct)
	growth := decimal.NewFromInt(1).Add(r).Pow(n)
	num := e.Mul(growth.Sub(decimal.NewFromInt(1)))
	return num.DivRound(r.Mul(growth), divPrecision).InexactFloat64()
}

func monthlyRate(annualRatePct float64) decimal.Decimal {
	return decimal.NewFromFloat(annualRatePct).DivRound(decimal.NewFromInt(1200), divPrecision)
}
