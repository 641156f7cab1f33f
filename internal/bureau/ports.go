package bureau

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks IdentityBureau,CreditBureau

import "context"

// IdentityBureau verifies applicant identity documents.
type IdentityBureau interface {
	Verify(ctx context.Context, q IdentityQuery) (*IdentityVerification, error)
	VerifySecondary(ctx context.Context, secondaryID string) (*SecondaryVerification, error)
}

// CreditBureau returns credit reports keyed by PAN.
type CreditBureau interface {
	FetchReport(ctx context.Context, pan string) (*CreditReport, error)
}
