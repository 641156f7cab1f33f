// Package bureau holds the ports and adapters for external verification
// providers: the identity bureau and the credit bureau.
package bureau

import "time"

// IdentityQuery is what the identity bureau matches against its records.
type IdentityQuery struct {
	PAN         string `json:"pan"`
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

// IdentityVerification is the identity bureau's record for a PAN.
type IdentityVerification struct {
	IsValid           bool      `json:"is_valid"`
	FullName          string    `json:"full_name"`
	DateOfBirth       string    `json:"date_of_birth"`
	PAN               string    `json:"pan"`
	MaskedSecondaryID string    `json:"masked_secondary_id,omitempty"`
	CheckedAt         time.Time `json:"checked_at"`
}

// SecondaryVerification is the result of verifying the secondary national id.
type SecondaryVerification struct {
	Verified  bool      `json:"verified"`
	MaskedID  string    `json:"masked_id"`
	CheckedAt time.Time `json:"checked_at"`
}

// CreditReport is the subset of a bureau report the rules consume.
// CreditHistoryLength is in months; PaymentHistory and CreditUtilization are
// percentages.
type CreditReport struct {
	PAN                 string    `json:"pan"`
	CIBILScore          int       `json:"cibil_score"`
	CreditHistoryLength int       `json:"credit_history_length"`
	PaymentHistory      float64   `json:"payment_history"`
	CreditUtilization   float64   `json:"credit_utilization"`
	RecentInquiries     int       `json:"recent_inquiries"`
	Defaults            int       `json:"defaults"`
	FetchedAt           time.Time `json:"fetched_at"`
}
