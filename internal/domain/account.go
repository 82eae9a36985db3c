package domain

import "time"

// VerificationStatus is the KYC outcome recorded by the external review
// process. Only approved users may acquire shares.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// IdempotencyRecord binds a caller-supplied key to the request it first
// carried and the investment that request produced.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	InvestmentID string
	CreatedAt    time.Time
}
