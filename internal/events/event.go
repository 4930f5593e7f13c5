// Package events fans signed-issuance notifications out to operators
// (WebSocket hub) and downstream consumers (AMQP). Events repeat only
// what the signed attestation already discloses.
package events

import "credit-attestor/internal/domain"

// Event is one issuance notification.
type Event struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Subject        string `json:"subject"`
	Score          int    `json:"score"`
	Classification string `json:"classification"`
	PolicyVersion  string `json:"policyVersion"`
	ProofURI       string `json:"proofUri,omitempty"`
	FHEDegraded    bool   `json:"fheDegraded,omitempty"`
	IssuedAt       int64  `json:"issuedAt"`
	Expiry         int64  `json:"expiry"`
	Signer         string `json:"signer"`
}

// FromRecord builds the notification for a journaled issuance.
func FromRecord(rec *domain.IssuanceRecord, degraded bool) Event {
	return Event{
		ID:             rec.ID,
		Kind:           rec.Kind.String(),
		Subject:        rec.Subject,
		Score:          rec.Score,
		Classification: rec.Classification,
		PolicyVersion:  rec.PolicyVersion,
		ProofURI:       rec.ProofURI,
		FHEDegraded:    degraded,
		IssuedAt:       rec.IssuedAt,
		Expiry:         rec.Expiry,
		Signer:         rec.Signer,
	}
}
