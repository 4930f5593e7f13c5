package domain

import "encoding/json"

// Attestation is the legacy claim shape: a scored statement about a
// subject (wallet address or pool identifier), bounded in time and tied
// to the operator that will sign it. Instances are built once and never
// mutated afterwards.
type Attestation struct {
	Subject        string `json:"subject"`        // wallet address or pool id
	Type           Kind   `json:"type"`           // PCS | PRS
	Value          int    `json:"value"`          // the score
	Classification string `json:"classification"` // metal tier or risk band
	PolicyVersion  string `json:"policyVersion"`  // scoring policy in force
	IssuedAt       int64  `json:"issuedAt"`       // unix seconds
	Expiry         int64  `json:"expiry"`         // unix seconds, strictly > IssuedAt
	Operator       string `json:"operator"`       // 0x-prefixed signer address
}

// CanonicalJSON returns the canonical byte encoding of the attestation:
// JSON with fields in struct order. These exact bytes are what the signer
// consumes and what round-trips back into an Attestation.
func (a Attestation) CanonicalJSON() ([]byte, error) {
	return json.Marshal(a)
}

// SignedLegacyAttestation pairs an attestation with the recoverable
// signature over its canonical encoding.
type SignedLegacyAttestation struct {
	Attestation Attestation `json:"attestation"`
	Signature   string      `json:"signature"` // 0x-prefixed 65-byte [R || S || V]
}
