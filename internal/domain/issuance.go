package domain

// IssuanceRecord is the journal row written after an attestation is
// signed. It repeats only what the signed attestation already discloses
// plus the input hash commitment; raw features never reach storage.
// Corresponds to the issuances table in PostgreSQL.
type IssuanceRecord struct {
	ID             string // UUID primary key
	Kind           Kind   // PCS | PRS
	Subject        string // wallet address or pool id
	Score          int
	Classification string
	PolicyVersion  string
	InputHash      string // 0x-prefixed keccak256 commitment
	ProofURI       string // empty when publication was skipped or degraded
	Signer         string // 0x-prefixed operator address
	Signature      string // 0x-prefixed 65-byte signature
	IssuedAt       int64  // unix seconds
	Expiry         int64  // unix seconds
}

// IssuancePoint is one analytics datapoint per signed attestation.
// Corresponds to the issuance_points table in ClickHouse.
type IssuancePoint struct {
	Kind           Kind
	Score          int
	Classification string
	Degraded       bool  // feature decryption fell back to defaults
	DurationMs     int64 // request handling time
	IssuedAtMs     int64 // unix timestamp in milliseconds
}

// IssuanceSummary aggregates issuance points over a time range.
type IssuanceSummary struct {
	Kind          Kind    `json:"kind"`
	Count         int64   `json:"count"`
	MeanScore     float64 `json:"meanScore"`
	MinScore      int     `json:"minScore"`
	MaxScore      int     `json:"maxScore"`
	DegradedCount int64   `json:"degradedCount"`
}
