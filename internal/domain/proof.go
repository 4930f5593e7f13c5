package domain

// ComputationProof carries enough of a scoring run to audit the published
// attestation without revealing the inputs: a hash commitment to the
// decrypted features and the full sub-score breakdown.
type ComputationProof struct {
	InputHash   string             `json:"inputHash"`   // 0x-prefixed keccak256 of decrypted feature JSON
	AlgorithmID string             `json:"algorithmId"` // scoring algorithm identifier
	Score       int                `json:"score"`
	Breakdown   map[string]float64 `json:"breakdown"`
}

// ProofBundle is the published unit: attestation plus its computation
// proof, addressed by content hash once uploaded.
type ProofBundle struct {
	Attestation Attestation      `json:"attestation"`
	Proof       ComputationProof `json:"computationProof"`
	Operator    string           `json:"operator"` // 0x-prefixed signer address
}
