package domain

import "github.com/ethereum/go-ethereum/common"

// StructuredAttestationRequest is the EVM-verifiable claim shape. The
// field order (subject, attestationType, data, expiry, proofUri) is the
// signing wire contract consumed by on-chain verification and must not
// change.
type StructuredAttestationRequest struct {
	Subject         common.Hash `json:"subject"`         // 32-byte subject identifier
	AttestationType common.Hash `json:"attestationType"` // left-padded kind tag
	Data            []byte      `json:"data"`            // canonical legacy attestation bytes
	Expiry          uint64      `json:"expiry"`          // unix seconds
	ProofURI        string      `json:"proofUri"`        // content address of the proof bundle, may be empty
}

// SignedAttestation is a structured request together with the recoverable
// secp256k1 signature and the operator address it recovers to.
type SignedAttestation struct {
	Request   StructuredAttestationRequest `json:"request"`
	Signature []byte                       `json:"signature"` // 65-byte [R || S || V], V in {27,28}
	Signer    common.Address               `json:"signer"`
}
