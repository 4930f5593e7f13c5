// Package signer produces recoverable secp256k1 signatures over
// canonical attestation encodings. One Signer holds the operator key for
// the process lifetime; the key is read-only after construction so a
// single instance serves concurrent requests without locking.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"credit-attestor/internal/domain"
)

// structuredArgs is the canonical ABI layout of a structured attestation
// request. The field order is a wire contract shared with on-chain
// verification; changing it invalidates every deployed verifier.
var structuredArgs = abi.Arguments{
	{Name: "subject", Type: mustType("bytes32")},
	{Name: "attestationType", Type: mustType("bytes32")},
	{Name: "data", Type: mustType("bytes")},
	{Name: "expiry", Type: mustType("uint64")},
	{Name: "proofUri", Type: mustType("string")},
}

func mustType(s string) abi.Type {
	t, err := abi.NewType(s, "", nil)
	if err != nil {
		panic(fmt.Sprintf("signer: abi type %q: %v", s, err))
	}
	return t
}

// Signer signs attestations with the operator's secp256k1 key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// New constructs a Signer from a hex-encoded private key, with or without
// a 0x prefix. This is the only fallible step of the signing lifecycle;
// callers treat an error here as fatal.
func New(hexKey string) (*Signer, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("signer: operator key is empty")
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("signer: decode operator key: %w", err)
	}
	return NewFromKey(key), nil
}

// NewFromKey wraps an already-parsed private key.
func NewFromKey(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address returns the operator address every signature recovers to.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignLegacy signs the canonical JSON encoding of a legacy attestation.
func (s *Signer) SignLegacy(att domain.Attestation) (domain.SignedLegacyAttestation, error) {
	payload, err := att.CanonicalJSON()
	if err != nil {
		return domain.SignedLegacyAttestation{}, fmt.Errorf("signer: encode attestation: %w", err)
	}
	sig, err := s.signDigest(crypto.Keccak256(payload))
	if err != nil {
		return domain.SignedLegacyAttestation{}, err
	}
	return domain.SignedLegacyAttestation{
		Attestation: att,
		Signature:   hexutil.Encode(sig),
	}, nil
}

// SignStructured ABI-encodes the request fields in wire order, hashes the
// encoding and signs it. The returned signature carries V in {27,28} as
// expected by contract-side ecrecover.
func (s *Signer) SignStructured(req domain.StructuredAttestationRequest) (domain.SignedAttestation, error) {
	digest, err := structuredDigest(req)
	if err != nil {
		return domain.SignedAttestation{}, err
	}
	sig, err := s.signDigest(digest)
	if err != nil {
		return domain.SignedAttestation{}, err
	}
	return domain.SignedAttestation{
		Request:   req,
		Signature: sig,
		Signer:    s.address,
	}, nil
}

// RecoverStructured recovers the address that signed a structured
// request. It accepts V in {0,1} as well as {27,28}.
func RecoverStructured(req domain.StructuredAttestationRequest, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signer: signature length %d, want %d", len(sig), crypto.SignatureLength)
	}
	digest, err := structuredDigest(req)
	if err != nil {
		return common.Address{}, err
	}

	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(digest), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("signer: recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// signDigest applies the EIP-191 personal-message prefix to a 32-byte
// digest and signs the result.
func (s *Signer) signDigest(digest []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(digest), s.key)
	if err != nil {
		return nil, fmt.Errorf("signer: sign digest: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// structuredDigest is the keccak256 of the ABI encoding of
// (subject, attestationType, data, expiry, proofUri).
func structuredDigest(req domain.StructuredAttestationRequest) ([]byte, error) {
	encoded, err := structuredArgs.Pack(
		[32]byte(req.Subject),
		[32]byte(req.AttestationType),
		req.Data,
		req.Expiry,
		req.ProofURI,
	)
	if err != nil {
		return nil, fmt.Errorf("signer: abi encode request: %w", err)
	}
	return crypto.Keccak256(encoded), nil
}
