// Package attestation turns scoring results into the two claim shapes
// the service issues: the legacy JSON attestation and the structured
// EVM-verifiable request wrapping its canonical bytes.
package attestation

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"credit-attestor/internal/domain"
	"credit-attestor/internal/policy"
)

// Options configures a Builder.
type Options struct {
	Policy   policy.Policy
	Operator common.Address
	Now      func() time.Time // defaults to time.Now
}

// Builder stamps attestations with issuance time, expiry and operator
// identity. Construction is cheap; one builder serves all requests.
type Builder struct {
	policy   policy.Policy
	operator common.Address
	now      func() time.Time
}

// NewBuilder returns a Builder for the given options.
func NewBuilder(opts Options) *Builder {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Builder{
		policy:   opts.Policy,
		operator: opts.Operator,
		now:      now,
	}
}

// BuildLegacy assembles the legacy attestation for a scored subject.
// IssuedAt is the build instant; Expiry follows the policy TTL for the
// kind, shortened for batch-issued PRS attestations.
func (b *Builder) BuildLegacy(kind domain.Kind, subject string, result domain.ComputationResult, batch bool) domain.Attestation {
	issuedAt := b.now().Unix()
	return domain.Attestation{
		Subject:        subject,
		Type:           kind,
		Value:          result.Score,
		Classification: result.Classification,
		PolicyVersion:  b.policy.Version,
		IssuedAt:       issuedAt,
		Expiry:         issuedAt + int64(b.policy.TTL(kind, batch)/time.Second),
		Operator:       b.operator.Hex(),
	}
}

// BuildStructured wraps a legacy attestation into the structured request
// shape: the canonical attestation bytes become the opaque data payload,
// the kind becomes a left-padded 32-byte type tag and the subject is
// reduced to a fixed-width identifier.
func (b *Builder) BuildStructured(att domain.Attestation, proofURI string) (domain.StructuredAttestationRequest, error) {
	data, err := att.CanonicalJSON()
	if err != nil {
		return domain.StructuredAttestationRequest{}, fmt.Errorf("attestation: encode payload: %w", err)
	}
	return domain.StructuredAttestationRequest{
		Subject:         SubjectID(att.Subject),
		AttestationType: TypeTag(att.Type),
		Data:            data,
		Expiry:          uint64(att.Expiry),
		ProofURI:        proofURI,
	}, nil
}

// SubjectID reduces a subject string to its 32-byte identifier: hex
// addresses are left-padded to preserve recoverability, anything else is
// hashed. The mapping is deterministic so repeat attestations about one
// subject share an identifier.
func SubjectID(subject string) common.Hash {
	if common.IsHexAddress(subject) {
		return common.BytesToHash(common.HexToAddress(subject).Bytes())
	}
	return crypto.Keccak256Hash([]byte(subject))
}

// TypeTag encodes an attestation kind as a left-padded 32-byte tag.
func TypeTag(kind domain.Kind) common.Hash {
	return common.BytesToHash([]byte(kind))
}
