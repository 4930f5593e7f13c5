// Package proofs assembles computation proof bundles and anchors them in
// content-addressed storage. Publication is strictly best effort: a
// failed upload downgrades the response to an attestation without an
// anchored proof, it never fails the request.
package proofs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"credit-attestor/internal/domain"
	"credit-attestor/internal/ipfs"
	"credit-attestor/internal/observability"
	"credit-attestor/internal/policy"
)

// DefaultPublishTimeout bounds how long a slow storage node can stall a
// single response.
const DefaultPublishTimeout = 10 * time.Second

// Uploader is the slice of the storage boundary the composer consumes.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

// Options configures a Composer.
type Options struct {
	Uploader Uploader
	Policy   policy.Policy
	Timeout  time.Duration // defaults to DefaultPublishTimeout
	Logger   zerolog.Logger
}

// Composer builds and publishes proof bundles.
type Composer struct {
	uploader Uploader
	policy   policy.Policy
	timeout  time.Duration
	log      zerolog.Logger
}

// NewComposer returns a Composer for the given options.
func NewComposer(opts Options) *Composer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &Composer{
		uploader: opts.Uploader,
		policy:   opts.Policy,
		timeout:  timeout,
		log:      opts.Logger,
	}
}

// Compose assembles the bundle for a signed-off computation. inputHash
// commits to the decrypted features without revealing them.
func (c *Composer) Compose(att domain.Attestation, inputHash string, result domain.ComputationResult) domain.ProofBundle {
	return domain.ProofBundle{
		Attestation: att,
		Proof: domain.ComputationProof{
			InputHash:   inputHash,
			AlgorithmID: c.policy.AlgorithmID(att.Type),
			Score:       result.Score,
			Breakdown:   result.Breakdown,
		},
		Operator: att.Operator,
	}
}

// Publish uploads a bundle and returns its ipfs:// URI. Every failure
// branch returns the empty URI: the caller keeps going and issues the
// attestation without an anchored proof.
func (c *Composer) Publish(ctx context.Context, bundle domain.ProofBundle) string {
	start := time.Now()
	uri, err := c.publish(ctx, bundle)
	observability.RecordPublish(time.Since(start).Seconds(), publishFailureReason(err), err)
	if err != nil {
		c.log.Warn().
			Err(err).
			Str("subject", bundle.Attestation.Subject).
			Str("kind", bundle.Attestation.Type.String()).
			Msg("proof publication degraded, issuing without anchored proof")
		return ""
	}
	return uri
}

// publish is the fallible half of Publish.
func (c *Composer) publish(ctx context.Context, bundle domain.ProofBundle) (string, error) {
	data, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("proofs: encode bundle: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cid, err := c.uploader.Upload(ctx, data)
	if err != nil {
		return "", fmt.Errorf("proofs: upload bundle: %w", err)
	}
	return ipfs.URI(cid), nil
}

// publishFailureReason labels a publish error for metrics.
func publishFailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ipfs.ErrDisabled):
		return "disabled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "upload"
	}
}

// InputHash commits to a decrypted feature set: the keccak256 of its
// canonical JSON, 0x-prefixed. The raw features never leave the request.
func InputHash(features any) (string, error) {
	data, err := json.Marshal(features)
	if err != nil {
		return "", fmt.Errorf("proofs: encode features: %w", err)
	}
	return hexutil.Encode(crypto.Keccak256(data)), nil
}
