// Package batch fans a bounded list of heterogeneous compute requests
// through the single-item pipeline: decrypt, score, build, sign. Items
// fail independently; one malformed entry never aborts its neighbours.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"credit-attestor/internal/attestation"
	"credit-attestor/internal/domain"
	"credit-attestor/internal/fhe"
	"credit-attestor/internal/observability"
	"credit-attestor/internal/scoring"
	"credit-attestor/internal/signer"
)

// MaxBatchSize bounds how many items a single batch may carry.
const MaxBatchSize = 10

// ErrBatchSize rejects a whole batch before any item runs.
var ErrBatchSize = errors.New("batch size out of bounds")

// Item is one entry in a compute batch. Type selects the pipeline; the
// remaining fields are the union of the PCS and PRS request shapes.
type Item struct {
	Type              string              `json:"type"`
	Subject           string              `json:"subject,omitempty"`
	PoolID            string              `json:"poolId,omitempty"`
	EncryptedFeatures string              `json:"encryptedFeatures,omitempty"`
	PoolMetrics       *domain.PoolMetrics `json:"poolMetrics,omitempty"`
}

// Result is the outcome for one item, placed at that item's input index.
// Failed items carry only Success=false and the error message.
type Result struct {
	Success     bool                      `json:"success"`
	Type        string                    `json:"type,omitempty"`
	Subject     string                    `json:"subject,omitempty"`
	PoolID      string                    `json:"poolId,omitempty"`
	Attestation *domain.Attestation       `json:"attestation,omitempty"`
	Signature   string                    `json:"signature,omitempty"`
	Computation *domain.ComputationResult `json:"computation,omitempty"`
	FHEDegraded bool                      `json:"fheDegraded,omitempty"`
	Error       string                    `json:"error,omitempty"`

	// DurationSeconds is how long the item pipeline ran. Not part of
	// the wire response; consumed by the issuance recorder.
	DurationSeconds float64 `json:"-"`
}

// Options configures an Orchestrator.
type Options struct {
	Engine   *scoring.Engine
	Builder  *attestation.Builder
	Signer   *signer.Signer
	Features fhe.Source
	Logger   zerolog.Logger
}

// Orchestrator runs batches of compute requests sequentially, isolating
// per-item failures.
type Orchestrator struct {
	engine   *scoring.Engine
	builder  *attestation.Builder
	signer   *signer.Signer
	features fhe.Source
	logger   zerolog.Logger
}

// New returns an Orchestrator for the given options.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		engine:   opts.Engine,
		builder:  opts.Builder,
		signer:   opts.Signer,
		features: opts.Features,
		logger:   opts.Logger,
	}
}

// Process validates the batch bound and runs every item. The returned
// slice always aligns one result per input item in input order. A non-nil
// error means the batch was rejected wholesale and zero items ran.
func (o *Orchestrator) Process(ctx context.Context, items []Item) ([]Result, error) {
	if len(items) == 0 || len(items) > MaxBatchSize {
		observability.RecordBatchRejected()
		return nil, fmt.Errorf("%w: got %d items, want 1 to %d", ErrBatchSize, len(items), MaxBatchSize)
	}

	results := make([]Result, len(items))
	for i, item := range items {
		results[i] = o.processItem(ctx, item)
		if !results[i].Success {
			o.logger.Debug().
				Int("index", i).
				Str("type", item.Type).
				Str("error", results[i].Error).
				Msg("batch item failed")
		}
	}

	observability.RecordBatch()
	return results, nil
}

func (o *Orchestrator) processItem(ctx context.Context, item Item) Result {
	start := time.Now()

	var res Result
	switch strings.ToUpper(strings.TrimSpace(item.Type)) {
	case string(domain.KindPCS):
		res = o.processPCS(ctx, item)
	case string(domain.KindPRS):
		res = o.processPRS(item)
	default:
		observability.RecordBatchItem("unknown", false)
		res = Result{Success: false, Type: item.Type, Error: fmt.Sprintf("unknown request type %q", item.Type)}
	}

	res.DurationSeconds = time.Since(start).Seconds()
	return res
}

func (o *Orchestrator) processPCS(ctx context.Context, item Item) Result {
	fail := func(msg string) Result {
		observability.RecordBatchItem(domain.KindPCS.String(), false)
		return Result{Success: false, Type: domain.KindPCS.String(), Subject: item.Subject, Error: msg}
	}

	if item.Subject == "" {
		return fail("missing subject")
	}
	if item.EncryptedFeatures == "" {
		return fail("missing encryptedFeatures")
	}

	features, degraded := o.decrypt(ctx, item.EncryptedFeatures)
	result := o.engine.ComputePCS(features)
	att := o.builder.BuildLegacy(domain.KindPCS, item.Subject, result, true)

	signed, err := o.signer.SignLegacy(att)
	if err != nil {
		observability.RecordSigningError()
		return fail(fmt.Sprintf("signing failed: %v", err))
	}

	observability.RecordBatchItem(domain.KindPCS.String(), true)
	return Result{
		Success:     true,
		Type:        domain.KindPCS.String(),
		Subject:     item.Subject,
		Attestation: &signed.Attestation,
		Signature:   signed.Signature,
		Computation: &result,
		FHEDegraded: degraded,
	}
}

func (o *Orchestrator) processPRS(item Item) Result {
	fail := func(msg string) Result {
		observability.RecordBatchItem(domain.KindPRS.String(), false)
		return Result{Success: false, Type: domain.KindPRS.String(), PoolID: item.PoolID, Error: msg}
	}

	if item.PoolID == "" {
		return fail("missing poolId")
	}
	if item.PoolMetrics == nil {
		return fail("missing poolMetrics")
	}

	result := o.engine.ComputePRS(*item.PoolMetrics)
	att := o.builder.BuildLegacy(domain.KindPRS, item.PoolID, result, true)

	signed, err := o.signer.SignLegacy(att)
	if err != nil {
		observability.RecordSigningError()
		return fail(fmt.Sprintf("signing failed: %v", err))
	}

	observability.RecordBatchItem(domain.KindPRS.String(), true)
	return Result{
		Success:     true,
		Type:        domain.KindPRS.String(),
		PoolID:      item.PoolID,
		Attestation: &signed.Attestation,
		Signature:   signed.Signature,
		Computation: &result,
	}
}

// decrypt recovers wallet features from the envelope. Decryption trouble
// downgrades the item to zero-valued features with the degraded flag set
// instead of failing it.
func (o *Orchestrator) decrypt(ctx context.Context, enc string) (domain.WalletFeatures, bool) {
	features, err := o.features.DecryptWallet(ctx, enc)
	observability.RecordDecrypt(o.features.Mode(), err != nil)
	if err != nil {
		o.logger.Warn().Err(err).Msg("feature decryption degraded, scoring zero-valued features")
		return domain.WalletFeatures{}, true
	}
	return features, false
}
