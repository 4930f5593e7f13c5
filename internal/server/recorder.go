package server

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"credit-attestor/internal/domain"
	"credit-attestor/internal/events"
	"credit-attestor/internal/observability"
	"credit-attestor/internal/storage"
)

// EventPublisher forwards issuance events to an external broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Issuance is everything the recorder keeps about one signed
// attestation. It repeats only what the signature already discloses
// plus the input hash commitment.
type Issuance struct {
	Kind        domain.Kind
	Subject     string
	Attestation domain.Attestation
	Signature   string
	InputHash   string
	ProofURI    string
	Degraded    bool
	Shape       string // legacy | structured | batch
	Seconds     float64
}

// Recorder journals signed attestations and fans out issuance events.
// Every write is best effort: a failed journal row or broker publish is
// logged and dropped, it never fails the response that carried the
// attestation.
type Recorder struct {
	journal   storage.IssuanceStore
	points    storage.IssuancePointStore
	hub       *events.Hub
	publisher EventPublisher
	log       zerolog.Logger
}

// NewRecorder wires the issuance write path. Any sink may be nil; a nil
// sink is skipped.
func NewRecorder(journal storage.IssuanceStore, points storage.IssuancePointStore, hub *events.Hub, publisher EventPublisher, log zerolog.Logger) *Recorder {
	return &Recorder{
		journal:   journal,
		points:    points,
		hub:       hub,
		publisher: publisher,
		log:       log,
	}
}

// Record accounts for one signed attestation across metrics, journal,
// analytics and event sinks.
func (r *Recorder) Record(ctx context.Context, iss Issuance) {
	observability.RecordIssuance(iss.Kind.String(), iss.Shape, iss.Attestation.Value, iss.Seconds)
	observability.MarkIssuanceNow(iss.Attestation.IssuedAt)

	rec := &domain.IssuanceRecord{
		ID:             uuid.NewString(),
		Kind:           iss.Kind,
		Subject:        iss.Subject,
		Score:          iss.Attestation.Value,
		Classification: iss.Attestation.Classification,
		PolicyVersion:  iss.Attestation.PolicyVersion,
		InputHash:      iss.InputHash,
		ProofURI:       iss.ProofURI,
		Signer:         iss.Attestation.Operator,
		Signature:      iss.Signature,
		IssuedAt:       iss.Attestation.IssuedAt,
		Expiry:         iss.Attestation.Expiry,
	}

	if r.journal != nil {
		start := time.Now()
		err := r.journal.Insert(ctx, rec)
		observability.RecordDBQuery("journal", "insert", time.Since(start).Seconds(), err)
		if err != nil {
			r.log.Warn().Err(err).Str("id", rec.ID).Msg("issuance journal write failed")
		}
	}

	if r.points != nil {
		point := &domain.IssuancePoint{
			Kind:           rec.Kind,
			Score:          rec.Score,
			Classification: rec.Classification,
			Degraded:       iss.Degraded,
			DurationMs:     int64(iss.Seconds * 1000),
			IssuedAtMs:     rec.IssuedAt * 1000,
		}
		start := time.Now()
		err := r.points.InsertBulk(ctx, []*domain.IssuancePoint{point})
		observability.RecordDBQuery("analytics", "insert", time.Since(start).Seconds(), err)
		if err != nil {
			r.log.Warn().Err(err).Msg("issuance analytics write failed")
		}
	}

	ev := events.FromRecord(rec, iss.Degraded)
	if r.hub != nil {
		r.hub.Publish(ev)
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, ev); err != nil {
			r.log.Warn().Err(err).Str("id", rec.ID).Msg("issuance event publish failed")
		}
	}
}
