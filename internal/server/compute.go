package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"credit-attestor/internal/batch"
	"credit-attestor/internal/domain"
	"credit-attestor/internal/ipfs"
	"credit-attestor/internal/observability"
	"credit-attestor/internal/proofs"
)

type computePCSRequest struct {
	EncryptedFeatures string `json:"encryptedFeatures"`
	Subject           string `json:"subject"`
}

type computePRSRequest struct {
	PoolID      string              `json:"poolId"`
	PoolMetrics *domain.PoolMetrics `json:"poolMetrics"`
}

// computeResponse is the legacy-shape success envelope shared by the
// PCS and PRS endpoints.
type computeResponse struct {
	Success     bool                     `json:"success"`
	Attestation domain.Attestation       `json:"attestation"`
	Signature   string                   `json:"signature"`
	Computation domain.ComputationResult `json:"computation"`
	FHEDegraded bool                     `json:"fheDegraded,omitempty"`
}

func (s *Server) handleComputePCS(w http.ResponseWriter, r *http.Request) {
	var req computePCSRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Subject == "" || req.EncryptedFeatures == "" {
		observability.RecordComputeError(domain.KindPCS.String(), "validation")
		writeError(w, http.StatusBadRequest, "missing required field", "subject and encryptedFeatures are required")
		return
	}

	start := time.Now()
	features, degraded := s.decryptWallet(r.Context(), req.EncryptedFeatures)
	result := s.engine.ComputePCS(features)
	att := s.builder.BuildLegacy(domain.KindPCS, req.Subject, result, false)

	signed, err := s.signer.SignLegacy(att)
	if err != nil {
		observability.RecordSigningError()
		s.log.Error().Err(err).Msg("legacy signing failed")
		writeError(w, http.StatusInternalServerError, "attestation signing failed", "")
		return
	}

	s.recorder.Record(r.Context(), Issuance{
		Kind:        domain.KindPCS,
		Subject:     req.Subject,
		Attestation: signed.Attestation,
		Signature:   signed.Signature,
		InputHash:   s.inputHash(features),
		Degraded:    degraded,
		Shape:       "legacy",
		Seconds:     time.Since(start).Seconds(),
	})

	writeJSON(w, http.StatusOK, computeResponse{
		Success:     true,
		Attestation: signed.Attestation,
		Signature:   signed.Signature,
		Computation: result,
		FHEDegraded: degraded,
	})
}

func (s *Server) handleComputePRS(w http.ResponseWriter, r *http.Request) {
	var req computePRSRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PoolID == "" || req.PoolMetrics == nil {
		observability.RecordComputeError(domain.KindPRS.String(), "validation")
		writeError(w, http.StatusBadRequest, "missing required field", "poolId and poolMetrics are required")
		return
	}

	start := time.Now()
	result := s.engine.ComputePRS(*req.PoolMetrics)
	att := s.builder.BuildLegacy(domain.KindPRS, req.PoolID, result, false)

	signed, err := s.signer.SignLegacy(att)
	if err != nil {
		observability.RecordSigningError()
		s.log.Error().Err(err).Msg("legacy signing failed")
		writeError(w, http.StatusInternalServerError, "attestation signing failed", "")
		return
	}

	s.recorder.Record(r.Context(), Issuance{
		Kind:        domain.KindPRS,
		Subject:     req.PoolID,
		Attestation: signed.Attestation,
		Signature:   signed.Signature,
		InputHash:   s.inputHash(req.PoolMetrics),
		Shape:       "legacy",
		Seconds:     time.Since(start).Seconds(),
	})

	writeJSON(w, http.StatusOK, computeResponse{
		Success:     true,
		Attestation: signed.Attestation,
		Signature:   signed.Signature,
		Computation: result,
	})
}

type structuredPCSRequest struct {
	EncryptedFeatures string `json:"encryptedFeatures"`
	Subject           string `json:"subject"`
	IncludeMetadata   *bool  `json:"includeMetadata,omitempty"` // default true
}

type structuredPRSRequest struct {
	PoolID          string              `json:"poolId"`
	PoolMetrics     *domain.PoolMetrics `json:"poolMetrics"`
	IncludeMetadata *bool               `json:"includeMetadata,omitempty"` // default true
}

// structuredRequestBody is the wire rendering of a structured
// attestation request: fixed-width fields as 0x hex, the payload as 0x
// hex bytes.
type structuredRequestBody struct {
	Subject         common.Hash   `json:"subject"`
	AttestationType common.Hash   `json:"attestationType"`
	Data            hexutil.Bytes `json:"data"`
	Expiry          uint64        `json:"expiry"`
	ProofURI        string        `json:"proofUri"`
}

type structuredComputeResponse struct {
	Success             bool                     `json:"success"`
	Request             structuredRequestBody    `json:"request"`
	Signature           string                   `json:"signature"`
	Signer              string                   `json:"signer"`
	Computation         domain.ComputationResult `json:"computation"`
	IPFSURI             string                   `json:"ipfsUri"`
	MetadataURI         string                   `json:"metadataUri"`
	IncludesProofBundle bool                     `json:"includesProofBundle"`
	FHEDegraded         bool                     `json:"fheDegraded,omitempty"`
}

func (s *Server) handleComputePCSStructured(w http.ResponseWriter, r *http.Request) {
	var req structuredPCSRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Subject == "" || req.EncryptedFeatures == "" {
		observability.RecordComputeError(domain.KindPCS.String(), "validation")
		writeError(w, http.StatusBadRequest, "missing required field", "subject and encryptedFeatures are required")
		return
	}

	start := time.Now()
	features, degraded := s.decryptWallet(r.Context(), req.EncryptedFeatures)
	result := s.engine.ComputePCS(features)
	att := s.builder.BuildLegacy(domain.KindPCS, req.Subject, result, false)

	s.respondStructured(w, r, structuredIssue{
		kind:            domain.KindPCS,
		subject:         req.Subject,
		attestation:     att,
		result:          result,
		inputHash:       s.inputHash(features),
		includeMetadata: req.IncludeMetadata == nil || *req.IncludeMetadata,
		degraded:        degraded,
		start:           start,
	})
}

func (s *Server) handleComputePRSStructured(w http.ResponseWriter, r *http.Request) {
	var req structuredPRSRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PoolID == "" || req.PoolMetrics == nil {
		observability.RecordComputeError(domain.KindPRS.String(), "validation")
		writeError(w, http.StatusBadRequest, "missing required field", "poolId and poolMetrics are required")
		return
	}

	start := time.Now()
	result := s.engine.ComputePRS(*req.PoolMetrics)
	att := s.builder.BuildLegacy(domain.KindPRS, req.PoolID, result, false)

	s.respondStructured(w, r, structuredIssue{
		kind:            domain.KindPRS,
		subject:         req.PoolID,
		attestation:     att,
		result:          result,
		inputHash:       s.inputHash(req.PoolMetrics),
		includeMetadata: req.IncludeMetadata == nil || *req.IncludeMetadata,
		start:           start,
	})
}

// structuredIssue carries one scored attestation through the shared
// publish, sign and respond tail of the structured endpoints.
type structuredIssue struct {
	kind            domain.Kind
	subject         string
	attestation     domain.Attestation
	result          domain.ComputationResult
	inputHash       string
	includeMetadata bool
	degraded        bool
	start           time.Time
}

func (s *Server) respondStructured(w http.ResponseWriter, r *http.Request, iss structuredIssue) {
	uri := ""
	if iss.includeMetadata {
		bundle := s.composer.Compose(iss.attestation, iss.inputHash, iss.result)
		uri = s.composer.Publish(r.Context(), bundle)
	}

	sreq, err := s.builder.BuildStructured(iss.attestation, uri)
	if err != nil {
		s.log.Error().Err(err).Msg("structured encoding failed")
		writeError(w, http.StatusInternalServerError, "attestation encoding failed", "")
		return
	}

	signed, err := s.signer.SignStructured(sreq)
	if err != nil {
		observability.RecordSigningError()
		s.log.Error().Err(err).Msg("structured signing failed")
		writeError(w, http.StatusInternalServerError, "attestation signing failed", "")
		return
	}

	s.recorder.Record(r.Context(), Issuance{
		Kind:        iss.kind,
		Subject:     iss.subject,
		Attestation: iss.attestation,
		Signature:   hexutil.Encode(signed.Signature),
		InputHash:   iss.inputHash,
		ProofURI:    uri,
		Degraded:    iss.degraded,
		Shape:       "structured",
		Seconds:     time.Since(iss.start).Seconds(),
	})

	writeJSON(w, http.StatusOK, structuredComputeResponse{
		Success: true,
		Request: structuredRequestBody{
			Subject:         sreq.Subject,
			AttestationType: sreq.AttestationType,
			Data:            hexutil.Bytes(sreq.Data),
			Expiry:          sreq.Expiry,
			ProofURI:        sreq.ProofURI,
		},
		Signature:           hexutil.Encode(signed.Signature),
		Signer:              signed.Signer.Hex(),
		Computation:         iss.result,
		IPFSURI:             uri,
		MetadataURI:         s.metadataURL(uri),
		IncludesProofBundle: uri != "",
		FHEDegraded:         iss.degraded,
	})
}

type batchComputeRequest struct {
	Requests []batch.Item `json:"requests"`
}

type batchComputeResponse struct {
	Success bool           `json:"success"`
	Results []batch.Result `json:"results"`
}

func (s *Server) handleComputeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchComputeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	results, err := s.batch.Process(r.Context(), req.Requests)
	if err != nil {
		if errors.Is(err, batch.ErrBatchSize) {
			writeError(w, http.StatusBadRequest, "invalid batch", err.Error())
			return
		}
		s.log.Error().Err(err).Msg("batch processing failed")
		writeError(w, http.StatusInternalServerError, "batch processing failed", "")
		return
	}

	for _, res := range results {
		if !res.Success {
			continue
		}
		subject := res.Subject
		if res.PoolID != "" {
			subject = res.PoolID
		}
		s.recorder.Record(r.Context(), Issuance{
			Kind:        domain.Kind(res.Type),
			Subject:     subject,
			Attestation: *res.Attestation,
			Signature:   res.Signature,
			Degraded:    res.FHEDegraded,
			Shape:       "batch",
			Seconds:     res.DurationSeconds,
		})
	}

	writeJSON(w, http.StatusOK, batchComputeResponse{Success: true, Results: results})
}

// decryptWallet recovers wallet features from an envelope, downgrading to
// zero-valued features with the degraded flag instead of failing.
func (s *Server) decryptWallet(ctx context.Context, enc string) (domain.WalletFeatures, bool) {
	features, err := s.features.DecryptWallet(ctx, enc)
	observability.RecordDecrypt(s.features.Mode(), err != nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("feature decryption degraded, scoring zero-valued features")
		return domain.WalletFeatures{}, true
	}
	return features, false
}

// inputHash commits to the scored inputs for journal and proof bundles.
func (s *Server) inputHash(features any) string {
	h, err := proofs.InputHash(features)
	if err != nil {
		s.log.Warn().Err(err).Msg("input hash failed")
		return ""
	}
	return h
}

// metadataURL renders the public gateway address of a published bundle.
func (s *Server) metadataURL(uri string) string {
	if uri == "" {
		return ""
	}
	return s.gateway + ipfs.CIDFromURI(uri)
}
