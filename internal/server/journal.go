package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"credit-attestor/internal/domain"
	"credit-attestor/internal/storage"
)

// defaultListLimit caps subject journal listings unless the caller asks
// for less.
const defaultListLimit = 20

// issuanceBody is the wire rendering of one journal row.
type issuanceBody struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Subject        string `json:"subject"`
	Score          int    `json:"score"`
	Classification string `json:"classification"`
	PolicyVersion  string `json:"policyVersion"`
	InputHash      string `json:"inputHash,omitempty"`
	ProofURI       string `json:"proofUri,omitempty"`
	Signer         string `json:"signer"`
	Signature      string `json:"signature"`
	IssuedAt       int64  `json:"issuedAt"`
	Expiry         int64  `json:"expiry"`
}

func toIssuanceBody(rec *domain.IssuanceRecord) issuanceBody {
	return issuanceBody{
		ID:             rec.ID,
		Kind:           rec.Kind.String(),
		Subject:        rec.Subject,
		Score:          rec.Score,
		Classification: rec.Classification,
		PolicyVersion:  rec.PolicyVersion,
		InputHash:      rec.InputHash,
		ProofURI:       rec.ProofURI,
		Signer:         rec.Signer,
		Signature:      rec.Signature,
		IssuedAt:       rec.IssuedAt,
		Expiry:         rec.Expiry,
	}
}

func (s *Server) handleGetIssuance(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "issuance journal disabled", "")
		return
	}

	id := r.PathValue("id")
	rec, err := s.journal.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "issuance not found", id)
			return
		}
		s.log.Error().Err(err).Str("id", id).Msg("journal lookup failed")
		writeError(w, http.StatusInternalServerError, "journal lookup failed", "")
		return
	}
	writeJSON(w, http.StatusOK, toIssuanceBody(rec))
}

type listIssuancesResponse struct {
	Success   bool           `json:"success"`
	Subject   string         `json:"subject"`
	Issuances []issuanceBody `json:"issuances"`
}

func (s *Server) handleListIssuances(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "issuance journal disabled", "")
		return
	}

	subject := r.URL.Query().Get("subject")
	if subject == "" {
		writeError(w, http.StatusBadRequest, "missing required parameter", "subject is required")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid parameter", "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	recs, err := s.journal.GetBySubject(r.Context(), subject, limit)
	if err != nil {
		s.log.Error().Err(err).Str("subject", subject).Msg("journal listing failed")
		writeError(w, http.StatusInternalServerError, "journal listing failed", "")
		return
	}

	bodies := make([]issuanceBody, 0, len(recs))
	for _, rec := range recs {
		bodies = append(bodies, toIssuanceBody(rec))
	}
	writeJSON(w, http.StatusOK, listIssuancesResponse{Success: true, Subject: subject, Issuances: bodies})
}

type analyticsSummaryResponse struct {
	Success bool                   `json:"success"`
	Summary domain.IssuanceSummary `json:"summary"`
	Start   int64                  `json:"start"`
	End     int64                  `json:"end"`
}

// handleAnalyticsSummary aggregates the issuance timeseries for one kind
// over [start, end] unix seconds; the window defaults to the last day.
func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	if s.points == nil {
		writeError(w, http.StatusNotFound, "issuance analytics disabled", "")
		return
	}

	kind := domain.Kind(r.URL.Query().Get("kind"))
	if !kind.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid parameter", "kind must be PCS or PRS")
		return
	}

	end := time.Now().Unix()
	if raw := r.URL.Query().Get("end"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid parameter", "end must be a unix timestamp")
			return
		}
		end = n
	}

	start := end - int64(24*time.Hour/time.Second)
	if raw := r.URL.Query().Get("start"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid parameter", "start must be a unix timestamp")
			return
		}
		start = n
	}
	if start > end {
		writeError(w, http.StatusBadRequest, "invalid parameter", "start must not be after end")
		return
	}

	summary, err := s.points.Summary(r.Context(), kind, start*1000, end*1000)
	if err != nil {
		s.log.Error().Err(err).Str("kind", kind.String()).Msg("analytics summary failed")
		writeError(w, http.StatusInternalServerError, "analytics summary failed", "")
		return
	}

	writeJSON(w, http.StatusOK, analyticsSummaryResponse{
		Success: true,
		Summary: *summary,
		Start:   start,
		End:     end,
	})
}
