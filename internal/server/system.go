package server

import (
	"context"
	"net/http"
	"time"

	"credit-attestor/internal/fhe"
	"credit-attestor/internal/ipfs"
)

// probeTimeout bounds the liveness probes health checks run against the
// storage node.
const probeTimeout = 2 * time.Second

type healthFHE struct {
	Enabled bool   `json:"enabled"`
	Mode    string `json:"mode"`
}

type healthIPFS struct {
	Enabled   bool `json:"enabled"`
	Available bool `json:"available"`
}

type healthResponse struct {
	Status    string     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Operator  string     `json:"operator"`
	FHE       healthFHE  `json:"fhe"`
	IPFS      healthIPFS `json:"ipfs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Operator:  s.signer.Address().Hex(),
		FHE: healthFHE{
			Enabled: s.features.Mode() == fhe.ModeGateway,
			Mode:    s.features.Mode(),
		},
		IPFS: healthIPFS{
			Enabled:   s.publishingEnabled(),
			Available: s.nodeAvailable(r.Context()),
		},
	})
}

// publishingEnabled reports whether a real storage node is configured.
func (s *Server) publishingEnabled() bool {
	_, disabled := s.node.(ipfs.Null)
	return !disabled
}

// nodeAvailable probes the storage node. Disabled publishing is simply
// unavailable, not an error.
func (s *Server) nodeAvailable(ctx context.Context) bool {
	if !s.publishingEnabled() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	_, err := s.node.Version(ctx)
	return err == nil
}
