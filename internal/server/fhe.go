package server

import (
	"net/http"

	"credit-attestor/internal/domain"
	"credit-attestor/internal/fhe"
)

type publicKeyResponse struct {
	Success    bool   `json:"success"`
	PublicKey  string `json:"publicKey"`
	FHEEnabled bool   `json:"fheEnabled"`
}

func (s *Server) handleFHEPublicKey(w http.ResponseWriter, r *http.Request) {
	key, err := s.features.PublicKey(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "encryption key unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, publicKeyResponse{
		Success:    true,
		PublicKey:  key,
		FHEEnabled: s.features.Mode() == fhe.ModeGateway,
	})
}

type encryptRequest struct {
	Features    *domain.WalletFeatures `json:"features,omitempty"`
	PoolMetrics *domain.PoolMetrics    `json:"poolMetrics,omitempty"`
}

type encryptResponse struct {
	Success              bool   `json:"success"`
	EncryptedFeatures    string `json:"encryptedFeatures,omitempty"`
	EncryptedPoolMetrics string `json:"encryptedPoolMetrics,omitempty"`
}

func (s *Server) handleFHEEncrypt(w http.ResponseWriter, r *http.Request) {
	var req encryptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Features == nil && req.PoolMetrics == nil {
		writeError(w, http.StatusBadRequest, "missing required field", "one of features or poolMetrics is required")
		return
	}

	var resp encryptResponse
	if req.Features != nil {
		enc, err := s.features.Encrypt(r.Context(), req.Features)
		if err != nil {
			writeError(w, http.StatusBadGateway, "encryption failed", err.Error())
			return
		}
		resp.EncryptedFeatures = enc
	}
	if req.PoolMetrics != nil {
		enc, err := s.features.Encrypt(r.Context(), req.PoolMetrics)
		if err != nil {
			writeError(w, http.StatusBadGateway, "encryption failed", err.Error())
			return
		}
		resp.EncryptedPoolMetrics = enc
	}

	resp.Success = true
	writeJSON(w, http.StatusOK, resp)
}
