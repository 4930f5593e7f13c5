package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"credit-attestor/internal/ipfs"
)

type ipfsStatusResponse struct {
	Enabled   bool   `json:"enabled"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
}

func (s *Server) handleIPFSStatus(w http.ResponseWriter, r *http.Request) {
	resp := ipfsStatusResponse{Enabled: s.publishingEnabled()}
	if resp.Enabled {
		if version, err := s.node.Version(r.Context()); err == nil {
			resp.Available = true
			resp.Version = version
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ipfsMetadataResponse carries a retrieved block: JSON blocks come back
// as-is under metadata, anything else base64-encoded under data.
type ipfsMetadataResponse struct {
	Success  bool            `json:"success"`
	Hash     string          `json:"hash"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Data     string          `json:"data,omitempty"`
}

func (s *Server) handleIPFSMetadata(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")

	data, err := s.node.Retrieve(r.Context(), hash)
	if err != nil {
		writeError(w, http.StatusBadGateway, "storage retrieval failed", err.Error())
		return
	}

	resp := ipfsMetadataResponse{Success: true, Hash: hash}
	if json.Valid(data) {
		resp.Metadata = data
	} else {
		resp.Data = base64.StdEncoding.EncodeToString(data)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ipfsUploadRequest accepts either a raw string payload or an arbitrary
// JSON document; exactly one must be present.
type ipfsUploadRequest struct {
	Data string          `json:"data,omitempty"`
	JSON json.RawMessage `json:"json,omitempty"`
}

type ipfsUploadResponse struct {
	Success    bool   `json:"success"`
	Hash       string `json:"hash"`
	URI        string `json:"uri"`
	GatewayURL string `json:"gatewayUrl"`
}

func (s *Server) handleIPFSUpload(w http.ResponseWriter, r *http.Request) {
	var req ipfsUploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var payload []byte
	switch {
	case len(req.JSON) > 0:
		payload = req.JSON
	case req.Data != "":
		payload = []byte(req.Data)
	default:
		writeError(w, http.StatusBadRequest, "missing required field", "one of data or json is required")
		return
	}

	cid, err := s.node.Upload(r.Context(), payload)
	if err != nil {
		writeError(w, http.StatusBadGateway, "storage upload failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ipfsUploadResponse{
		Success:    true,
		Hash:       cid,
		URI:        ipfs.URI(cid),
		GatewayURL: s.gateway + cid,
	})
}

type ipfsPinResponse struct {
	Success bool   `json:"success"`
	Hash    string `json:"hash"`
	Pinned  bool   `json:"pinned"`
}

func (s *Server) handleIPFSPin(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")

	if err := s.node.Pin(r.Context(), hash); err != nil {
		writeError(w, http.StatusBadGateway, "storage pin failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ipfsPinResponse{Success: true, Hash: hash, Pinned: true})
}
