package server

import (
	"encoding/json"
	"net/http"
)

// maxBodyBytes caps inbound request bodies. Compute requests are small;
// anything beyond this is either a mistake or abuse.
const maxBodyBytes = 1 << 20

// errorBody is the uniform error shape: every failure carries a machine
// readable message and optionally a human readable elaboration.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}

// decodeJSON parses the request body into dst. On failure it writes the
// 400 response itself and reports false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return false
	}
	return true
}
