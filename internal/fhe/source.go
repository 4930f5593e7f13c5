// Package fhe is the feature decryption boundary. Scoring inputs arrive
// as opaque envelopes; a Source turns them back into features. The
// service never implements homomorphic encryption itself: it either
// unwraps plaintext envelopes (mock mode) or delegates to the external
// decryption gateway. Which variant runs is a configuration choice, the
// envelope contents are never sniffed to pick a path.
package fhe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"credit-attestor/internal/domain"
)

// Envelope schemes.
const (
	SchemePlaintext = "plaintext"
	SchemeTFHE      = "tfhe"
)

// Source modes reported by Mode and the health endpoint.
const (
	ModePlaintext = "plaintext"
	ModeGateway   = "gateway"
)

// Source encrypts and decrypts feature envelopes.
type Source interface {
	// Mode names the active variant: plaintext or gateway.
	Mode() string
	// PublicKey returns the encryption key material clients use.
	PublicKey(ctx context.Context) (string, error)
	// Encrypt wraps a feature payload into an envelope string.
	Encrypt(ctx context.Context, payload any) (string, error)
	// DecryptWallet recovers wallet features from an envelope.
	DecryptWallet(ctx context.Context, envelope string) (domain.WalletFeatures, error)
}

// envelope is the mock wire format: base64 over a small JSON wrapper.
type envelope struct {
	Scheme  string          `json:"scheme"`
	Payload json.RawMessage `json:"payload"`
}

// PlaintextSource is the mock-mode Source. Envelopes carry the feature
// JSON in the clear, base64-wrapped only to match the opaque-string
// shape of the real boundary.
type PlaintextSource struct{}

var _ Source = PlaintextSource{}

// NewPlaintextSource returns the mock-mode source.
func NewPlaintextSource() PlaintextSource {
	return PlaintextSource{}
}

// Mode reports plaintext.
func (PlaintextSource) Mode() string {
	return ModePlaintext
}

// PublicKey returns a fixed placeholder; plaintext envelopes need none.
func (PlaintextSource) PublicKey(ctx context.Context) (string, error) {
	return SchemePlaintext, nil
}

// Encrypt wraps payload into a plaintext envelope.
func (PlaintextSource) Encrypt(ctx context.Context, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("fhe: encode payload: %w", err)
	}
	wrapped, err := json.Marshal(envelope{Scheme: SchemePlaintext, Payload: raw})
	if err != nil {
		return "", fmt.Errorf("fhe: encode envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(wrapped), nil
}

// DecryptWallet unwraps a plaintext envelope into wallet features.
func (PlaintextSource) DecryptWallet(ctx context.Context, enc string) (domain.WalletFeatures, error) {
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return domain.WalletFeatures{}, fmt.Errorf("fhe: decode envelope: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.WalletFeatures{}, fmt.Errorf("fhe: parse envelope: %w", err)
	}
	if env.Scheme != SchemePlaintext {
		return domain.WalletFeatures{}, fmt.Errorf("fhe: envelope scheme %q not decryptable in plaintext mode", env.Scheme)
	}

	var features domain.WalletFeatures
	if err := json.Unmarshal(env.Payload, &features); err != nil {
		return domain.WalletFeatures{}, fmt.Errorf("fhe: parse features: %w", err)
	}
	return features, nil
}
