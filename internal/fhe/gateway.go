package fhe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"credit-attestor/internal/domain"
)

// Default configuration values for the gateway client.
const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
)

// GatewaySource delegates envelope handling to the external decryption
// gateway over HTTP.
type GatewaySource struct {
	endpoint   string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
}

var _ Source = (*GatewaySource)(nil)

// GatewayOption configures GatewaySource.
type GatewayOption func(*GatewaySource)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *GatewaySource) {
		g.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) GatewayOption {
	return func(g *GatewaySource) {
		g.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) GatewayOption {
	return func(g *GatewaySource) {
		g.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *GatewaySource) {
		g.client = client
	}
}

// NewGatewaySource creates a client for the decryption gateway.
func NewGatewaySource(endpoint string, opts ...GatewayOption) *GatewaySource {
	g := &GatewaySource{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Mode reports gateway.
func (g *GatewaySource) Mode() string {
	return ModeGateway
}

type publicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// PublicKey fetches the gateway's encryption key.
func (g *GatewaySource) PublicKey(ctx context.Context) (string, error) {
	var out publicKeyResponse
	if err := g.call(ctx, http.MethodGet, "/public-key", nil, &out); err != nil {
		return "", err
	}
	return out.PublicKey, nil
}

type encryptRequest struct {
	Payload any `json:"payload"`
}

type encryptResponse struct {
	Ciphertext string `json:"ciphertext"`
}

// Encrypt asks the gateway to seal a payload.
func (g *GatewaySource) Encrypt(ctx context.Context, payload any) (string, error) {
	var out encryptResponse
	if err := g.call(ctx, http.MethodPost, "/encrypt", encryptRequest{Payload: payload}, &out); err != nil {
		return "", err
	}
	return out.Ciphertext, nil
}

type decryptRequest struct {
	Ciphertext string `json:"ciphertext"`
}

type decryptResponse struct {
	Features domain.WalletFeatures `json:"features"`
}

// DecryptWallet asks the gateway to open an envelope.
func (g *GatewaySource) DecryptWallet(ctx context.Context, enc string) (domain.WalletFeatures, error) {
	var out decryptResponse
	if err := g.call(ctx, http.MethodPost, "/decrypt", decryptRequest{Ciphertext: enc}, &out); err != nil {
		return domain.WalletFeatures{}, err
	}
	return out.Features, nil
}

// call performs one gateway request with retries and exponential backoff.
func (g *GatewaySource) call(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("fhe: marshal request: %w", err)
		}
	}

	delay := g.retryDelay
	var lastErr error

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > g.maxDelay {
				delay = g.maxDelay
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, g.endpoint+path, reader)
		if err != nil {
			return fmt.Errorf("fhe: create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := g.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("fhe: unmarshal response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("fhe: gateway unavailable: %w", lastErr)
}
