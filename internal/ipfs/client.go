// Package ipfs is the content-addressed storage boundary. It speaks the
// Kubo HTTP RPC API and addresses every uploaded block by CIDv0, which
// the client recomputes locally so a misbehaving node cannot hand back a
// wrong identifier.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultEndpoint    = "http://127.0.0.1:5001"
	DefaultGateway     = "https://ipfs.io/ipfs/"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// Node is the storage boundary consumed by the rest of the service.
type Node interface {
	// Upload stores a raw block and returns its CIDv0.
	Upload(ctx context.Context, data []byte) (string, error)
	// Retrieve fetches a raw block by CID.
	Retrieve(ctx context.Context, cid string) ([]byte, error)
	// Pin asks the node to keep a block.
	Pin(ctx context.Context, cid string) error
	// Version reports the node version, doubling as a liveness probe.
	Version(ctx context.Context) (string, error)
}

// Client implements Node over the Kubo HTTP RPC API.
type Client struct {
	endpoint    string
	gateway     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

var _ Node = (*Client)(nil)

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithGateway sets the public gateway base used for metadata URLs.
func WithGateway(base string) ClientOption {
	return func(c *Client) {
		c.gateway = base
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a Kubo RPC client.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:    strings.TrimSuffix(endpoint, "/"),
		gateway:     DefaultGateway,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// blockPutResponse is the node's answer to /api/v0/block/put.
type blockPutResponse struct {
	Key  string `json:"Key"`
	Size int    `json:"Size"`
}

// Upload stores data as a single raw block with a v0 content id, pins it
// implicitly on the node side and verifies the returned CID against the
// locally computed one.
func (c *Client) Upload(ctx context.Context, data []byte) (string, error) {
	query := url.Values{
		"format": {"v0"},
		"mhtype": {"sha2-256"},
		"pin":    {"true"},
	}
	raw, err := c.post(ctx, "/api/v0/block/put", query, func() (io.Reader, string, error) {
		return blockBody(data)
	})
	if err != nil {
		return "", err
	}

	var out blockPutResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("ipfs: unmarshal block/put response: %w", err)
	}

	if want := ContentID(data); out.Key != want {
		return "", fmt.Errorf("%w: node %s, local %s", ErrCIDMismatch, out.Key, want)
	}
	return out.Key, nil
}

// Retrieve fetches the raw block bytes for a CID.
func (c *Client) Retrieve(ctx context.Context, cid string) ([]byte, error) {
	return c.post(ctx, "/api/v0/block/get", url.Values{"arg": {cid}}, nil)
}

// pinAddResponse is the node's answer to /api/v0/pin/add.
type pinAddResponse struct {
	Pins []string `json:"Pins"`
}

// Pin asks the node to hold a block.
func (c *Client) Pin(ctx context.Context, cid string) error {
	raw, err := c.post(ctx, "/api/v0/pin/add", url.Values{"arg": {cid}}, nil)
	if err != nil {
		return err
	}

	var out pinAddResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("ipfs: unmarshal pin/add response: %w", err)
	}
	for _, pinned := range out.Pins {
		if pinned == cid {
			return nil
		}
	}
	return fmt.Errorf("ipfs: node did not confirm pin of %s", cid)
}

// versionResponse is the node's answer to /api/v0/version.
type versionResponse struct {
	Version string `json:"Version"`
}

// Version reports the node's version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	raw, err := c.post(ctx, "/api/v0/version", nil, nil)
	if err != nil {
		return "", err
	}

	var out versionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("ipfs: unmarshal version response: %w", err)
	}
	return out.Version, nil
}

// GatewayURL renders the public gateway address of a CID.
func (c *Client) GatewayURL(cid string) string {
	return c.gateway + cid
}

// post performs one Kubo RPC command with retries and exponential
// backoff. makeBody is invoked per attempt since request bodies cannot
// be replayed; nil means an empty body.
func (c *Client) post(ctx context.Context, apiPath string, query url.Values, makeBody func() (io.Reader, string, error)) ([]byte, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		var body io.Reader
		contentType := ""
		if makeBody != nil {
			var err error
			body, contentType, err = makeBody()
			if err != nil {
				return nil, fmt.Errorf("ipfs: build request body: %w", err)
			}
		}

		target := c.endpoint + apiPath
		if len(query) > 0 {
			target += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
		if err != nil {
			return nil, fmt.Errorf("ipfs: create request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.client.Do(req)
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

		return respBody, nil
	}

	return nil, fmt.Errorf("ipfs: max retries exceeded: %w", lastErr)
}

// blockBody wraps data in the multipart form the block/put command
// expects.
func blockBody(data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "block")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
