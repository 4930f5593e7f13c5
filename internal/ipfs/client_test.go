package ipfs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestContentID(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "empty block", data: nil, want: "QmdfTbBqBPQ7VNxZEYEj14VmRuZBkqFbiwReogJgS1zR1n"},
		{name: "hello world", data: []byte("hello world"), want: "QmaozNR7DZHQK1ZcU9p7QdrshMvXqWK6gpu5rmrkPdT3L4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContentID(tt.data); got != tt.want {
				t.Errorf("ContentID() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestContentIDShape(t *testing.T) {
	cid := ContentID([]byte("some bundle"))
	if !strings.HasPrefix(cid, "Qm") || len(cid) != 46 {
		t.Errorf("ContentID() = %q, want 46-char Qm-prefixed CIDv0", cid)
	}
	if ContentID([]byte("a")) == ContentID([]byte("b")) {
		t.Error("distinct blocks share a content id")
	}
}

func TestURIHelpers(t *testing.T) {
	cid := "QmaozNR7DZHQK1ZcU9p7QdrshMvXqWK6gpu5rmrkPdT3L4"
	uri := URI(cid)
	if uri != "ipfs://"+cid {
		t.Errorf("URI() = %q", uri)
	}
	if got := CIDFromURI(uri); got != cid {
		t.Errorf("CIDFromURI(uri) = %q, want %q", got, cid)
	}
	if got := CIDFromURI(cid); got != cid {
		t.Errorf("CIDFromURI(bare) = %q, want %q", got, cid)
	}
}

// fakeNode serves just enough of the Kubo RPC surface for the client.
func fakeNode(t *testing.T) (*httptest.Server, map[string][]byte) {
	t.Helper()
	blocks := make(map[string][]byte)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/block/put", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("format"); got != "v0" {
			t.Errorf("block/put format = %q, want v0", got)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cid := ContentID(data)
		blocks[cid] = data
		json.NewEncoder(w).Encode(map[string]any{"Key": cid, "Size": len(data)})
	})
	mux.HandleFunc("/api/v0/block/get", func(w http.ResponseWriter, r *http.Request) {
		data, ok := blocks[r.URL.Query().Get("arg")]
		if !ok {
			http.Error(w, `{"Message":"block not found"}`, http.StatusInternalServerError)
			return
		}
		w.Write(data)
	})
	mux.HandleFunc("/api/v0/pin/add", func(w http.ResponseWriter, r *http.Request) {
		cid := r.URL.Query().Get("arg")
		if _, ok := blocks[cid]; !ok {
			http.Error(w, `{"Message":"block not found"}`, http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"Pins": []string{cid}})
	})
	mux.HandleFunc("/api/v0/version", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"Version": "0.29.0"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, blocks
}

func TestClientUploadRoundTrip(t *testing.T) {
	srv, _ := fakeNode(t)
	c := NewClient(srv.URL)
	ctx := context.Background()

	data := []byte(`{"attestation":"payload"}`)
	cid, err := c.Upload(ctx, data)
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if want := ContentID(data); cid != want {
		t.Errorf("Upload() cid = %s, want %s", cid, want)
	}

	back, err := c.Retrieve(ctx, cid)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if string(back) != string(data) {
		t.Errorf("Retrieve() = %q, want %q", back, data)
	}

	if err := c.Pin(ctx, cid); err != nil {
		t.Errorf("Pin() error: %v", err)
	}
}

func TestClientUploadDetectsCIDMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"Key": "QmWrong", "Size": 1})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithMaxRetries(0))
	if _, err := c.Upload(context.Background(), []byte("x")); !errors.Is(err, ErrCIDMismatch) {
		t.Errorf("Upload() error = %v, want ErrCIDMismatch", err)
	}
}

func TestClientVersion(t *testing.T) {
	srv, _ := fakeNode(t)
	c := NewClient(srv.URL)

	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error: %v", err)
	}
	if v != "0.29.0" {
		t.Errorf("Version() = %q, want 0.29.0", v)
	}
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"Version": "0.29.0"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithMaxRetries(3), WithRetryDelay(time.Millisecond))
	if _, err := c.Version(context.Background()); err != nil {
		t.Fatalf("Version() error after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("attempts = %d, want 3", calls.Load())
	}
}

func TestClientExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithMaxRetries(1), WithRetryDelay(time.Millisecond))
	if _, err := c.Version(context.Background()); err == nil {
		t.Error("Version() succeeded against a dead node")
	}
}

func TestClientHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, WithMaxRetries(5), WithRetryDelay(50*time.Millisecond))
	if _, err := c.Version(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Version() error = %v, want context.Canceled", err)
	}
}

func TestNullNode(t *testing.T) {
	var n Node = Null{}
	ctx := context.Background()

	if _, err := n.Upload(ctx, []byte("x")); !errors.Is(err, ErrDisabled) {
		t.Errorf("Upload error = %v, want ErrDisabled", err)
	}
	if _, err := n.Retrieve(ctx, "Qm"); !errors.Is(err, ErrDisabled) {
		t.Errorf("Retrieve error = %v, want ErrDisabled", err)
	}
	if err := n.Pin(ctx, "Qm"); !errors.Is(err, ErrDisabled) {
		t.Errorf("Pin error = %v, want ErrDisabled", err)
	}
	if _, err := n.Version(ctx); !errors.Is(err, ErrDisabled) {
		t.Errorf("Version error = %v, want ErrDisabled", err)
	}
}
