// Package server is the HTTP surface of the attestation service. Every
// endpoint speaks explicit request and response structs; error responses
// are always the structured {error, details} shape, never bare strings.
package server

import (
	"net/http"

	"github.com/rs/zerolog"

	"credit-attestor/internal/admission"
	"credit-attestor/internal/attestation"
	"credit-attestor/internal/batch"
	"credit-attestor/internal/events"
	"credit-attestor/internal/fhe"
	"credit-attestor/internal/ipfs"
	"credit-attestor/internal/observability"
	"credit-attestor/internal/proofs"
	"credit-attestor/internal/scoring"
	"credit-attestor/internal/signer"
	"credit-attestor/internal/storage"
)

// Options wires a Server. Engine, Builder, Signer, Features and Limiter
// are required; everything else degrades gracefully when absent.
type Options struct {
	Engine   *scoring.Engine
	Builder  *attestation.Builder
	Signer   *signer.Signer
	Features fhe.Source
	Node     ipfs.Node // nil means publishing disabled
	Composer *proofs.Composer
	Batch    *batch.Orchestrator
	Limiter  admission.Limiter

	Journal   storage.IssuanceStore      // nil disables the issuance journal
	Points    storage.IssuancePointStore // nil disables issuance analytics
	Hub       *events.Hub                // nil disables the event stream
	Publisher EventPublisher             // nil disables broker fan-out

	// Gateway is the public gateway base for metadata URLs, for example
	// https://ipfs.io/ipfs/.
	Gateway string

	Logger zerolog.Logger
}

// Server handles the attestation HTTP API.
type Server struct {
	engine   *scoring.Engine
	builder  *attestation.Builder
	signer   *signer.Signer
	features fhe.Source
	node     ipfs.Node
	composer *proofs.Composer
	batch    *batch.Orchestrator
	limiter  admission.Limiter
	recorder *Recorder
	journal  storage.IssuanceStore
	points   storage.IssuancePointStore
	hub      *events.Hub
	gateway  string
	log      zerolog.Logger
}

// New assembles a Server from its components.
func New(opts Options) *Server {
	node := opts.Node
	if node == nil {
		node = ipfs.Null{}
	}
	gateway := opts.Gateway
	if gateway == "" {
		gateway = ipfs.DefaultGateway
	}
	return &Server{
		engine:   opts.Engine,
		builder:  opts.Builder,
		signer:   opts.Signer,
		features: opts.Features,
		node:     node,
		composer: opts.Composer,
		batch:    opts.Batch,
		limiter:  opts.Limiter,
		recorder: NewRecorder(opts.Journal, opts.Points, opts.Hub, opts.Publisher, opts.Logger),
		journal:  opts.Journal,
		points:   opts.Points,
		hub:      opts.Hub,
		gateway:  gateway,
		log:      opts.Logger,
	}
}

// Handler builds the route table wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /fhe/public-key", s.handleFHEPublicKey)
	mux.HandleFunc("POST /fhe/encrypt", s.handleFHEEncrypt)

	mux.HandleFunc("POST /compute/pcs", s.admit(s.handleComputePCS))
	mux.HandleFunc("POST /compute/pcs-structured", s.admit(s.handleComputePCSStructured))
	mux.HandleFunc("POST /compute/prs", s.admit(s.handleComputePRS))
	mux.HandleFunc("POST /compute/prs-structured", s.admit(s.handleComputePRSStructured))
	mux.HandleFunc("POST /compute/batch", s.admit(s.handleComputeBatch))

	mux.HandleFunc("GET /ipfs/status", s.handleIPFSStatus)
	mux.HandleFunc("GET /ipfs/metadata/{hash}", s.handleIPFSMetadata)
	mux.HandleFunc("POST /ipfs/upload", s.handleIPFSUpload)
	mux.HandleFunc("POST /ipfs/pin/{hash}", s.handleIPFSPin)

	mux.HandleFunc("GET /issuances/{id}", s.handleGetIssuance)
	mux.HandleFunc("GET /issuances", s.handleListIssuances)
	mux.HandleFunc("GET /analytics/summary", s.handleAnalyticsSummary)

	if s.hub != nil {
		mux.HandleFunc("GET /ws/issuances", s.hub.Handle)
	}
	mux.Handle("GET /metrics", observability.Handler())

	mux.HandleFunc("/", s.handleNotFound)

	return s.withRecovery(s.withLogging(mux))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found", r.Method+" "+r.URL.Path)
}
