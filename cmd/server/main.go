// Package main runs the attestation service: scoring, attestation
// construction, operator signing, proof publication and the HTTP API.
// Storage, admission state, event fan-out and the decryption boundary
// are all selected by configuration; with no flags beyond the operator
// key the server runs self-contained on in-memory stores.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"credit-attestor/internal/admission"
	"credit-attestor/internal/attestation"
	"credit-attestor/internal/batch"
	"credit-attestor/internal/events"
	"credit-attestor/internal/fhe"
	"credit-attestor/internal/ipfs"
	"credit-attestor/internal/observability"
	"credit-attestor/internal/policy"
	"credit-attestor/internal/proofs"
	"credit-attestor/internal/scoring"
	"credit-attestor/internal/server"
	"credit-attestor/internal/signer"
	"credit-attestor/internal/storage"
	chstore "credit-attestor/internal/storage/clickhouse"
	"credit-attestor/internal/storage/memory"
	"credit-attestor/internal/storage/migrations"
	pgstore "credit-attestor/internal/storage/postgres"
)

// config collects every knob the server accepts. Flags override env
// vars; env vars override defaults.
type config struct {
	addr           string
	operatorKey    string
	policyPath     string
	fheGateway     string
	ipfsEndpoint   string
	ipfsGateway    string
	postgresDSN    string
	clickhouseDSN  string
	redisAddr      string
	amqpURL        string
	rateLimit      int
	rateWindow     time.Duration
	publishTimeout time.Duration
	devLog         bool
}

func main() {
	// Load .env if present; real env vars win.
	_ = godotenv.Load()

	cfg := parseFlags()

	logger := newLogger(cfg.devLog)

	if cfg.operatorKey == "" {
		logger.Fatal().Msg("operator key is required (--operator-key or OPERATOR_KEY)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("shutdown complete")
}

func parseFlags() config {
	var cfg config

	flag.StringVar(&cfg.addr, "addr", envOr("ATTESTOR_ADDR", ":8080"), "HTTP listen address")
	flag.StringVar(&cfg.operatorKey, "operator-key", os.Getenv("OPERATOR_KEY"), "Hex-encoded operator signing key (required)")
	flag.StringVar(&cfg.policyPath, "policy", os.Getenv("POLICY_FILE"), "Scoring policy YAML file (built-in defaults when empty)")
	flag.StringVar(&cfg.fheGateway, "fhe-gateway", os.Getenv("FHE_GATEWAY"), "Decryption gateway URL (plaintext mock mode when empty)")
	flag.StringVar(&cfg.ipfsEndpoint, "ipfs-endpoint", os.Getenv("IPFS_ENDPOINT"), "Kubo RPC endpoint (proof publication disabled when empty)")
	flag.StringVar(&cfg.ipfsGateway, "ipfs-gateway", envOr("IPFS_GATEWAY", ipfs.DefaultGateway), "Public gateway base for metadata URLs")
	flag.StringVar(&cfg.postgresDSN, "postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for the issuance journal (in-memory when empty)")
	flag.StringVar(&cfg.clickhouseDSN, "clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for issuance analytics (in-memory when empty)")
	flag.StringVar(&cfg.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for shared admission state (in-process window when empty)")
	flag.StringVar(&cfg.amqpURL, "amqp-url", os.Getenv("AMQP_URL"), "AMQP broker URL for issuance events (broker fan-out disabled when empty)")
	flag.IntVar(&cfg.rateLimit, "rate-limit", envOrInt("RATE_LIMIT", admission.DefaultLimit), "Max compute requests per client per window")
	flag.DurationVar(&cfg.rateWindow, "rate-window", envOrDuration("RATE_WINDOW", admission.DefaultWindow), "Admission window length")
	flag.DurationVar(&cfg.publishTimeout, "publish-timeout", envOrDuration("PUBLISH_TIMEOUT", proofs.DefaultPublishTimeout), "Per-request proof publication timeout")
	flag.BoolVar(&cfg.devLog, "dev-log", os.Getenv("DEV_LOG") == "true", "Human-readable console logging")

	flag.Parse()
	return cfg
}

func run(ctx context.Context, cfg config, logger zerolog.Logger) error {
	pol, err := policy.Load(cfg.policyPath)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	logger.Info().Str("version", pol.Version).Msg("scoring policy loaded")

	sgn, err := signer.New(cfg.operatorKey)
	if err != nil {
		return fmt.Errorf("init signer: %w", err)
	}
	logger.Info().Str("operator", sgn.Address().Hex()).Msg("operator key loaded")

	// Decryption boundary: plaintext mock unless a gateway is configured.
	var features fhe.Source = fhe.NewPlaintextSource()
	if cfg.fheGateway != "" {
		features = fhe.NewGatewaySource(cfg.fheGateway)
	}
	logger.Info().Str("mode", features.Mode()).Msg("feature source ready")

	// Storage node: publication stays disabled without an endpoint.
	var node ipfs.Node = ipfs.Null{}
	if cfg.ipfsEndpoint != "" {
		node = ipfs.NewClient(cfg.ipfsEndpoint, ipfs.WithGateway(cfg.ipfsGateway))
		logger.Info().Str("endpoint", cfg.ipfsEndpoint).Msg("proof publication enabled")
	}

	// Issuance journal: memory unless Postgres is configured.
	var journal storage.IssuanceStore = memory.NewIssuanceStore()
	if cfg.postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		journal = pgstore.NewIssuanceStore(pool)
		logger.Info().Msg("issuance journal on postgres")
	}

	// Issuance analytics: memory unless ClickHouse is configured.
	var points storage.IssuancePointStore = memory.NewIssuancePointStore()
	if cfg.clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.clickhouseDSN)
		if err != nil {
			return fmt.Errorf("migrate clickhouse: %w", err)
		}
		defer conn.Close()
		points = chstore.NewIssuancePointStore(conn)
		logger.Info().Msg("issuance analytics on clickhouse")
	}

	// Admission state: in-process window unless Redis is configured.
	var limiter admission.Limiter
	if cfg.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		defer rdb.Close()
		limiter = admission.NewRedisLimiter(rdb,
			admission.WithRedisLimit(cfg.rateLimit),
			admission.WithRedisWindow(cfg.rateWindow),
			admission.WithRedisLogger(logger),
		)
		logger.Info().Str("addr", cfg.redisAddr).Msg("admission state on redis")
	} else {
		window := admission.NewSlidingWindow(
			admission.WithLimit(cfg.rateLimit),
			admission.WithWindow(cfg.rateWindow),
		)
		go pruneLoop(ctx, window, cfg.rateWindow)
		limiter = window
	}

	// Event fan-out: the WebSocket hub always runs; the broker only when
	// configured.
	hub := events.NewHub(events.WithHubLogger(logger))
	defer hub.Close()

	var publisher server.EventPublisher
	if cfg.amqpURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.amqpURL)
		if err != nil {
			return fmt.Errorf("connect to amqp: %w", err)
		}
		defer amqpPub.Close()
		publisher = amqpPub
		logger.Info().Msg("issuance events on amqp")
	}

	engine := scoring.NewEngine(pol)
	builder := attestation.NewBuilder(attestation.Options{Policy: pol, Operator: sgn.Address()})
	composer := proofs.NewComposer(proofs.Options{
		Uploader: node,
		Policy:   pol,
		Timeout:  cfg.publishTimeout,
		Logger:   logger,
	})
	orchestrator := batch.New(batch.Options{
		Engine:   engine,
		Builder:  builder,
		Signer:   sgn,
		Features: features,
		Logger:   logger,
	})

	srv := server.New(server.Options{
		Engine:    engine,
		Builder:   builder,
		Signer:    sgn,
		Features:  features,
		Node:      node,
		Composer:  composer,
		Batch:     orchestrator,
		Limiter:   limiter,
		Journal:   journal,
		Points:    points,
		Hub:       hub,
		Publisher: publisher,
		Gateway:   cfg.ipfsGateway,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Shut down on signal or parent cancellation.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.addr).Msg("attestation service listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// pruneLoop periodically drops expired admission windows so idle client
// identities do not accumulate.
func pruneLoop(ctx context.Context, window *admission.SlidingWindow, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			window.Prune()
			observability.UpdateTrackedClients(window.Len())
		}
	}
}

// newLogger builds the process logger: console output in dev mode, JSON
// otherwise.
func newLogger(dev bool) zerolog.Logger {
	if dev {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
