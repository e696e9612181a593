// Package cli wires configuration into a running switchboard for the
// command-line entry points.
package cli

import (
	"context"
	"fmt"
	"os"

	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	googlegenai "google.golang.org/genai"

	switchboard "github.com/omnihelp/switchboard"
	"github.com/omnihelp/switchboard/internal/runtime"
	"github.com/omnihelp/switchboard/pkg/adapters/file"
	genaiadapter "github.com/omnihelp/switchboard/pkg/adapters/genai"
	"github.com/omnihelp/switchboard/pkg/adapters/memory"
	redisadapter "github.com/omnihelp/switchboard/pkg/adapters/redis"
	"github.com/omnihelp/switchboard/pkg/adapters/retrieval"
	"github.com/omnihelp/switchboard/pkg/adapters/sqlquery"
	"github.com/omnihelp/switchboard/pkg/adapters/websearch"
	"github.com/omnihelp/switchboard/pkg/config"
	"github.com/omnihelp/switchboard/pkg/domain"
	"github.com/omnihelp/switchboard/pkg/ports"
)

// Build assembles a switchboard from configuration. The returned cleanup
// function closes connection pools and must be called on shutdown.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, extraOpts ...switchboard.Option) (*switchboard.Switchboard, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Model.APIKey == "" {
		return nil, nil, fmt.Errorf("model.api_key is required (or set GEMINI_API_KEY)")
	}
	client, err := googlegenai.NewClient(ctx, &googlegenai.ClientConfig{
		APIKey: cfg.Model.APIKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	classifier := genaiadapter.NewClassifier(client, genaiadapter.WithClassifierModel(cfg.Model.ClassifierName))
	synth := genaiadapter.NewSynthesizer(client, genaiadapter.WithSynthesizerModel(cfg.Model.SynthesizerName))

	backends, err := buildBackends(ctx, cfg, client, &closers)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	store, locker, err := buildStorage(cfg, &closers)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	gate := runtime.NewGate(cfg.Routing.ConfidenceThreshold, domain.Route(cfg.Routing.ProductInfoRoute))

	opts := []switchboard.Option{
		switchboard.WithLogger(logger),
		switchboard.WithStore(store),
		switchboard.WithGate(gate),
		switchboard.WithEngineOptions(
			runtime.WithClarifyBound(cfg.Routing.ClarifyBound),
			runtime.WithRetryBound(cfg.Routing.RetryBound),
			runtime.WithTurnTimeout(cfg.Routing.TurnTimeout),
			runtime.WithNodeTimeout(cfg.Routing.NodeTimeout),
		),
	}
	if locker != nil {
		opts = append(opts, switchboard.WithLocker(locker))
	}
	if el := elicitorForMode(cfg.Routing.ClarificationMode); el != nil {
		opts = append(opts, switchboard.WithElicitor(el))
	}
	opts = append(opts, extraOpts...)

	board, err := switchboard.New(classifier, backends, synth, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return board, cleanup, nil
}

func buildBackends(ctx context.Context, cfg *config.Config, client *googlegenai.Client, closers *[]func()) (map[domain.Route]ports.Backend, error) {
	backends := make(map[domain.Route]ports.Backend)

	if url := cfg.Backends.Policy.VectorStoreURL; url != "" {
		embedder := genaiadapter.NewEmbedder(client, cfg.Model.EmbeddingName)
		backends[domain.RoutePolicy] = retrieval.New(url, cfg.Backends.Policy.Collection, embedder,
			retrieval.WithTopK(cfg.Backends.Policy.TopK),
			retrieval.WithMinScore(float32(cfg.Backends.Policy.MinScore)),
		)
	}

	if dsn := cfg.Backends.StructuredData.DSN; dsn != "" {
		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parsing postgres DSN: %w", err)
		}
		poolCfg.MaxConns = cfg.Backends.StructuredData.MaxConns
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("creating postgres pool: %w", err)
		}
		*closers = append(*closers, pool.Close)

		gen := genaiadapter.NewSQLGenerator(client, cfg.Model.ClassifierName)
		backends[domain.RouteStructuredData] = sqlquery.New(pool, gen, cfg.Backends.StructuredData.Schema,
			sqlquery.WithMaxRows(cfg.Backends.StructuredData.MaxRows),
		)
	}

	if url := cfg.Backends.Web.SearXNGURL; url != "" {
		opts := []websearch.Option{
			websearch.WithMaxResults(cfg.Backends.Web.MaxResults),
			websearch.WithAllowedDomains(cfg.Backends.Web.AllowedDomains),
			websearch.WithBlockedDomains(cfg.Backends.Web.BlockedDomains),
		}
		if cfg.Backends.Web.RatePerSecond > 0 {
			opts = append(opts, websearch.WithRateLimit(cfg.Backends.Web.RatePerSecond, cfg.Backends.Web.RateBurst))
		}
		backends[domain.RouteWeb] = websearch.New(url, opts...)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no backends configured: set at least one of backends.policy.vector_store_url, backends.structured_data.dsn, backends.web.searxng_url")
	}
	return backends, nil
}

func buildStorage(cfg *config.Config, closers *[]func()) (ports.StateStore, ports.DistributedLocker, error) {
	switch cfg.Storage.Type {
	case "memory":
		return memory.NewStore(), nil, nil
	case "file":
		return file.New(cfg.Storage.FilePath), nil, nil
	case "redis":
		client := redisclient.NewClient(&redisclient.Options{
			Addr:     cfg.Storage.Redis.Address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		*closers = append(*closers, func() { _ = client.Close() })

		var storeOpts []redisadapter.Option
		if cfg.Storage.TTL > 0 {
			storeOpts = append(storeOpts, redisadapter.WithTTL(cfg.Storage.TTL))
		}
		store := redisadapter.NewFromClient(client, storeOpts...)

		var locker ports.DistributedLocker
		if cfg.Storage.Redis.DistributedLock {
			locker = redisadapter.NewLocker(client, "switchboard:")
		}
		return store, locker, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// elicitorForMode maps the clarification_mode knob onto an elicitation
// source. Mode "auto" collects replies synchronously on the terminal; in
// "suspend" mode the engine checkpoints and waits, so no elicitor is wired.
func elicitorForMode(mode string) ports.Elicitor {
	if mode == "auto" {
		return &PromptElicitor{In: os.Stdin, Out: os.Stderr}
	}
	return nil
}

// OpenStore opens just the configured session store, for session management
// commands that do not need the full switchboard.
func OpenStore(cfg *config.Config) (ports.StateStore, func(), error) {
	var closers []func()
	store, _, err := buildStorage(cfg, &closers)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return store, cleanup, nil
}

// ParseLevel maps a config log level string onto slog levels.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
