// Package lifecycle drives process startup/shutdown (C11 in spec
// §4.9): verify store reachability, ensure the vector collection
// exists, load and warm up the embedding model, and only then accept
// requests. Grounded on the teacher's server/main.go startup sequence
// (open DB, then listen), generalized to the multi-dependency ordered
// startup birdnet-go's realtime analyzer performs before accepting
// audio.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MacPhobos/audio-ident-sub001/internal/embedding"
	"github.com/MacPhobos/audio-ident-sub001/internal/fingerprint"
	"github.com/MacPhobos/audio-ident-sub001/internal/store"
	"github.com/MacPhobos/audio-ident-sub001/internal/vectorstore"
)

// Config carries everything needed to construct C2/C3/C4/C5.
type Config struct {
	RelationalDSN     string
	FingerprintDBPath string
	VectorStore       vectorstore.Config
	EmbeddingModelPath string
	EmbeddingThreads  int
}

// Lifecycle owns the process-wide singletons threaded into C7-C10:
// exactly one relational store, fingerprint index, vector store, and
// embedding model (spec §9 "no package-level globals" — these are
// constructed once here and passed down explicitly).
type Lifecycle struct {
	Tracks  *store.Store
	Index   *fingerprint.Index
	Vectors *vectorstore.Store
	Model   *embedding.Model

	logger *slog.Logger
}

// New constructs an unstarted Lifecycle.
func New(logger *slog.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Start runs the ordered startup sequence of spec §4.9: relational
// store reachability, vector store reachability + schema, embedding
// model load + warm-up. Only after Start returns nil should the process
// begin accepting search/ingest requests.
func (l *Lifecycle) Start(ctx context.Context, cfg Config) error {
	startedAt := time.Now()

	tracks, err := store.Open(cfg.RelationalDSN)
	if err != nil {
		return fmt.Errorf("lifecycle: failed to open relational store: %w", err)
	}
	if err := tracks.Ping(ctx); err != nil {
		return fmt.Errorf("lifecycle: relational store is unreachable: %w", err)
	}
	l.Tracks = tracks
	l.logf("relational store ready", "dsn", cfg.RelationalDSN)

	index, err := fingerprint.Open(cfg.FingerprintDBPath)
	if err != nil {
		return fmt.Errorf("lifecycle: failed to open fingerprint index: %w", err)
	}
	l.Index = index
	l.logf("fingerprint index ready", "path", cfg.FingerprintDBPath)

	vectors, err := vectorstore.Connect(cfg.VectorStore)
	if err != nil {
		return fmt.Errorf("lifecycle: failed to connect to vector store: %w", err)
	}
	if err := vectors.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("lifecycle: failed to ensure vector collection: %w", err)
	}
	l.Vectors = vectors
	l.logf("vector store ready", "addr", fmt.Sprintf("%s:%d", cfg.VectorStore.Host, cfg.VectorStore.Port))

	model, err := embedding.Load(cfg.EmbeddingModelPath, cfg.EmbeddingThreads)
	if err != nil {
		return fmt.Errorf("lifecycle: failed to load embedding model: %w", err)
	}
	if err := model.Warmup(ctx); err != nil {
		return fmt.Errorf("lifecycle: embedding model warm-up failed: %w", err)
	}
	l.Model = model
	l.logf("embedding model ready", "path", cfg.EmbeddingModelPath)

	l.logf("startup complete", "cold_start_ms", time.Since(startedAt).Milliseconds())
	return nil
}

// Stop closes the vector-store client and disposes the relational pool
// (spec §4.9). The fingerprint index and embedding model are also
// released since nothing else owns their lifetime.
func (l *Lifecycle) Stop(ctx context.Context) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if l.Vectors != nil {
		record(l.Vectors.Close())
	}
	if l.Model != nil {
		l.Model.Close()
	}
	if l.Index != nil {
		record(l.Index.Close())
	}
	if l.Tracks != nil {
		record(l.Tracks.Close())
	}

	l.logf("shutdown complete")
	return firstErr
}

func (l *Lifecycle) logf(msg string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Info(msg, args...)
}
