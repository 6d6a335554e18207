// Command server runs the audio identification HTTP API: the search
// orchestrator (C10) plus a thin admin ingest endpoint. Grounded on the
// teacher's server/main.go + server/cmdHandlers.go's serve() (ServeMux,
// requestLogger middleware, godotenv loading), generalized
// from the teacher's five ad hoc subcommands to a single long-running
// server process started by the ordered lifecycle of C11.
package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MacPhobos/audio-ident-sub001/internal/apperr"
	"github.com/MacPhobos/audio-ident-sub001/internal/config"
	"github.com/MacPhobos/audio-ident-sub001/internal/exactlane"
	"github.com/MacPhobos/audio-ident-sub001/internal/fingerprint"
	"github.com/MacPhobos/audio-ident-sub001/internal/ingest"
	"github.com/MacPhobos/audio-ident-sub001/internal/lifecycle"
	"github.com/MacPhobos/audio-ident-sub001/internal/logging"
	"github.com/MacPhobos/audio-ident-sub001/internal/search"
	"github.com/MacPhobos/audio-ident-sub001/internal/vectorstore"
	"github.com/MacPhobos/audio-ident-sub001/internal/vibelane"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logging.Init(cfg.LogLevel)
	logger := logging.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lc := lifecycle.New(logger)
	startupCtx, cancelStartup := context.WithTimeout(ctx, 60*time.Second)
	defer cancelStartup()

	if err := lc.Start(startupCtx, lifecycle.Config{
		RelationalDSN:     cfg.RelationalDSN,
		FingerprintDBPath: cfg.FingerprintDBPath,
		VectorStore: vectorstore.Config{
			Host:       cfg.VectorStoreHost,
			Port:       cfg.VectorStorePort,
			Collection: cfg.VectorStoreCollection,
		},
		EmbeddingModelPath: cfg.EmbeddingModelPath,
		EmbeddingThreads:   cfg.EmbeddingThreads,
	}); err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer lc.Stop(context.Background())

	exactLane := exactlane.New(lc.Index, lc.Tracks, exactlane.Config{
		MinAlignedHashes:  cfg.ExactMinAlignedHashes,
		StrongMatchHashes: cfg.ExactStrongMatchHashes,
		SubWindowDuration: cfg.SubWindowDuration,
		SubWindowStarts:   cfg.SubWindowStarts,
		ConsensusSplit:    cfg.SubWindowConsensusSplit,
		FingerprintConfig: fingerprint.DefaultConfig(),
	})
	vibeLane := vibelane.New(lc.Model, lc.Vectors, lc.Tracks, vibelane.Config{
		SearchLimit:     cfg.VibeSearchLimit,
		TopKPerTrack:    cfg.VibeTopKPerTrack,
		DiversityWeight: cfg.VibeDiversityWeight,
		ScoreThreshold:  cfg.VibeScoreThreshold,
		HNSWEf:          cfg.HNSWEf,
	}, cfg.EmbeddingModelID)

	searchHandler := search.New(exactLane, vibeLane, search.Config{
		MaxUploadBytes:    cfg.MaxUploadBytes,
		MinQueryDuration:  cfg.MinQueryDuration,
		MaxQueryDuration:  cfg.MaxQueryDuration,
		ExactTimeout:      cfg.ExactTimeout,
		VibeTimeout:       cfg.VibeTimeout,
		DefaultMaxResults: 10,
	}, logger)

	pipeline := ingest.New(lc.Tracks, lc.Index, lc.Model, lc.Vectors, ingest.Config{
		MinIngestDuration:      cfg.MinIngestDuration,
		MaxIngestDuration:      cfg.MaxIngestDuration,
		ChunkWindow:            cfg.ChunkWindow,
		ChunkHop:               cfg.ChunkHop,
		ContentDupThreshold:    cfg.ContentDupThreshold,
		DedupDurationTolerance: cfg.DedupDurationTolerance,
		FingerprintConfig:      fingerprint.DefaultConfig(),
		RawStorageDir:          cfg.RawStorageDir,
		EmbeddingModel:         cfg.EmbeddingModelID,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/v1/search", searchHandler)
	mux.HandleFunc("/api/v1/ingest", newIngestHandler(pipeline, logger))

	handler := requestLogger(logger, mux)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", "port", cfg.ServerPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// ingestBusy enforces spec §6's at-most-one-concurrent-ingest rule at
// the HTTP boundary: a second request arriving mid-ingest gets 429 BUSY
// rather than queueing, grounded on the teacher's single-process CLI
// model (save/find are never run concurrently against the same index).
var ingestBusy sync.Mutex

func newIngestHandler(pipeline *ingest.Pipeline, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeIngestError(w, apperr.New(apperr.CodeValidation, "method not allowed", nil))
			return
		}

		if !ingestBusy.TryLock() {
			writeIngestError(w, apperr.New(apperr.CodeBusy, "an ingest is already in progress", nil))
			return
		}
		defer ingestBusy.Unlock()

		const maxIngestUpload = 200 << 20 // generous cap for long-form audio, spec §4.5 duration bound does the real gating
		r.Body = http.MaxBytesReader(w, r.Body, maxIngestUpload)
		if err := r.ParseMultipartForm(maxIngestUpload); err != nil {
			writeIngestError(w, apperr.New(apperr.CodeFileTooLarge, "upload exceeds the maximum allowed size", err))
			return
		}

		file, header, err := r.FormFile("audio")
		if err != nil {
			writeIngestError(w, apperr.New(apperr.CodeEmptyInput, "missing audio field in multipart form", err))
			return
		}
		defer file.Close()

		raw, err := io.ReadAll(file)
		if err != nil {
			writeIngestError(w, apperr.New(apperr.CodeInternal, "failed to read uploaded file", err))
			return
		}

		ext := ""
		if idx := strings.LastIndexByte(header.Filename, '.'); idx >= 0 {
			ext = header.Filename[idx:]
		}

		result := pipeline.Ingest(r.Context(), raw, ext)
		logger.Info("ingest request completed", "status", result.Status, "track_id", result.TrackID, "reason", result.Reason)

		writeJSON(w, http.StatusOK, map[string]any{
			"track_id": result.TrackID,
			"title":    result.Title,
			"artist":   result.Artist,
			"status":   result.Status,
			"reason":   result.Reason,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeIngestError(w http.ResponseWriter, err *apperr.Error) {
	status, envelope := apperr.ToEnvelope(err)
	writeJSON(w, status, envelope)
}

// requestLogger mirrors the teacher's cmdHandlers.go requestLogger
// middleware (statusRecorder + per-request log line), generalized from
// log.Printf to structured slog fields.
func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration_ms", time.Since(start).Milliseconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
