// Package search implements the search orchestrator (C10 in spec §4.8):
// the HTTP handler that validates an uploaded clip, decodes it, and
// dispatches the exact and vibe lanes in parallel under per-lane
// timeouts. Grounded on the teacher's handleIndex/handleMatch
// (server/handlers.go) for the multipart-upload/writeJSON/writeError
// shape and on server/cmdHandlers.go's request-logging middleware,
// generalized from a single fingerprint-match endpoint to the
// dual-lane /api/v1/search contract.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MacPhobos/audio-ident-sub001/internal/apperr"
	"github.com/MacPhobos/audio-ident-sub001/internal/audio"
	"github.com/MacPhobos/audio-ident-sub001/internal/exactlane"
	"github.com/MacPhobos/audio-ident-sub001/internal/vibelane"
)

// Mode selects which lane(s) an /api/v1/search request dispatches.
type Mode string

const (
	ModeExact Mode = "exact"
	ModeVibe  Mode = "vibe"
	ModeBoth  Mode = "both"
)

// Config tunes upload limits, duration bounds, and per-lane timeouts
// (spec §4.8, §6).
type Config struct {
	MaxUploadBytes   int64
	MinQueryDuration time.Duration
	MaxQueryDuration time.Duration
	ExactTimeout     time.Duration
	VibeTimeout      time.Duration
	DefaultMaxResults int
}

// Handler is the /api/v1/search HTTP handler.
type Handler struct {
	exact  *exactlane.Lane
	vibe   *vibelane.Lane
	cfg    Config
	logger *slog.Logger
}

// New constructs a Handler. Either lane may be nil (e.g. the vector
// store is unreachable at startup): a nil lane is treated the same as a
// failing one, so the handler degrades gracefully rather than panicking.
func New(exact *exactlane.Lane, vibe *vibelane.Lane, cfg Config, logger *slog.Logger) *Handler {
	return &Handler{exact: exact, vibe: vibe, cfg: cfg, logger: logger}
}

// ExactResult is one exact-lane match in the JSON response.
type ExactResult struct {
	TrackID       string  `json:"track_id"`
	Title         string  `json:"title"`
	Artist        string  `json:"artist"`
	OffsetSeconds float64 `json:"offset_seconds"`
	Confidence    float64 `json:"confidence"`
	AlignedHashes int     `json:"aligned_hashes"`
}

// VibeResult is one vibe-lane match in the JSON response.
type VibeResult struct {
	TrackID    string  `json:"track_id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Similarity float64 `json:"similarity"`
}

// Response is the SearchResponse contract of spec §4.8.
type Response struct {
	RequestID       string        `json:"request_id"`
	QueryDurationMs int64         `json:"query_duration_ms"`
	ExactMatches    []ExactResult `json:"exact_matches"`
	VibeMatches     []VibeResult  `json:"vibe_matches"`
	ModeUsed        Mode          `json:"mode_used"`
}

// ServeHTTP implements the validation gates and dispatch policy of spec
// §4.8 in order.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, apperr.New(apperr.CodeValidation, "method not allowed", nil))
		return
	}

	start := time.Now()
	requestID := uuid.New()
	h.logf("search request received", "request_id", requestID.String(), "remote_addr", r.RemoteAddr)

	// Gate 1: upload size.
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, apperr.New(apperr.CodeFileTooLarge, "upload exceeds the maximum allowed size", err))
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, apperr.New(apperr.CodeEmptyInput, "missing audio field in multipart form", err))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, apperr.New(apperr.CodeFileTooLarge, "upload exceeds the maximum allowed size", err))
		return
	}

	// Gate 2: magic-byte content-type.
	container := audio.Sniff(raw)
	if container == audio.ContainerUnknown {
		writeError(w, http.StatusUnprocessableEntity, apperr.New(apperr.CodeUnsupportedFormat, "unrecognized audio container", nil))
		return
	}

	// Gate 3: byte length.
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, apperr.New(apperr.CodeEmptyInput, "uploaded audio is empty", nil))
		return
	}

	mode := parseMode(r.FormValue("mode"))
	maxResults := parseMaxResults(r.FormValue("max_results"), h.cfg.DefaultMaxResults)

	// Gate 4: dual-rate decode.
	dual, err := audio.DecodeDual(r.Context(), raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	// Gate 5: duration bounds; truncate long clips instead of rejecting.
	durationSec := audio.PCMDurationSeconds(dual.PCM16k, audio.RateFingerprint)
	if durationSec < h.cfg.MinQueryDuration.Seconds() {
		writeError(w, http.StatusBadRequest, apperr.New(apperr.CodeAudioTooShort, "clip is shorter than the minimum query duration", nil))
		return
	}
	if durationSec > h.cfg.MaxQueryDuration.Seconds() {
		dual.PCM16k = audio.TruncateToDuration(dual.PCM16k, audio.RateFingerprint, h.cfg.MaxQueryDuration.Seconds())
		dual.PCM48k = audio.TruncateToDuration(dual.PCM48k, audio.RateEmbedding, h.cfg.MaxQueryDuration.Seconds())
	}

	pcm16 := audio.ToFloat64(dual.PCM16k)

	exactResults, vibeResults, modeUsed, dispatchErr := h.dispatch(r.Context(), mode, pcm16, dual.PCM48k, maxResults)
	if dispatchErr != nil {
		writeError(w, dispatchErr.StatusCode(), dispatchErr)
		return
	}

	resp := Response{
		RequestID:       requestID.String(),
		QueryDurationMs: time.Since(start).Milliseconds(),
		ExactMatches:    exactResults,
		VibeMatches:     vibeResults,
		ModeUsed:        modeUsed,
	}
	h.logf("search request completed", "request_id", requestID.String(), "duration_ms", resp.QueryDurationMs,
		"exact_matches", len(exactResults), "vibe_matches", len(vibeResults))
	writeJSON(w, http.StatusOK, resp)
}

// logf is a nil-safe wrapper so tests can construct a Handler without a
// logger (grounded on the teacher's log.Printf request-tracing lines in
// cmdHandlers.go, generalized to structured slog fields).
func (h *Handler) logf(msg string, args ...any) {
	if h.logger == nil {
		return
	}
	h.logger.Info(msg, args...)
}

// dispatch runs the requested lane(s) under their configured timeouts,
// applying the both-mode partial-result policy of spec §4.8.
func (h *Handler) dispatch(ctx context.Context, mode Mode, pcm16 []float64, pcm48 []float32, maxResults int) ([]ExactResult, []VibeResult, Mode, *apperr.Error) {
	var (
		exactResults []ExactResult
		vibeResults  []VibeResult
		exactErr     error
		vibeErr      error
	)

	runExact := mode == ModeExact || mode == ModeBoth
	runVibe := mode == ModeVibe || mode == ModeBoth

	group, gctx := errgroup.WithContext(ctx)

	if runExact {
		group.Go(func() error {
			exactResults, exactErr = h.runExact(gctx, pcm16, maxResults)
			return nil // lane failures are captured, never fail the group
		})
	}
	if runVibe {
		group.Go(func() error {
			vibeResults, vibeErr = h.runVibe(gctx, pcm48, maxResults)
			return nil
		})
	}
	group.Wait() //nolint:errcheck // lane goroutines never return an error

	if exactResults == nil {
		exactResults = []ExactResult{}
	}
	if vibeResults == nil {
		vibeResults = []VibeResult{}
	}

	if mode == ModeBoth && exactErr != nil && vibeErr != nil {
		return exactResults, vibeResults, mode, combineFailures(exactErr, vibeErr)
	}
	if mode == ModeExact && exactErr != nil {
		return exactResults, vibeResults, mode, asAPIError(exactErr)
	}
	if mode == ModeVibe && vibeErr != nil {
		return exactResults, vibeResults, mode, asAPIError(vibeErr)
	}

	return exactResults, vibeResults, mode, nil
}

func (h *Handler) runExact(ctx context.Context, pcm16 []float64, maxResults int) ([]ExactResult, error) {
	if h.exact == nil {
		return nil, apperr.New(apperr.CodeIndexUnavailable, "fingerprint index is not available", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, h.cfg.ExactTimeout)
	defer cancel()

	matches, err := h.exact.Run(ctx, pcm16, audio.RateFingerprint, maxResults)
	if err != nil {
		return nil, err
	}

	out := make([]ExactResult, len(matches))
	for i, m := range matches {
		out[i] = ExactResult{
			TrackID:       m.Track.ID.String(),
			Title:         m.Track.Title,
			Artist:        m.Track.Artist,
			OffsetSeconds: m.OffsetSec,
			Confidence:    m.Confidence,
			AlignedHashes: m.AlignedHashes,
		}
	}
	return out, nil
}

func (h *Handler) runVibe(ctx context.Context, pcm48 []float32, maxResults int) ([]VibeResult, error) {
	if h.vibe == nil {
		return nil, apperr.New(apperr.CodeVectorStoreDown, "vector store is not available", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, h.cfg.VibeTimeout)
	defer cancel()

	matches, err := h.vibe.Run(ctx, pcm48, maxResults, nil)
	if err != nil {
		return nil, err
	}

	out := make([]VibeResult, len(matches))
	for i, m := range matches {
		out[i] = VibeResult{
			TrackID:    m.Track.ID.String(),
			Title:      m.Track.Title,
			Artist:     m.Track.Artist,
			Similarity: m.Similarity,
		}
	}
	return out, nil
}

// combineFailures collapses both-lanes-failed into the resource/timeout
// split named in spec §4.8: a deadline-exceeded cause wins as
// SEARCH_TIMEOUT, otherwise SEARCH_UNAVAILABLE.
func combineFailures(exactErr, vibeErr error) *apperr.Error {
	if context.DeadlineExceeded == exactErr || context.DeadlineExceeded == vibeErr {
		return apperr.New(apperr.CodeSearchTimeout, "both search lanes timed out", nil)
	}
	return apperr.New(apperr.CodeSearchUnavailable, "both search lanes are unavailable", nil)
}

func asAPIError(err error) *apperr.Error {
	if ae, ok := apperr.As(err); ok {
		return ae
	}
	if err == context.DeadlineExceeded {
		return apperr.New(apperr.CodeSearchTimeout, "search lane timed out", err)
	}
	return apperr.New(apperr.CodeSearchUnavailable, "search lane failed", err)
}

func parseMode(raw string) Mode {
	switch Mode(raw) {
	case ModeExact, ModeVibe, ModeBoth:
		return Mode(raw)
	default:
		return ModeBoth
	}
}

func parseMaxResults(raw string, def int) int {
	if raw == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil || n < 1 || n > 50 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError always writes the stable envelope of spec §7, even for an
// error status explicitly supplied by a validation gate that hasn't
// wrapped it in *apperr.Error yet.
func writeError(w http.ResponseWriter, status int, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.New(apperr.CodeInternal, err.Error(), err)
	} else {
		status = ae.StatusCode()
	}
	writeJSON(w, status, apperr.Envelope{Error: apperr.EnvelopeBody{
		Code:    ae.Code,
		Message: ae.Message,
		Details: ae.Details,
	}})
}
