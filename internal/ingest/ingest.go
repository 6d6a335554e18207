// Package ingest implements the ingestion pipeline (C7 in spec §4.5):
// the six-step per-file protocol that decodes, dedups, fingerprints,
// embeds, and registers one track. Generalized from the teacher's
// processAndSave/saveEntry (server/handlers.go, server/cmdHandlers.go),
// which only had a two-step "register then fingerprint" shape, into the
// full pipeline the spec requires.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MacPhobos/audio-ident-sub001/internal/apperr"
	"github.com/MacPhobos/audio-ident-sub001/internal/audio"
	"github.com/MacPhobos/audio-ident-sub001/internal/dedup"
	"github.com/MacPhobos/audio-ident-sub001/internal/embedding"
	"github.com/MacPhobos/audio-ident-sub001/internal/fingerprint"
	"github.com/MacPhobos/audio-ident-sub001/internal/store"
	"github.com/MacPhobos/audio-ident-sub001/internal/vectorstore"
)

// Status is the outcome of one ingest call (spec §4.5).
type Status string

const (
	StatusIngested  Status = "INGESTED"
	StatusDuplicate Status = "DUPLICATE"
	StatusSkipped   Status = "SKIPPED"
	StatusError     Status = "ERROR"
)

// Result mirrors spec §4.5's IngestResult.
type Result struct {
	Status  Status
	TrackID uuid.UUID
	Title   string
	Artist  string
	Reason  string
	Err     error
}

// Config tunes ingest-time duration bounds, chunking, and dedup (spec §6).
type Config struct {
	MinIngestDuration time.Duration
	MaxIngestDuration time.Duration
	ChunkWindow       time.Duration
	ChunkHop          time.Duration

	ContentDupThreshold    float64
	DedupDurationTolerance float64

	FingerprintConfig fingerprint.Config

	RawStorageDir  string
	EmbeddingModel string
}

// Pipeline wires C1-C6 together. All dependencies are owned by C11's
// lifecycle and threaded in explicitly (spec §9 "Global mutable state").
type Pipeline struct {
	tracks     *store.Store
	index      *fingerprint.Index
	embedModel *embedding.Model
	vectors    *vectorstore.Store
	cfg        Config

	// ingestMu serializes the digest-check -> write protocol so the
	// TOCTOU window between "digest exists?" and "persist raw bytes" is
	// never observed concurrently (spec §5, §9), and so only one
	// concurrent ingestion runs per process (spec §4.5).
	ingestMu sync.Mutex
}

// New constructs a Pipeline.
func New(tracks *store.Store, index *fingerprint.Index, embedModel *embedding.Model, vectors *vectorstore.Store, cfg Config) *Pipeline {
	return &Pipeline{tracks: tracks, index: index, embedModel: embedModel, vectors: vectors, cfg: cfg}
}

// Ingest runs the full per-file protocol over raw audio bytes.
func (p *Pipeline) Ingest(ctx context.Context, raw []byte, ext string) Result {
	p.ingestMu.Lock()
	defer p.ingestMu.Unlock()

	// Step 1: digest check.
	digest := contentDigest(raw)
	if existing, err := p.tracks.GetByDigest(ctx, digest); err == nil && existing != nil {
		return Result{Status: StatusDuplicate, TrackID: existing.ID, Title: existing.Title, Artist: existing.Artist}
	}

	// Step 2: persist raw bytes, content-addressed.
	storedPath, err := p.persistRaw(raw, digest, ext)
	if err != nil {
		return Result{Status: StatusError, Err: err}
	}

	// Step 3: metadata extraction.
	md, err := audio.ProbeMetadata(ctx, raw)
	if err != nil {
		return Result{Status: StatusError, Err: err}
	}

	// Step 4: dual-rate decode + duration bounds.
	dual, err := audio.DecodeDual(ctx, raw)
	if err != nil {
		return Result{Status: StatusError, Err: err}
	}
	durationSec := audio.PCMDurationSeconds(dual.PCM16k, audio.RateFingerprint)
	if durationSec < p.cfg.MinIngestDuration.Seconds() || durationSec > p.cfg.MaxIngestDuration.Seconds() {
		return Result{Status: StatusSkipped, Reason: fmt.Sprintf("duration %.2fs outside [%s, %s]", durationSec, p.cfg.MinIngestDuration, p.cfg.MaxIngestDuration)}
	}

	trackID := uuid.New()
	pcm16 := audio.ToFloat64(dual.PCM16k)
	title := firstNonEmpty(md.Title, filepath.Base(storedPath))
	artist := firstNonEmpty(md.Artist, "unknown")

	// Step 5: three concurrent tasks.
	var (
		isDuplicate bool
		dupTrackID  uuid.UUID
		dupTitle    string
		dupArtist   string
		dedupSig    dedup.Signature
	)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		dup, dupID, title, artist, sig, err := p.runContentDedup(gctx, pcm16, durationSec)
		if err != nil {
			return err
		}
		isDuplicate, dupTrackID, dupTitle, dupArtist, dedupSig = dup, dupID, title, artist, sig
		return nil
	})

	group.Go(func() error {
		hashes, err := fingerprint.FingerprintPCM(pcm16, audio.RateFingerprint, trackID, p.cfg.FingerprintConfig)
		if err != nil {
			return apperr.New(apperr.CodeDecodeFailed, "failed to fingerprint track audio", err)
		}
		return p.index.IndexTrack(trackID, hashes)
	})

	group.Go(func() error {
		return p.embedAndUpsert(gctx, trackID, dual.PCM48k, title, artist, md.Genre)
	})

	if err := group.Wait(); err != nil {
		// Partial failure: the C5 row is not inserted; written C2/C4 data
		// become orphans, tolerated by the lanes (spec §4.5 policy).
		return Result{Status: StatusError, Err: err}
	}

	if isDuplicate {
		return Result{Status: StatusDuplicate, TrackID: dupTrackID, Title: dupTitle, Artist: dupArtist}
	}

	// Step 6: insert Track row.
	track := &store.Track{
		ID:            trackID,
		Title:         title,
		Artist:        artist,
		Album:         md.Album,
		DurationMs:    int64(durationSec * 1000),
		SampleRate:    md.SampleRate,
		Channels:      md.Channels,
		BitrateBps:    md.BitrateBps,
		Format:        md.Format,
		ContentDigest: digest,
		DedupKey:      dedupSig.Encode(),
		Genre:         md.Genre,
		SourcePath:    storedPath,
	}
	if err := p.tracks.Insert(ctx, track); err != nil {
		return Result{Status: StatusError, Err: err}
	}

	return Result{Status: StatusIngested, TrackID: trackID, Title: track.Title, Artist: track.Artist}
}

// BatchIngest walks sources sequentially (never concurrently — spec
// §4.5's writer-lock constraint rules out the teacher's
// processFilesConcurrently worker pool here) to bound memory.
func (p *Pipeline) BatchIngest(ctx context.Context, sources []Source) []Result {
	results := make([]Result, 0, len(sources))
	for _, src := range sources {
		raw, err := os.ReadFile(src.Path)
		if err != nil {
			results = append(results, Result{Status: StatusError, Err: apperr.New(apperr.CodeDecodeFailed, "failed to read source file", err)})
			continue
		}
		results = append(results, p.Ingest(ctx, raw, filepath.Ext(src.Path)))
	}
	return results
}

// Source is one batch-ingest item (spec §4.5's out-of-scope admin CLI
// driver passes these in).
type Source struct {
	Path string
}

// runContentDedup computes the query track's spectral-centroid signature
// and compares it against every already-ingested track whose duration
// falls within tolerance (spec §4.6: duration is a cheap pre-filter
// before the more expensive cosine comparison).
func (p *Pipeline) runContentDedup(ctx context.Context, pcm16 []float64, durationSec float64) (bool, uuid.UUID, string, string, dedup.Signature, error) {
	spect, err := fingerprint.Spectrogram(pcm16, audio.RateFingerprint, p.cfg.FingerprintConfig)
	if err != nil {
		return false, uuid.Nil, "", "", dedup.Signature{}, apperr.New(apperr.CodeDecodeFailed, "failed to compute content dedup signature", err)
	}
	return p.runContentDedupFromSignature(ctx, dedup.BuildSignature(spect), durationSec)
}

// runContentDedupFromSignature scans store candidates whose duration
// falls within tolerance of durationSec and compares each against
// signature, split out from runContentDedup so the comparison logic is
// testable without a real spectrogram decode.
func (p *Pipeline) runContentDedupFromSignature(ctx context.Context, signature dedup.Signature, durationSec float64) (bool, uuid.UUID, string, string, dedup.Signature, error) {
	durationMs := int64(durationSec * 1000)
	tolerance := p.cfg.DedupDurationTolerance
	minMs := int64(float64(durationMs) * (1 - tolerance))
	maxMs := int64(float64(durationMs) * (1 + tolerance))

	candidates, err := p.tracks.ScanByDurationRange(ctx, minMs, maxMs)
	if err != nil {
		return false, uuid.Nil, "", "", signature, err
	}

	for _, candidate := range candidates {
		if candidate.DedupKey == "" {
			continue
		}
		candidateSig, err := dedup.DecodeSignature(candidate.DedupKey)
		if err != nil {
			continue // corrupt/legacy row: skip rather than fail the whole ingest
		}
		if dedup.IsDuplicate(signature, candidateSig) {
			return true, candidate.ID, candidate.Title, candidate.Artist, signature, nil
		}
	}

	return false, uuid.Nil, "", "", signature, nil
}

// embedAndUpsert splits the 48kHz PCM into overlapping windows, embeds
// each via C3, and upserts the resulting chunk vectors into C4 in
// batches of <= vectorstore.UpsertBatchSize (spec §4.5 step 5). Each
// chunk's payload carries the full invariant set named by spec §3/§4.3:
// track_id, offset_sec, chunk_index, duration_sec, artist, title, genre.
func (p *Pipeline) embedAndUpsert(ctx context.Context, trackID uuid.UUID, samples []float32, title, artist, genre string) error {
	windowLen := int(p.cfg.ChunkWindow.Seconds() * float64(audio.RateEmbedding))
	hopLen := int(p.cfg.ChunkHop.Seconds() * float64(audio.RateEmbedding))
	minLen := audio.RateEmbedding // 1 second

	var chunks []vectorstore.Chunk
	chunkIndex := 0
	for start := 0; start < len(samples); start += hopLen {
		end := start + windowLen
		if end > len(samples) {
			end = len(samples)
		}
		window := samples[start:end]
		if len(window) < minLen {
			break // drop trailing windows shorter than 1s (spec §4.5 step 5)
		}
		durationSec := float64(len(window)) / float64(audio.RateEmbedding)
		if len(window) < windowLen {
			padded := make([]float32, windowLen)
			copy(padded, window)
			window = padded
		}

		vec, err := p.embedModel.Embed(ctx, window)
		if err != nil {
			return err
		}

		chunks = append(chunks, vectorstore.Chunk{
			TrackID:     trackID,
			ChunkIndex:  chunkIndex,
			OffsetSec:   float64(start) / float64(audio.RateEmbedding),
			DurationSec: durationSec,
			Artist:      artist,
			Title:       title,
			Vector:      vec,
			Genre:       genre,
		})
		chunkIndex++

		if end >= len(samples) {
			break
		}
	}

	if len(chunks) == 0 {
		return nil
	}
	return p.vectors.Upsert(ctx, chunks)
}

func (p *Pipeline) persistRaw(raw []byte, digest, ext string) (string, error) {
	dir := filepath.Join(p.cfg.RawStorageDir, digest[:2])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.New(apperr.CodeInternal, "failed to create raw storage directory", err)
	}

	path := filepath.Join(dir, digest+ext)
	if _, err := os.Stat(path); err == nil {
		return path, nil // already persisted: idempotent per spec §4.5 step 2
	}

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", apperr.New(apperr.CodeInternal, "failed to persist raw audio bytes", err)
	}
	return path, nil
}

func contentDigest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
