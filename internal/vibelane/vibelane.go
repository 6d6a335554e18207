// Package vibelane implements query-time embedding similarity search
// (C9 in spec §4.7): a single query embedding, a top-50 chunk query
// against the vector store, and top-3-chunk-average aggregation with a
// diversity bonus. No teacher file covers vector-similarity ranking
// (the teacher is fingerprint-only); grounded directly on spec.md's
// algorithm description and wired to internal/embedding and
// internal/vectorstore.
package vibelane

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/MacPhobos/audio-ident-sub001/internal/apperr"
	"github.com/MacPhobos/audio-ident-sub001/internal/embedding"
	"github.com/MacPhobos/audio-ident-sub001/internal/store"
	"github.com/MacPhobos/audio-ident-sub001/internal/vectorstore"
)

// Config tunes the vibe lane (spec §6 "Vibe lane tuning").
type Config struct {
	SearchLimit     uint64
	TopKPerTrack    int
	DiversityWeight float64
	ScoreThreshold  float64
	HNSWEf          uint64
}

// Match is one surviving candidate, joined against the relational store.
type Match struct {
	Track          store.Track
	Similarity     float64
	EmbeddingModel string
}

// Lane runs vibe similarity search against the shared embedding model
// and vector store.
type Lane struct {
	model          *embedding.Model
	vectors        *vectorstore.Store
	tracks         *store.Store
	cfg            Config
	embeddingModel string
}

// New constructs a Lane. model, vectors, and tracks are owned by C11's
// lifecycle and threaded in explicitly.
func New(model *embedding.Model, vectors *vectorstore.Store, tracks *store.Store, cfg Config, embeddingModelID string) *Lane {
	return &Lane{model: model, vectors: vectors, tracks: tracks, cfg: cfg, embeddingModel: embeddingModelID}
}

// Run executes the vibe lane over 48kHz mono PCM samples and returns up
// to maxResults matches sorted by similarity descending. If
// excludeTrackID is non-nil, that track is removed from the results
// (spec §4.7 step 4 — avoids "you searched for X, we found X" when the
// exact lane already matched).
func (l *Lane) Run(ctx context.Context, pcm []float32, maxResults int, excludeTrackID *uuid.UUID) ([]Match, error) {
	if l.model == nil {
		return nil, apperr.New(apperr.CodeModelNotLoaded, "embedding model is not loaded", nil)
	}

	queryVec, err := l.model.Embed(ctx, pcm)
	if err != nil {
		return nil, err
	}

	chunks, err := l.vectors.Query(ctx, queryVec, vectorstore.QueryOpts{Limit: l.cfg.SearchLimit})
	if err != nil {
		// spec §4.7: vector store unavailable -> empty list, not an error.
		return []Match{}, nil
	}

	scored := aggregateByTrack(chunks, l.cfg.TopKPerTrack, l.cfg.DiversityWeight)

	matches := make([]Match, 0, len(scored))
	for _, ts := range scored {
		if excludeTrackID != nil && ts.trackID == *excludeTrackID {
			continue
		}
		if ts.finalScore < l.cfg.ScoreThreshold {
			continue
		}

		track, err := l.tracks.GetByID(ctx, ts.trackID)
		if err != nil {
			continue // orphan: C4 chunk with no corresponding Track row
		}

		matches = append(matches, Match{
			Track:          *track,
			Similarity:     clamp01(ts.finalScore),
			EmbeddingModel: l.embeddingModel,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

type trackScore struct {
	trackID    uuid.UUID
	finalScore float64
}

// aggregateByTrack groups chunk hits by track and computes each
// track's base score (mean of its top-K chunk scores) plus a diversity
// bonus rewarding hits spread across more distinct offsets (spec §4.7
// step 3).
func aggregateByTrack(chunks []vectorstore.ScoredChunk, topK int, diversityWeight float64) []trackScore {
	byTrack := make(map[uuid.UUID][]vectorstore.ScoredChunk)
	for _, c := range chunks {
		byTrack[c.TrackID] = append(byTrack[c.TrackID], c)
	}

	out := make([]trackScore, 0, len(byTrack))
	for trackID, group := range byTrack {
		sort.Slice(group, func(i, j int) bool { return group[i].Score > group[j].Score })

		k := topK
		if k > len(group) {
			k = len(group)
		}
		var sum float64
		for i := 0; i < k; i++ {
			sum += float64(group[i].Score)
		}
		baseScore := sum / float64(k)

		distinctChunks := make(map[int]struct{})
		for _, c := range group {
			distinctChunks[c.ChunkIndex] = struct{}{}
		}
		diversityFraction := float64(len(distinctChunks)) / 5.0
		if diversityFraction > 1.0 {
			diversityFraction = 1.0
		}
		diversityBonus := diversityFraction * diversityWeight

		out = append(out, trackScore{trackID: trackID, finalScore: baseScore + diversityBonus})
	}

	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
