// Package exactlane implements query-time fingerprint search (C8 in
// spec §4.6): hash extraction, sub-window consensus, offset
// reconciliation, and confidence normalization. Grounded conceptually
// on the teacher's FindMatchesFGP (not itself present in the retrieved
// files; the grounding is the hashing machinery in
// internal/fingerprint plus the consensus algorithm the spec
// specifies), dispatched onto internal/workerpool per the blocking
// contract in spec §4.6/§5.
package exactlane

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/MacPhobos/audio-ident-sub001/internal/apperr"
	"github.com/MacPhobos/audio-ident-sub001/internal/fingerprint"
	"github.com/MacPhobos/audio-ident-sub001/internal/store"
	"github.com/MacPhobos/audio-ident-sub001/internal/workerpool"
)

// Config tunes the exact lane (spec §6 "Exact lane tuning").
type Config struct {
	MinAlignedHashes  int
	StrongMatchHashes int
	SubWindowDuration time.Duration
	SubWindowStarts   []time.Duration
	ConsensusSplit    time.Duration // clips at/under this duration use sub-window consensus
	FingerprintConfig fingerprint.Config
}

// Match is one surviving candidate, joined against the relational
// store.
type Match struct {
	Track        store.Track
	Confidence   float64
	OffsetSec    float64
	HasOffset    bool
	AlignedHashes int
}

// Lane runs exact fingerprint search against the shared fingerprint
// index and relational store.
type Lane struct {
	index  *fingerprint.Index
	tracks *store.Store
	cfg    Config
}

// New constructs a Lane. index and tracks are owned by C11's lifecycle
// and threaded in explicitly (spec §9 "Global mutable state").
func New(index *fingerprint.Index, tracks *store.Store, cfg Config) *Lane {
	return &Lane{index: index, tracks: tracks, cfg: cfg}
}

// candidate is one track's aligned-hash histogram result from a single
// window query, before cross-window consensus.
type candidate struct {
	trackID       uuid.UUID
	offsetSec     float64
	alignedHashes int
}

// Run executes the exact lane over 16kHz mono PCM samples and returns
// up to maxResults matches sorted by confidence descending.
func (l *Lane) Run(ctx context.Context, pcm []float64, sourceRate int, maxResults int) ([]Match, error) {
	if l.index == nil {
		return nil, apperr.New(apperr.CodeIndexUnavailable, "fingerprint index is not available", nil)
	}

	durationSec := float64(len(pcm)) / float64(sourceRate)

	var candidates []candidate
	var err error
	if durationSec > l.cfg.ConsensusSplit.Seconds() {
		candidates, err = l.queryWindow(pcm, sourceRate, 0)
	} else {
		candidates, err = l.queryWithConsensus(pcm, sourceRate, durationSec)
	}
	if err != nil {
		return nil, err
	}

	filtered := candidates[:0]
	for _, c := range candidates {
		if c.alignedHashes >= l.cfg.MinAlignedHashes {
			filtered = append(filtered, c)
		}
	}

	matches := make([]Match, 0, len(filtered))
	for _, c := range filtered {
		track, err := l.tracks.GetByID(ctx, c.trackID)
		if err != nil {
			continue // orphan: C2 entry with no corresponding Track row
		}
		matches = append(matches, Match{
			Track:         *track,
			Confidence:    confidenceFor(c.alignedHashes, l.cfg.StrongMatchHashes),
			OffsetSec:     c.offsetSec,
			HasOffset:     true,
			AlignedHashes: c.alignedHashes,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Confidence > matches[j].Confidence })
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

// confidenceFor caps at 1.0 once alignedHashes reaches strongMatch (spec §4.6).
func confidenceFor(alignedHashes, strongMatch int) float64 {
	c := float64(alignedHashes) / float64(strongMatch)
	if c > 1.0 {
		c = 1.0
	}
	return c
}

// queryWindow fingerprints one contiguous window of pcm (offset
// windowStartSec into the full clip) and builds a per-track aligned-hash
// histogram from the index's response. Reported offsets are corrected
// back to the start of the full clip.
func (l *Lane) queryWindow(pcm []float64, sourceRate int, windowStartSec float64) ([]candidate, error) {
	queryHashes, err := fingerprint.FingerprintPCM(pcm, sourceRate, uuid.Nil, l.cfg.FingerprintConfig)
	if err != nil {
		return nil, apperr.New(apperr.CodeDecodeFailed, "failed to fingerprint query audio", err)
	}

	matches, err := l.index.Query(queryHashes)
	if err != nil {
		return nil, err
	}

	bucketMs := l.cfg.FingerprintConfig.BucketMs(sourceRate)

	type histKey struct {
		trackID uuid.UUID
		bucket  int64
	}
	histogram := make(map[histKey]int)
	offsets := make(map[histKey][]float64)

	for _, m := range matches {
		bucket := int64(0)
		if bucketMs > 0 {
			bucket = int64(float64(m.OffsetMs) / bucketMs)
		}
		key := histKey{trackID: m.Couple.TrackID, bucket: bucket}
		histogram[key]++
		offsets[key] = append(offsets[key], float64(m.OffsetMs)/1000.0)
	}

	perTrackBest := make(map[uuid.UUID]candidate)
	for key, count := range histogram {
		existing, ok := perTrackBest[key.trackID]
		if ok && existing.alignedHashes >= count {
			continue
		}
		offsetSec := median(offsets[key]) - windowStartSec
		perTrackBest[key.trackID] = candidate{
			trackID:       key.trackID,
			offsetSec:     offsetSec,
			alignedHashes: count,
		}
	}

	out := make([]candidate, 0, len(perTrackBest))
	for _, c := range perTrackBest {
		out = append(out, c)
	}
	return out, nil
}

// subWindow is one sub-window query job: a slice of pcm starting at
// startSec within the full clip, at position idx in the result slice.
type subWindow struct {
	idx      int
	pcm      []float64
	startSec float64
}

// queryWithConsensus implements the sub-window path (spec §4.6): split
// the clip into the configured sub-windows, query each, and merge the
// per-window candidates by track. A track's aligned-hash count is the
// sum of its per-window counts and its offset is the median of its
// per-window offsets. The merge does not grade a track by how many
// windows returned it, does not check that its per-window offsets
// agree, and does not reject tracks on which the windows disagree.
// Each window's fingerprint extraction and
// index lookup is CPU-bound, so the windows are dispatched through
// internal/workerpool rather than run serially (spec §4.6/§5's
// blocking-call contract).
func (l *Lane) queryWithConsensus(pcm []float64, sourceRate int, durationSec float64) ([]candidate, error) {
	windows := make([]subWindow, 0, len(l.cfg.SubWindowStarts))

	for _, start := range l.cfg.SubWindowStarts {
		startSec := start.Seconds()
		if startSec >= durationSec {
			continue
		}
		endSec := startSec + l.cfg.SubWindowDuration.Seconds()
		if endSec > durationSec {
			endSec = durationSec
		}

		startIdx := int(startSec * float64(sourceRate))
		endIdx := int(endSec * float64(sourceRate))
		if startIdx >= len(pcm) || startIdx >= endIdx {
			continue
		}
		if endIdx > len(pcm) {
			endIdx = len(pcm)
		}

		windows = append(windows, subWindow{idx: len(windows), pcm: pcm[startIdx:endIdx], startSec: startSec})
	}

	perWindow := make([][]candidate, len(windows))
	errs := workerpool.Run(windows, len(windows), func(w subWindow) error {
		windowCandidates, err := l.queryWindow(w.pcm, sourceRate, w.startSec)
		if err != nil {
			return err
		}
		perWindow[w.idx] = windowCandidates
		return nil
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[uuid.UUID][]candidate)
	for _, window := range perWindow {
		for _, c := range window {
			seen[c.trackID] = append(seen[c.trackID], c)
		}
	}

	out := make([]candidate, 0, len(seen))
	for trackID, hits := range seen {
		offsets := make([]float64, len(hits))
		alignedHashes := 0
		for i, h := range hits {
			offsets[i] = h.offsetSec
			alignedHashes += h.alignedHashes
		}

		// The summed aligned-hash count feeds confidenceFor and
		// MinAlignedHashes as is, whether one window or several saw
		// this track.
		out = append(out, candidate{
			trackID:       trackID,
			offsetSec:     median(offsets),
			alignedHashes: alignedHashes,
		})
	}

	return out, nil
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
