package exactlane

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MacPhobos/audio-ident-sub001/internal/fingerprint"
	"github.com/MacPhobos/audio-ident-sub001/internal/store"
)

// syntheticTrack generates a deterministic, time-varying multi-tone
// signal so the fingerprinter produces distinct landmarks across time
// (a constant tone would degenerate the landmark pairing).
func syntheticTrack(durationSec float64, sourceRate int) []float64 {
	n := int(durationSec * float64(sourceRate))
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / float64(sourceRate)
		freq1 := 300 + 50*math.Sin(2*math.Pi*0.3*t)
		freq2 := 1200 + 80*math.Cos(2*math.Pi*0.17*t)
		out[i] = 0.5*math.Sin(2*math.Pi*freq1*t) + 0.3*math.Sin(2*math.Pi*freq2*t)
	}
	return out
}

func TestRunFindsExactMatchAboveStrongThreshold(t *testing.T) {
	const sourceRate = 16000
	cfg := Config{
		MinAlignedHashes:  8,
		StrongMatchHashes: 20,
		FingerprintConfig: fingerprint.DefaultConfig(),
	}

	idx, err := fingerprint.Open(filepath.Join(t.TempDir(), "fp.db"))
	if err != nil {
		t.Fatalf("Open index failed: %v", err)
	}
	defer idx.Close()

	db, err := store.Open(filepath.Join(t.TempDir(), "tracks.db"))
	if err != nil {
		t.Fatalf("Open store failed: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	trackID := uuid.New()
	if err := db.Insert(ctx, &store.Track{ID: trackID, Title: "Synthetic", ContentDigest: "digest-1", DurationMs: 30000}); err != nil {
		t.Fatalf("Insert track failed: %v", err)
	}

	fullTrack := syntheticTrack(30, sourceRate)
	hashes, err := fingerprint.FingerprintPCM(fullTrack, sourceRate, trackID, cfg.FingerprintConfig)
	if err != nil {
		t.Fatalf("FingerprintPCM failed: %v", err)
	}
	if err := idx.IndexTrack(trackID, hashes); err != nil {
		t.Fatalf("IndexTrack failed: %v", err)
	}

	lane := New(idx, db, cfg)

	// clip from 10s-16s of the track; this config leaves ConsensusSplit
	// at zero, so the lane queries it as a single window.
	clipStart := 10.0
	clipEnd := 16.0
	startIdx := int(clipStart * sourceRate)
	endIdx := int(clipEnd * sourceRate)
	clip := fullTrack[startIdx:endIdx]

	matches, err := lane.Run(ctx, clip, sourceRate, 10)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}
	if matches[0].Track.ID != trackID {
		t.Fatalf("top match track id = %v, want %v", matches[0].Track.ID, trackID)
	}
	if matches[0].AlignedHashes < cfg.StrongMatchHashes {
		t.Errorf("aligned hashes = %d, want >= %d for a strong match", matches[0].AlignedHashes, cfg.StrongMatchHashes)
	}
	if matches[0].Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", matches[0].Confidence)
	}
	if math.Abs(matches[0].OffsetSec-clipStart) > 0.5 {
		t.Errorf("offset = %v, want close to %v", matches[0].OffsetSec, clipStart)
	}
}

// TestRunConsensusSingleWindowDoesNotHalveAlignedHashes exercises the
// <=ConsensusSplit sub-window path with a single configured sub-window,
// guaranteeing exactly one window sees the track. The reported
// AlignedHashes must equal the raw per-window histogram count used for
// filtering, never a halved LOW-confidence placeholder (spec §8:
// aligned_hashes=8 from one sub-window must still pass MinAlignedHashes
// and report its true count).
func TestRunConsensusSingleWindowDoesNotHalveAlignedHashes(t *testing.T) {
	const sourceRate = 16000
	cfg := Config{
		MinAlignedHashes:  8,
		StrongMatchHashes: 20,
		SubWindowDuration: 4 * time.Second,
		SubWindowStarts:   []time.Duration{0},
		ConsensusSplit:    5 * time.Second,
		FingerprintConfig: fingerprint.DefaultConfig(),
	}

	idx, err := fingerprint.Open(filepath.Join(t.TempDir(), "fp.db"))
	if err != nil {
		t.Fatalf("Open index failed: %v", err)
	}
	defer idx.Close()

	db, err := store.Open(filepath.Join(t.TempDir(), "tracks.db"))
	if err != nil {
		t.Fatalf("Open store failed: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	trackID := uuid.New()
	if err := db.Insert(ctx, &store.Track{ID: trackID, Title: "Synthetic", ContentDigest: "digest-2", DurationMs: 30000}); err != nil {
		t.Fatalf("Insert track failed: %v", err)
	}

	fullTrack := syntheticTrack(30, sourceRate)
	hashes, err := fingerprint.FingerprintPCM(fullTrack, sourceRate, trackID, cfg.FingerprintConfig)
	if err != nil {
		t.Fatalf("FingerprintPCM failed: %v", err)
	}
	if err := idx.IndexTrack(trackID, hashes); err != nil {
		t.Fatalf("IndexTrack failed: %v", err)
	}

	lane := New(idx, db, cfg)

	clipStart := 10.0
	clipEnd := 14.0 // 4s clip, under the 5s ConsensusSplit
	startIdx := int(clipStart * sourceRate)
	endIdx := int(clipEnd * sourceRate)
	clip := fullTrack[startIdx:endIdx]

	// Independently compute the raw single-window histogram count the
	// same way queryWithConsensus's sole sub-window would.
	rawCandidates, err := lane.queryWindow(clip, sourceRate, 0)
	if err != nil {
		t.Fatalf("queryWindow failed: %v", err)
	}
	var rawAligned int
	for _, c := range rawCandidates {
		if c.trackID == trackID {
			rawAligned = c.alignedHashes
		}
	}
	if rawAligned == 0 {
		t.Fatal("expected the raw single-window query to find the track")
	}

	matches, err := lane.Run(ctx, clip, sourceRate, 10)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("expected at least one match via sub-window consensus")
	}
	if matches[0].Track.ID != trackID {
		t.Fatalf("top match track id = %v, want %v", matches[0].Track.ID, trackID)
	}
	if matches[0].AlignedHashes != rawAligned {
		t.Errorf("aligned hashes = %d, want unhalved raw count %d", matches[0].AlignedHashes, rawAligned)
	}
}

func TestRunEmptyIndexReturnsNoMatches(t *testing.T) {
	const sourceRate = 16000
	cfg := Config{
		MinAlignedHashes:  8,
		StrongMatchHashes: 20,
		FingerprintConfig: fingerprint.DefaultConfig(),
	}

	idx, err := fingerprint.Open(filepath.Join(t.TempDir(), "fp.db"))
	if err != nil {
		t.Fatalf("Open index failed: %v", err)
	}
	defer idx.Close()

	db, err := store.Open(filepath.Join(t.TempDir(), "tracks.db"))
	if err != nil {
		t.Fatalf("Open store failed: %v", err)
	}
	defer db.Close()

	lane := New(idx, db, cfg)
	clip := syntheticTrack(6, sourceRate)

	matches, err := lane.Run(context.Background(), clip, sourceRate, 10)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches against an empty index, got %d", len(matches))
	}
}
