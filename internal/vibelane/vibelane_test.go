package vibelane

import (
	"testing"

	"github.com/google/uuid"

	"github.com/MacPhobos/audio-ident-sub001/internal/vectorstore"
)

func TestAggregateByTrackTopKAverage(t *testing.T) {
	trackID := uuid.New()
	chunks := []vectorstore.ScoredChunk{
		{TrackID: trackID, ChunkIndex: 0, Score: 0.9},
		{TrackID: trackID, ChunkIndex: 1, Score: 0.8},
		{TrackID: trackID, ChunkIndex: 2, Score: 0.7},
		{TrackID: trackID, ChunkIndex: 3, Score: 0.1}, // should not affect top-3 average
	}

	scored := aggregateByTrack(chunks, 3, 0.05)
	if len(scored) != 1 {
		t.Fatalf("got %d tracks, want 1", len(scored))
	}

	// scores are float32, so the expected mean uses their float32 values
	wantBase := (float64(float32(0.9)) + float64(float32(0.8)) + float64(float32(0.7))) / 3.0
	wantDiversity := (4.0 / 5.0) * 0.05 // 4 distinct chunk indexes
	want := wantBase + wantDiversity

	if diff := scored[0].finalScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("finalScore = %v, want %v", scored[0].finalScore, want)
	}
}

func TestAggregateByTrackFewerThanTopK(t *testing.T) {
	trackID := uuid.New()
	chunks := []vectorstore.ScoredChunk{
		{TrackID: trackID, ChunkIndex: 0, Score: 0.6},
	}

	scored := aggregateByTrack(chunks, 3, 0.05)
	if len(scored) != 1 {
		t.Fatalf("got %d tracks, want 1", len(scored))
	}
	wantBase := float64(float32(0.6))
	wantDiversity := (1.0 / 5.0) * 0.05
	want := wantBase + wantDiversity
	if diff := scored[0].finalScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("finalScore = %v, want %v", scored[0].finalScore, want)
	}
}

func TestAggregateByTrackDiversityCapsAtOne(t *testing.T) {
	trackID := uuid.New()
	var chunks []vectorstore.ScoredChunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, vectorstore.ScoredChunk{TrackID: trackID, ChunkIndex: i, Score: 0.5})
	}

	scored := aggregateByTrack(chunks, 3, 0.05)
	want := 0.5 + 0.05 // diversity fraction capped at 1.0
	if diff := scored[0].finalScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("finalScore = %v, want %v", scored[0].finalScore, want)
	}
}

func TestClamp01(t *testing.T) {
	cases := map[float64]float64{-0.5: 0, 0.5: 0.5, 1.5: 1}
	for in, want := range cases {
		if got := clamp01(in); got != want {
			t.Errorf("clamp01(%v) = %v, want %v", in, got, want)
		}
	}
}
