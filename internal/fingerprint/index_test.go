package fingerprint

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fingerprint.db")
	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndexTrackAndQuery(t *testing.T) {
	idx := openTestIndex(t)

	trackID := uuid.New()
	hashes := []Hash{
		{Address: 1, Couple: Couple{AnchorTimeMs: 0, TrackID: trackID}},
		{Address: 2, Couple: Couple{AnchorTimeMs: 100, TrackID: trackID}},
	}

	if err := idx.IndexTrack(trackID, hashes); err != nil {
		t.Fatalf("IndexTrack failed: %v", err)
	}

	query := []Hash{
		{Address: 1, Couple: Couple{AnchorTimeMs: 0}},
	}
	matches, err := idx.Query(query)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Couple.TrackID != trackID {
		t.Errorf("match has wrong track id")
	}
	if matches[0].OffsetMs != 0 {
		t.Errorf("offset = %d, want 0", matches[0].OffsetMs)
	}
}

func TestIndexTrackIdempotentReindex(t *testing.T) {
	idx := openTestIndex(t)
	trackID := uuid.New()

	first := []Hash{{Address: 5, Couple: Couple{AnchorTimeMs: 50, TrackID: trackID}}}
	if err := idx.IndexTrack(trackID, first); err != nil {
		t.Fatalf("first IndexTrack failed: %v", err)
	}

	second := []Hash{{Address: 9, Couple: Couple{AnchorTimeMs: 90, TrackID: trackID}}}
	if err := idx.IndexTrack(trackID, second); err != nil {
		t.Fatalf("second IndexTrack failed: %v", err)
	}

	oldMatches, err := idx.Query([]Hash{{Address: 5, Couple: Couple{AnchorTimeMs: 0}}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(oldMatches) != 0 {
		t.Errorf("stale address 5 still has %d matches after reindex, want 0", len(oldMatches))
	}

	newMatches, err := idx.Query([]Hash{{Address: 9, Couple: Couple{AnchorTimeMs: 0}}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(newMatches) != 1 {
		t.Errorf("address 9 has %d matches, want 1", len(newMatches))
	}
}

func TestDeleteTrackRemovesEntries(t *testing.T) {
	idx := openTestIndex(t)
	trackID := uuid.New()

	hashes := []Hash{
		{Address: 11, Couple: Couple{AnchorTimeMs: 10, TrackID: trackID}},
		{Address: 12, Couple: Couple{AnchorTimeMs: 20, TrackID: trackID}},
	}
	if err := idx.IndexTrack(trackID, hashes); err != nil {
		t.Fatalf("IndexTrack failed: %v", err)
	}
	if err := idx.DeleteTrack(trackID); err != nil {
		t.Fatalf("DeleteTrack failed: %v", err)
	}

	matches, err := idx.Query([]Hash{
		{Address: 11, Couple: Couple{AnchorTimeMs: 0}},
		{Address: 12, Couple: Couple{AnchorTimeMs: 0}},
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches after delete, want 0", len(matches))
	}
}

func TestIndexSharedAddressMultipleTracks(t *testing.T) {
	idx := openTestIndex(t)
	trackA := uuid.New()
	trackB := uuid.New()

	if err := idx.IndexTrack(trackA, []Hash{{Address: 42, Couple: Couple{AnchorTimeMs: 1, TrackID: trackA}}}); err != nil {
		t.Fatalf("IndexTrack A failed: %v", err)
	}
	if err := idx.IndexTrack(trackB, []Hash{{Address: 42, Couple: Couple{AnchorTimeMs: 2, TrackID: trackB}}}); err != nil {
		t.Fatalf("IndexTrack B failed: %v", err)
	}

	matches, err := idx.Query([]Hash{{Address: 42, Couple: Couple{AnchorTimeMs: 0}}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}

	if err := idx.DeleteTrack(trackA); err != nil {
		t.Fatalf("DeleteTrack failed: %v", err)
	}
	matches, err = idx.Query([]Hash{{Address: 42, Couple: Couple{AnchorTimeMs: 0}}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Couple.TrackID != trackB {
		t.Fatalf("expected only track B's entry to remain, got %+v", matches)
	}
}
