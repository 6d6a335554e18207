package vectorstore

import (
	"testing"

	"github.com/google/uuid"
)

func TestChunkPointIDDeterministic(t *testing.T) {
	trackID := uuid.New()

	id1 := chunkPointID(trackID, 1)
	id2 := chunkPointID(trackID, 1)
	if id1 != id2 {
		t.Fatalf("chunkPointID is not deterministic: %q != %q", id1, id2)
	}

	id3 := chunkPointID(trackID, 2)
	if id1 == id3 {
		t.Fatalf("different chunk indexes produced the same point id")
	}
}

func TestUpsertBatchSizeIsPositive(t *testing.T) {
	if UpsertBatchSize <= 0 {
		t.Fatalf("UpsertBatchSize = %d, want > 0", UpsertBatchSize)
	}
}
