// Package vectorstore wraps the Qdrant collection backing the vibe lane
// (C4 in spec §4.4): HNSW indexing, cosine distance, and int8 scalar
// quantization over 512-dim embeddings. Grounded on
// github.com/qdrant/go-client, the vector-store dependency carried over
// from the retrieval pack (intelligencedev-manifold's go.mod) since no
// retrieved source file exercises it — its collection/point wire shapes
// are fixed by the Qdrant API itself, not by that repo's usage.
package vectorstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/MacPhobos/audio-ident-sub001/internal/apperr"
)

const (
	// VectorDim matches embedding.Dimension; duplicated here (rather than
	// importing the embedding package) to keep vectorstore usable against
	// any 512-dim vector source.
	VectorDim = 512

	hnswM            = 16
	hnswEfConstruct  = 200
	quantileBoundary = 0.99
)

// Store wraps a Qdrant client scoped to a single collection.
type Store struct {
	client     *qdrant.Client
	collection string
}

// Config describes how to reach the Qdrant instance and which
// collection to use.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
}

// Connect opens a gRPC client connection to Qdrant. It does not create
// the collection; call EnsureCollection during startup (C11).
func Connect(cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, apperr.New(apperr.CodeVectorStoreDown, "failed to connect to vector store", err)
	}
	return &Store{client: client, collection: cfg.Collection}, nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// EnsureCollection creates the collection if it does not already exist,
// with HNSW indexing, cosine distance, int8 scalar quantization kept
// always-in-RAM, and payload indexes on track_id and genre (spec §4.4).
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return apperr.New(apperr.CodeVectorStoreDown, "failed to check vector store collection", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     VectorDim,
			Distance: qdrant.Distance_Cosine,
			HnswConfig: &qdrant.HnswConfigDiff{
				M:           qdrant.PtrOf(uint64(hnswM)),
				EfConstruct: qdrant.PtrOf(uint64(hnswEfConstruct)),
			},
		}),
		QuantizationConfig: qdrant.NewQuantizationScalar(&qdrant.ScalarQuantization{
			Type:      qdrant.QuantizationType_Int8,
			Quantile:  qdrant.PtrOf(float32(quantileBoundary)),
			AlwaysRam: qdrant.PtrOf(true),
		}),
	})
	if err != nil {
		return apperr.New(apperr.CodeVectorStoreDown, "failed to create vector store collection", err)
	}

	for _, field := range []string{"track_id", "genre"} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.PtrOf(qdrant.FieldType_FieldTypeKeyword),
		})
		if err != nil {
			return apperr.New(apperr.CodeVectorStoreDown, fmt.Sprintf("failed to create payload index on %s", field), err)
		}
	}

	return nil
}

// Chunk is one embedded window of a track, addressed by the track's ID
// plus its position within the track (spec §4.3/§4.5's payload
// invariants: track_id, offset_sec, chunk_index, duration_sec, artist,
// title, genre).
type Chunk struct {
	TrackID     uuid.UUID
	ChunkIndex  int
	OffsetSec   float64
	DurationSec float64
	Artist      string
	Title       string
	Vector      [VectorDim]float32
	Genre       string
}

// UpsertBatchSize is the maximum points sent per Upsert call (spec §4.4).
const UpsertBatchSize = 100

// chunkPointID deterministically derives a Qdrant point ID (a name-based
// UUID) from a track's identity and its chunk index, so re-ingesting the
// same track at the same chunk index overwrites rather than duplicates.
func chunkPointID(trackID uuid.UUID, chunkIndex int) string {
	return uuid.NewSHA1(trackID, []byte(strconv.Itoa(chunkIndex))).String()
}

// Upsert writes chunks in batches of at most UpsertBatchSize.
func (s *Store) Upsert(ctx context.Context, chunks []Chunk) error {
	for start := 0; start < len(chunks); start += UpsertBatchSize {
		end := start + UpsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, c := range chunks[start:end] {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewID(chunkPointID(c.TrackID, c.ChunkIndex)),
				Vectors: qdrant.NewVectors(c.Vector[:]...),
				Payload: qdrant.NewValueMap(map[string]any{
					"track_id":     c.TrackID.String(),
					"offset_sec":   c.OffsetSec,
					"chunk_index":  c.ChunkIndex,
					"duration_sec": c.DurationSec,
					"artist":       c.Artist,
					"title":        c.Title,
					"genre":        c.Genre,
				}),
			})
		}

		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		if err != nil {
			return apperr.New(apperr.CodeVectorStoreDown, "failed to upsert vector store batch", err)
		}
	}
	return nil
}

// DeleteTrack removes every chunk belonging to trackID.
func (s *Store) DeleteTrack(ctx context.Context, trackID uuid.UUID) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{qdrant.NewMatch("track_id", trackID.String())},
				},
			},
		},
	})
	if err != nil {
		return apperr.New(apperr.CodeVectorStoreDown, "failed to delete track from vector store", err)
	}
	return nil
}

// ScoredChunk is one query hit.
type ScoredChunk struct {
	TrackID     uuid.UUID
	ChunkIndex  int
	OffsetSec   float64
	DurationSec float64
	Artist      string
	Title       string
	Genre       string
	Score       float32
}

// QueryOpts narrows a similarity search (spec §4.4/§4.8).
type QueryOpts struct {
	Limit uint64
	Genre string // optional payload filter
}

// Query runs a cosine similarity search and returns the top Limit chunks.
func (s *Store) Query(ctx context.Context, vector [VectorDim]float32, opts QueryOpts) ([]ScoredChunk, error) {
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector[:]...),
		Limit:          qdrant.PtrOf(opts.Limit),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.Genre != "" {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("genre", opts.Genre)},
		}
	}

	resp, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, apperr.New(apperr.CodeVectorStoreDown, "vector store query failed", err)
	}

	out := make([]ScoredChunk, 0, len(resp))
	for _, point := range resp {
		payload := point.GetPayload()
		trackIDStr := payload["track_id"].GetStringValue()
		trackID, parseErr := uuid.Parse(trackIDStr)
		if parseErr != nil {
			continue
		}
		out = append(out, ScoredChunk{
			TrackID:     trackID,
			ChunkIndex:  int(payload["chunk_index"].GetIntegerValue()),
			OffsetSec:   payload["offset_sec"].GetDoubleValue(),
			DurationSec: payload["duration_sec"].GetDoubleValue(),
			Artist:      payload["artist"].GetStringValue(),
			Title:       payload["title"].GetStringValue(),
			Genre:       payload["genre"].GetStringValue(),
			Score:       point.GetScore(),
		})
	}
	return out, nil
}
