// Package config loads the recognized configuration surface of spec §6,
// grounded on birdnet-go's internal/conf (a struct tree populated by
// spf13/viper) generalized from YAML-first to env-first since this
// service, like the teacher (server/main.go's godotenv.Load), is meant to
// run from a single process with environment-variable configuration in
// front of container orchestration.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the full recognized configuration surface (spec §6).
type Config struct {
	// Upload / validation
	MaxUploadBytes   int64
	MinQueryDuration time.Duration
	MaxQueryDuration time.Duration

	// Ingest-time duration bounds
	MinIngestDuration time.Duration
	MaxIngestDuration time.Duration

	// Lane timeouts
	ExactTimeout time.Duration
	VibeTimeout  time.Duration
	TotalTimeout time.Duration

	// Exact lane tuning
	ExactMinAlignedHashes    int
	ExactStrongMatchHashes   int
	SubWindowDuration        time.Duration
	SubWindowStarts          []time.Duration
	SubWindowConsensusSplit  time.Duration // clip duration <= this uses sub-window consensus

	// Vibe lane tuning
	VibeSearchLimit     uint64
	VibeTopKPerTrack    int
	VibeDiversityWeight float64
	VibeScoreThreshold  float64
	HNSWEf              uint64

	// Embedding model
	EmbeddingModelID  string
	EmbeddingModelDim int
	EmbeddingModelPath string
	ChunkWindow       time.Duration
	ChunkHop          time.Duration

	// Dedup
	ContentDupThreshold   float64
	DedupDurationTolerance float64 // fraction, e.g. 0.10 == +/-10%

	// Connection strings / paths
	RelationalDSN         string
	VectorStoreAddr       string
	VectorStoreHost       string
	VectorStorePort       int
	VectorStoreCollection string
	FingerprintDBPath     string
	RawStorageDir         string

	// Server
	ServerPort       string
	EmbeddingThreads int

	LogLevel string
}

// Default returns the configuration surface with the defaults named in
// spec §6.
func Default() *Config {
	return &Config{
		MaxUploadBytes:   10 << 20,
		MinQueryDuration: 3 * time.Second,
		MaxQueryDuration: 30 * time.Second,

		MinIngestDuration: 3 * time.Second,
		MaxIngestDuration: 1800 * time.Second,

		ExactTimeout: 3 * time.Second,
		VibeTimeout:  4 * time.Second,
		TotalTimeout: 5 * time.Second,

		ExactMinAlignedHashes:   8,
		ExactStrongMatchHashes:  20,
		SubWindowDuration:       3500 * time.Millisecond,
		SubWindowStarts: []time.Duration{
			0,
			750 * time.Millisecond,
			1500 * time.Millisecond,
		},
		SubWindowConsensusSplit: 5 * time.Second,

		VibeSearchLimit:     50,
		VibeTopKPerTrack:    3,
		VibeDiversityWeight: 0.05,
		VibeScoreThreshold:  0.60,
		HNSWEf:              128,

		EmbeddingModelID:   "laion/larger_clap_music_and_speech",
		EmbeddingModelDim:  512,
		EmbeddingModelPath: "models/clap_music_and_speech.tflite",
		ChunkWindow:        10 * time.Second,
		ChunkHop:           5 * time.Second,

		ContentDupThreshold:   0.85,
		DedupDurationTolerance: 0.10,

		RelationalDSN:         "file:audio_ident.db?cache=shared",
		VectorStoreAddr:       "localhost:6334",
		VectorStoreHost:       "localhost",
		VectorStorePort:       6334,
		VectorStoreCollection: "audio_chunks",
		FingerprintDBPath:     "exact_index/fingerprints.bbolt",
		RawStorageDir:         "raw",

		ServerPort:       "5000",
		EmbeddingThreads: 4,

		LogLevel: "info",
	}
}

// Load reads environment overrides (AUDIOIDENT_*) on top of Default, the
// way the teacher layers a .env file (via godotenv) in front of flag
// defaults in server/main.go.
func Load() *Config {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("AUDIOIDENT")
	v.AutomaticEnv()

	if v.IsSet("MAX_UPLOAD_BYTES") {
		cfg.MaxUploadBytes = v.GetInt64("MAX_UPLOAD_BYTES")
	}
	if v.IsSet("RELATIONAL_DSN") {
		cfg.RelationalDSN = v.GetString("RELATIONAL_DSN")
	}
	if v.IsSet("VECTOR_STORE_ADDR") {
		cfg.VectorStoreAddr = v.GetString("VECTOR_STORE_ADDR")
	}
	if v.IsSet("FINGERPRINT_DB_PATH") {
		cfg.FingerprintDBPath = v.GetString("FINGERPRINT_DB_PATH")
	}
	if v.IsSet("RAW_STORAGE_DIR") {
		cfg.RawStorageDir = v.GetString("RAW_STORAGE_DIR")
	}
	if v.IsSet("EMBEDDING_MODEL_PATH") {
		cfg.EmbeddingModelPath = v.GetString("EMBEDDING_MODEL_PATH")
	}
	if v.IsSet("LOG_LEVEL") {
		cfg.LogLevel = v.GetString("LOG_LEVEL")
	}
	if v.IsSet("VIBE_SCORE_THRESHOLD") {
		cfg.VibeScoreThreshold = v.GetFloat64("VIBE_SCORE_THRESHOLD")
	}
	if v.IsSet("VECTOR_STORE_HOST") {
		cfg.VectorStoreHost = v.GetString("VECTOR_STORE_HOST")
	}
	if v.IsSet("VECTOR_STORE_PORT") {
		cfg.VectorStorePort = v.GetInt("VECTOR_STORE_PORT")
	}
	if v.IsSet("VECTOR_STORE_COLLECTION") {
		cfg.VectorStoreCollection = v.GetString("VECTOR_STORE_COLLECTION")
	}
	if v.IsSet("SERVER_PORT") {
		cfg.ServerPort = v.GetString("SERVER_PORT")
	}
	if v.IsSet("EMBEDDING_THREADS") {
		cfg.EmbeddingThreads = v.GetInt("EMBEDDING_THREADS")
	}

	return cfg
}
