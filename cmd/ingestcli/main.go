// Command ingestcli is the admin-only batch ingestion tool (the
// collaborator boundary named in spec §6's "POST /api/v1/ingest" note:
// "specify only as a collaborator boundary"). Grounded on the teacher's
// save/saveEntry (server/cmdHandlers.go): accepts a file or a directory,
// walking the latter, but drives internal/ingest.BatchIngest's
// sequential pipeline instead of the teacher's worker-pool fan-out,
// since concurrent ingestion would violate the single-writer protocol
// (spec §4.5, §9).
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/MacPhobos/audio-ident-sub001/internal/config"
	"github.com/MacPhobos/audio-ident-sub001/internal/fingerprint"
	"github.com/MacPhobos/audio-ident-sub001/internal/ingest"
	"github.com/MacPhobos/audio-ident-sub001/internal/lifecycle"
	"github.com/MacPhobos/audio-ident-sub001/internal/logging"
	"github.com/MacPhobos/audio-ident-sub001/internal/vectorstore"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg := config.Load()
	logging.Init(cfg.LogLevel)
	logger := logging.Default()

	ctx := context.Background()
	lc := lifecycle.New(logger)
	if err := lc.Start(ctx, lifecycle.Config{
		RelationalDSN:     cfg.RelationalDSN,
		FingerprintDBPath: cfg.FingerprintDBPath,
		VectorStore: vectorstore.Config{
			Host:       cfg.VectorStoreHost,
			Port:       cfg.VectorStorePort,
			Collection: cfg.VectorStoreCollection,
		},
		EmbeddingModelPath: cfg.EmbeddingModelPath,
		EmbeddingThreads:   cfg.EmbeddingThreads,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer lc.Stop(context.Background())

	pipeline := ingest.New(lc.Tracks, lc.Index, lc.Model, lc.Vectors, ingest.Config{
		MinIngestDuration:      cfg.MinIngestDuration,
		MaxIngestDuration:      cfg.MaxIngestDuration,
		ChunkWindow:            cfg.ChunkWindow,
		ChunkHop:               cfg.ChunkHop,
		ContentDupThreshold:    cfg.ContentDupThreshold,
		DedupDurationTolerance: cfg.DedupDurationTolerance,
		FingerprintConfig:      fingerprint.DefaultConfig(),
		RawStorageDir:          cfg.RawStorageDir,
		EmbeddingModel:         cfg.EmbeddingModelID,
	})

	sources, err := collectSources(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(sources) == 0 {
		fmt.Println("no audio files found")
		return
	}

	fmt.Printf("ingesting %d file(s)...\n", len(sources))
	results := pipeline.BatchIngest(ctx, sources)

	var ingested, duplicate, skipped, failed int
	for i, res := range results {
		switch res.Status {
		case ingest.StatusIngested:
			ingested++
			color.Green("  [ingested]  %s - %s by %s", sources[i].Path, res.Title, res.Artist)
		case ingest.StatusDuplicate:
			duplicate++
			color.Yellow("  [duplicate] %s - matches %s by %s", sources[i].Path, res.Title, res.Artist)
		case ingest.StatusSkipped:
			skipped++
			color.Yellow("  [skipped]   %s - %s", sources[i].Path, res.Reason)
		case ingest.StatusError:
			failed++
			color.Red("  [error]     %s - %v", sources[i].Path, res.Err)
		}
	}

	fmt.Printf("\ndone: %d ingested, %d duplicate, %d skipped, %d failed\n", ingested, duplicate, skipped, failed)
}

func collectSources(path string) ([]ingest.Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return []ingest.Source{{Path: path}}, nil
	}

	var sources []ingest.Source
	err = filepath.Walk(path, func(fp string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			sources = append(sources, ingest.Source{Path: fp})
		}
		return nil
	})
	return sources, err
}

func printUsage() {
	fmt.Println("usage: ingestcli <path_to_file_or_directory>")
}
