package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	chromem "github.com/philippgille/chromem-go"

	"github.com/beaconchat/beacon/internal/chunk"
	"github.com/beaconchat/beacon/internal/config"
	"github.com/beaconchat/beacon/internal/crawler"
	"github.com/beaconchat/beacon/internal/database"
	"github.com/beaconchat/beacon/internal/embed"
	"github.com/beaconchat/beacon/internal/ingest"
	"github.com/beaconchat/beacon/internal/log"
	"github.com/beaconchat/beacon/internal/retrieval"
	"github.com/beaconchat/beacon/internal/source"
	"github.com/beaconchat/beacon/internal/vectorstore"
)

// app is the composition root: every command builds one, uses the wired
// services and closes it.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db   *sql.DB
	lock *flock.Flock

	sources   *source.Store
	vectors   *vectorstore.Store
	ingest    *ingest.Service
	retrieval *retrieval.Pipeline
}

// newApp loads configuration and wires the full service graph. The data
// directory is protected with a file lock: chromem's persistent files do
// not tolerate two writing processes.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.Level(), JSON: cfg.LogJSON})
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.DataDir, "beacon.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock data directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("data directory %s is in use by another beacon process", cfg.DataDir)
	}

	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}

	vdb, err := chromem.NewPersistentDB(cfg.VectorDir(), false)
	if err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}

	embedder, err := embed.NewFromConfig(cfg, logger)
	if err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}

	vectors, err := vectorstore.New(vdb, embedder, logger)
	if err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}

	sources := source.NewStore(db, logger)

	cr := crawler.New(crawler.Config{
		Timeout:    cfg.CrawlTimeout,
		BatchDelay: cfg.CrawlBatchDelay,
	}, logger)

	chunker := chunk.New(cfg.ChunkSize, cfg.ChunkOverlap)

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		lock:    lock,
		sources: sources,
		vectors: vectors,
		ingest:  ingest.NewService(sources, vectors, cr, chunker, logger),
		retrieval: retrieval.NewPipeline(vectors, sources, retrieval.Config{
			Candidates:         cfg.Candidates,
			DistanceCeiling:    float64(cfg.DistanceCeiling),
			DistanceMargin:     float64(cfg.DistanceMargin),
			FallbackCeiling:    float64(cfg.FallbackCeiling),
			FallbackCandidates: cfg.FallbackCandidates,
			MaxContextChars:    cfg.MaxContextChars,
		}, logger),
	}, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.lock != nil {
		_ = a.lock.Unlock()
	}
}
