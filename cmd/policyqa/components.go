package main

import (
	"fmt"

	"github.com/hyperjump/policyqa/internal/classify"
	"github.com/hyperjump/policyqa/internal/config"
	"github.com/hyperjump/policyqa/internal/docstore"
	"github.com/hyperjump/policyqa/internal/extract"
	"github.com/hyperjump/policyqa/internal/indexer"
	"github.com/hyperjump/policyqa/internal/llm"
	"github.com/hyperjump/policyqa/internal/search"
	"github.com/hyperjump/policyqa/internal/synth"
	"github.com/hyperjump/policyqa/pkg/utils"
	"go.uber.org/zap"
)

type componentOptions struct {
	exploratory bool
}

// Components holds the wired services shared by every command.
type Components struct {
	Store   docstore.Backend
	Model   llm.Model
	Engine  *search.Engine
	Indexer *indexer.Indexer
}

// Close releases the store.
func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
		c.Store = nil
	}
}

func newChunker(cfg *config.IngestConfig, exploratory bool) *indexer.Chunker {
	chunker := indexer.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if exploratory {
		chunker = indexer.ExploratoryChunker()
	}
	if cfg.MinChunkLength > 0 {
		chunker = chunker.WithMinLength(cfg.MinChunkLength)
	}
	return chunker
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, opts componentOptions) (*Components, error) {
	logger = utils.LoggerOrNop(logger)
	store := docstore.Open(cfg, logger)

	model, err := llm.New(&cfg.LLM, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize language model: %w", err)
	}

	var categorizer indexer.Categorizer
	if cfg.Ingest.ClassifyOrDefault() {
		categorizer = classify.New(model,
			classify.WithPreviewLength(cfg.Ingest.PreviewLength),
			classify.WithDefaultCategory(cfg.Ingest.DefaultCategory),
			classify.WithLogger(logger),
		)
	}
	extractor := extract.NewExtractor(
		extract.WithTempDir(cfg.Storage.TempDir),
		extract.WithLogger(logger),
	)
	idx := indexer.NewIndexer(store, extractor, categorizer,
		indexer.WithChunker(newChunker(&cfg.Ingest, opts.exploratory)),
		indexer.WithMaxFiles(cfg.Ingest.MaxFiles),
		indexer.WithDefaultCategory(cfg.Ingest.DefaultCategory),
		indexer.WithLogger(logger),
	)

	retrieverOpts := []search.RetrieverOption{
		search.WithFields(cfg.Search.Fields),
		search.WithRetrieverLogger(logger),
	}
	if cfg.Search.EnhanceQuery {
		retrieverOpts = append(retrieverOpts, search.WithEnhancement(model))
	}
	engine := search.NewEngine(store,
		search.NewRetriever(store, retrieverOpts...),
		synth.New(model, logger),
		search.WithLimit(cfg.Search.Limit),
		search.WithLogger(logger),
	)

	logger.Debug("components initialized",
		zap.Bool("store_connected", store.Connected()),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Bool("classify", cfg.Ingest.ClassifyOrDefault()),
		zap.Bool("enhance_query", cfg.Search.EnhanceQuery),
	)
	return &Components{
		Store:   store,
		Model:   model,
		Engine:  engine,
		Indexer: idx,
	}, nil
}
