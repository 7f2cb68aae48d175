package pipeline

import (
	"fmt"

	"kbsync/internal/config"
	"kbsync/internal/vecstore"
)

func newVecIndexer(cfg config.Index) (Indexer, error) {
	store, err := vecstore.NewStore(cfg.Addr, cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("pipeline: vector store: %w", err)
	}
	emb := vecstore.NewEmbedder(cfg.EmbedURL, cfg.EmbedModel)
	return vecstore.NewIndexer(store, emb, vecstore.IndexerConfig{
		Dims:       cfg.Dims,
		Batch:      cfg.Options.Int("batch", 0),
		RatePerSec: cfg.RatePerSec,
	}), nil
}
