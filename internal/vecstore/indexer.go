package vecstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"kbsync/internal/category"
)

// Uploader is the slice of Store the Indexer needs. Tests substitute fakes.
type Uploader interface {
	EnsureCollection(ctx context.Context, dims int) error
	Upsert(ctx context.Context, points []Point) error
}

// TextEmbedder produces one embedding per text.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IndexerConfig tunes an Indexer.
type IndexerConfig struct {
	// Dims is the vector dimensionality, passed to EnsureCollection.
	Dims int
	// Batch is the number of points per upsert (default 64).
	Batch int
	// RatePerSec throttles embed calls; 0 means unlimited.
	RatePerSec float64
}

// Indexer walks a category map in order and upserts one point per item.
type Indexer struct {
	store   Uploader
	embed   TextEmbedder
	limiter *rate.Limiter
	dims    int
	batch   int
}

// NewIndexer wires an Indexer over an uploader and embedder.
func NewIndexer(store Uploader, embed TextEmbedder, cfg IndexerConfig) *Indexer {
	batch := cfg.Batch
	if batch <= 0 {
		batch = 64
	}
	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return &Indexer{
		store:   store,
		embed:   embed,
		limiter: limiter,
		dims:    cfg.Dims,
		batch:   batch,
	}
}

// Index upserts every item of m and returns how many points were written.
// Point IDs are deterministic per (category, position), so re-running a sync
// overwrites points instead of duplicating them.
func (ix *Indexer) Index(ctx context.Context, m *category.Map) (int, error) {
	if m == nil || m.Len() == 0 {
		return 0, nil
	}

	if err := ix.store.EnsureCollection(ctx, ix.dims); err != nil {
		return 0, err
	}

	total := 0
	batch := make([]Point, 0, ix.batch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ix.store.Upsert(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, key := range m.Keys() {
		for i, it := range m.Items(key) {
			if ix.limiter != nil {
				if err := ix.limiter.Wait(ctx); err != nil {
					return total, err
				}
			}

			vec, err := ix.embed.Embed(ctx, EmbedText(it))
			if err != nil {
				return total, fmt.Errorf("vecstore: embed %s[%d]: %w", key, i, err)
			}

			batch = append(batch, Point{
				ID:     PointID(key, i),
				Vector: vec,
				Payload: map[string]any{
					"category": key,
					"question": it.Question,
					"full":     it.Full,
				},
			})

			if len(batch) >= ix.batch {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// PointID derives a stable UUID for a category item.
func PointID(category string, position int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("kbsync/%s/%d", category, position))).String()
}

// EmbedText is the text embedded for one item: the question plus the short
// answer, which together carry the searchable meaning.
func EmbedText(it category.Item) string {
	if it.Short == "" {
		return it.Question
	}
	return it.Question + "\n" + it.Short
}
