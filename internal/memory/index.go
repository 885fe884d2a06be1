// File: internal/memory/index.go
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voidmaw/wayfarer/api/schemas"
	"github.com/voidmaw/wayfarer/internal/config"
)

// ErrDuplicateID is returned by Add when the id is already indexed.
var ErrDuplicateID = errors.New("memory entry with this id already exists")

// Embedder is the slice of the inference client the index needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Index is a semantic memory: texts go in with an embedding, ranked records
// come out. The background janitor keeps the entry count under the configured
// cap and must be started with Start() and shut down with Stop().
type Index interface {
	Add(ctx context.Context, id, text string, metadata map[string]any) error
	Search(ctx context.Context, query string, topK int) ([]schemas.MemoryRecord, error)
	Len() int
	Start()
	Stop()
}

// entry is one indexed text with its vector. Entries are kept in insertion
// order so eviction can drop the oldest first.
type entry struct {
	id       string
	text     string
	vector   []float64
	metadata map[string]any
	addedAt  time.Time
}

type index struct {
	logger   *zap.Logger
	cfg      config.MemoryConfig
	embedder Embedder

	mu      sync.RWMutex
	entries []entry
	byID    map[string]struct{}

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

var _ Index = (*index)(nil)

// New creates a semantic memory index. The caller owns the janitor lifecycle
// via Start/Stop.
func New(cfg config.MemoryConfig, embedder Embedder, logger *zap.Logger) Index {
	return &index{
		logger:   logger.Named("Memory"),
		cfg:      cfg,
		embedder: embedder,
		byID:     make(map[string]struct{}),
		stopChan: make(chan struct{}),
	}
}

// Start launches the background janitor that evicts entries over the cap.
func (i *index) Start() {
	i.wg.Add(1)
	go i.runJanitor()
}

// Add embeds text and stores it under id. A failed embedding is not fatal:
// the entry is kept with a zero vector so its text still surfaces through
// recency-independent lookups, it just never wins a similarity ranking.
func (i *index) Add(ctx context.Context, id, text string, metadata map[string]any) error {
	if i.exists(id) {
		return fmt.Errorf("id %q: %w", id, ErrDuplicateID)
	}

	vector, err := i.embedder.Embed(ctx, text)
	if err != nil {
		i.logger.Warn("Embedding failed; storing zero vector", zap.String("id", id), zap.Error(err))
		dim := i.cfg.EmbeddingDim
		if dim <= 0 {
			dim = 768
		}
		vector = make([]float64, dim)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	// Re-check under the write lock; a concurrent Add may have won the race.
	if _, ok := i.byID[id]; ok {
		return fmt.Errorf("id %q: %w", id, ErrDuplicateID)
	}
	i.byID[id] = struct{}{}
	i.entries = append(i.entries, entry{
		id:       id,
		text:     text,
		vector:   vector,
		metadata: copyMetadata(metadata),
		addedAt:  time.Now(),
	})
	return nil
}

// Search embeds the query and returns the topK most similar records in
// descending score order. topK larger than the index clamps to what exists;
// topK <= 0 falls back to the configured default.
func (i *index) Search(ctx context.Context, query string, topK int) ([]schemas.MemoryRecord, error) {
	if topK <= 0 {
		topK = i.cfg.DefaultTopK
	}
	if topK <= 0 {
		topK = 5
	}

	queryVec, err := i.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding search query: %w", err)
	}

	i.mu.RLock()
	records := make([]schemas.MemoryRecord, 0, len(i.entries))
	for _, e := range i.entries {
		records = append(records, schemas.MemoryRecord{
			Text:     e.text,
			Metadata: copyMetadata(e.metadata),
			Score:    cosine(queryVec, e.vector),
		})
	}
	i.mu.RUnlock()

	sort.SliceStable(records, func(a, b int) bool { return records[a].Score > records[b].Score })
	if len(records) > topK {
		records = records[:topK]
	}
	return records, nil
}

// Len reports the number of indexed entries.
func (i *index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

func (i *index) exists(id string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.byID[id]
	return ok
}

// runJanitor periodically trims the index back down to the configured cap.
func (i *index) runJanitor() {
	defer i.wg.Done()
	interval := i.cfg.JanitorInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	i.logger.Info("Memory janitor started.", zap.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			i.purgeOverCap()
		case <-i.stopChan:
			i.logger.Info("Memory janitor stopped.")
			return
		}
	}
}

// purgeOverCap drops the oldest entries until the index fits the cap again.
// A cap of zero or less means unbounded.
func (i *index) purgeOverCap() {
	i.mu.Lock()
	defer i.mu.Unlock()

	limit := i.cfg.MaxEntries
	if limit <= 0 {
		return
	}
	excess := len(i.entries) - limit
	if excess <= 0 {
		return
	}

	for _, e := range i.entries[:excess] {
		delete(i.byID, e.id)
	}
	i.entries = append([]entry(nil), i.entries[excess:]...)
	i.logger.Debug("Evicted oldest memory entries over cap.", zap.Int("count", excess))
}

// Stop shuts the janitor down. Safe to call multiple times and before Start.
func (i *index) Stop() {
	i.stopOnce.Do(func() {
		close(i.stopChan)
		i.wg.Wait()
	})
}

// cosine computes cosine similarity. Mismatched lengths and zero-magnitude
// vectors score 0 rather than erroring; a degraded entry should lose the
// ranking, not break the search.
func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for k := range a {
		dot += a[k] * b[k]
		normA += a[k] * a[k]
		normB += b[k] * b[k]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func copyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
