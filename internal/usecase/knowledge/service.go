// Package knowledge is the core usecase: a semantic document store with tag
// and metadata narrowing, hybrid-scored search, and snapshot persistence.
// The store structures carry no locks; this service serializes writers with
// a RWMutex and lets searches run concurrently.
package knowledge

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	domdoc "github.com/kailas-cloud/memdex/internal/domain/document"
	"github.com/kailas-cloud/memdex/internal/metrics"
	"github.com/kailas-cloud/memdex/internal/store"
)

// WriteMode controls when inserts reach the snapshot.
type WriteMode string

const (
	// WriteModeImmediate saves the snapshot after every insert.
	WriteModeImmediate WriteMode = "immediate"
	// WriteModeDeferred batches inserts until an explicit save.
	WriteModeDeferred WriteMode = "deferred"
)

// ParseWriteMode validates a configured write mode, defaulting to immediate.
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(s) {
	case "":
		return WriteModeImmediate, nil
	case WriteModeImmediate, WriteModeDeferred:
		return WriteMode(s), nil
	default:
		return "", fmt.Errorf("unknown write mode %q", s)
	}
}

// Service owns the document store and its derived indexes.
type Service struct {
	mu sync.RWMutex

	store   *store.DocumentStore
	tags    *store.TagIndex
	vectors *store.VectorIndex

	docEmbedder   Embedder
	queryEmbedder Embedder
	persister     Persister
	writeMode     WriteMode
	logger        *zap.Logger

	dirty bool // inserts not yet snapshotted (deferred mode)
}

// Config wires the service dependencies.
type Config struct {
	Dim           int // expected vector dimension, 0 = adopt from first insert
	DocEmbedder   Embedder
	QueryEmbedder Embedder
	Persister     Persister
	WriteMode     WriteMode
	Logger        *zap.Logger
}

// New creates an empty knowledge service.
func New(cfg Config) *Service {
	if cfg.WriteMode == "" {
		cfg.WriteMode = WriteModeImmediate
	}
	return &Service{
		store:         store.NewDocumentStore(cfg.Dim),
		tags:          store.NewTagIndex(),
		vectors:       store.NewVectorIndex(),
		docEmbedder:   cfg.DocEmbedder,
		queryEmbedder: cfg.QueryEmbedder,
		persister:     cfg.Persister,
		writeMode:     cfg.WriteMode,
		logger:        cfg.Logger,
	}
}

// Stats summarizes the current store contents.
type Stats struct {
	DocumentCount int
	VectorCount   int
	TagCount      int
	Tags          []string
	Dim           int
}

// Stats returns store counters for the /stats endpoint.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vectorCount := 0
	for _, d := range s.store.All() {
		if len(d.Vector()) > 0 {
			vectorCount++
		}
	}

	return Stats{
		DocumentCount: s.store.Count(),
		VectorCount:   vectorCount,
		TagCount:      s.tags.Len(),
		Tags:          s.tags.Tags(),
		Dim:           s.store.Dim(),
	}
}

// Load restores the snapshot from disk. Both files absent yields an empty
// store. Documents without vectors survive the load; RebuildIndex re-embeds
// them.
func (s *Service) Load(ctx context.Context) error {
	docs, err := s.persister.Load()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Replace(docs)
	s.rebuildIndexesLocked()
	s.dirty = false
	metrics.DocumentsTotal.Set(float64(s.store.Count()))

	vectorless := 0
	for i := range docs {
		if len(docs[i].Vector()) == 0 {
			vectorless++
		}
	}
	if vectorless > 0 {
		s.logger.Warn("Loaded documents without vectors, rebuild_index will re-embed them",
			zap.Int("vectorless", vectorless),
			zap.Int("total", len(docs)),
		)
	}

	s.logger.Info("Snapshot loaded",
		zap.Int("documents", s.store.Count()),
		zap.Int("dim", s.store.Dim()),
	)
	return nil
}

// Save snapshots the store to disk.
func (s *Service) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// RebuildIndex re-derives the tag and vector indexes from the document set,
// re-embedding any document that lost its vector in a degraded load.
func (s *Service) RebuildIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.store.All()
	reembedded := 0
	for i := range docs {
		if len(docs[i].Vector()) > 0 {
			continue
		}
		res, err := s.docEmbedder.Embed(ctx, docs[i].Content())
		if err != nil {
			return fmt.Errorf("re-embed %s: %w", docs[i].ID(), err)
		}
		docs[i].SetVector(res.Embedding)
		reembedded++
	}

	if reembedded > 0 {
		s.store.Replace(docs)
		s.dirty = true
	}
	s.rebuildIndexesLocked()

	s.logger.Info("Index rebuilt",
		zap.Int("documents", len(docs)),
		zap.Int("reembedded", reembedded),
	)

	if reembedded > 0 && s.writeMode == WriteModeImmediate {
		return s.saveLocked()
	}
	return nil
}

// Reset drops every document and truncates the snapshot.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Reset()
	s.tags.Reset()
	s.vectors.Reset()
	s.dirty = false
	metrics.DocumentsTotal.Set(0)

	if err := s.saveLocked(); err != nil {
		return err
	}

	s.logger.Info("Store reset")
	return nil
}

// Dirty reports whether inserts are awaiting a snapshot (deferred mode).
func (s *Service) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// saveLocked writes the snapshot. Callers hold the write lock.
func (s *Service) saveLocked() error {
	if err := s.persister.Save(s.store.All()); err != nil {
		metrics.SnapshotsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("save snapshot: %w", err)
	}
	metrics.SnapshotsTotal.WithLabelValues("success").Inc()
	s.dirty = false
	return nil
}

// rebuildIndexesLocked re-derives both indexes. Callers hold the write lock.
func (s *Service) rebuildIndexesLocked() {
	docs := s.store.All()
	s.tags.Rebuild(docs)
	s.vectors.Rebuild(docs)
}

// allDocs returns a point-in-time copy of the document set.
func (s *Service) allDocs() []domdoc.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.All()
}
