package knowledge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	domdoc "github.com/kailas-cloud/memdex/internal/domain/document"
	"github.com/kailas-cloud/memdex/internal/domain/metadata"
	"github.com/kailas-cloud/memdex/internal/metrics"
)

// AddItem is one document to insert.
type AddItem struct {
	ID       string
	Content  string
	Tags     []string
	Metadata metadata.Map
}

// Add validates, embeds, and inserts one document. The content is embedded
// before any state changes, so an embedding failure leaves the store
// untouched. Returns the assigned document id.
func (s *Service) Add(ctx context.Context, item AddItem) (string, error) {
	doc, err := s.newDocument(item)
	if err != nil {
		return "", err
	}

	embRes, err := s.docEmbedder.Embed(ctx, doc.Content())
	if err != nil {
		return "", fmt.Errorf("embed document: %w", err)
	}
	doc.SetVector(embRes.Embedding)

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.store.Append(doc)
	if err != nil {
		return "", fmt.Errorf("append document: %w", err)
	}
	s.tags.Add(id, doc.Tags())
	s.vectors.Append(id, doc.Vector())
	s.dirty = true
	metrics.DocumentsTotal.Set(float64(s.store.Count()))

	s.logger.Debug("Document added",
		zap.String("id", id),
		zap.Int("tags", len(doc.Tags())),
		zap.Int("dim", len(doc.Vector())),
	)

	if s.writeMode == WriteModeImmediate {
		if err := s.saveLocked(); err != nil {
			return id, err
		}
	}
	return id, nil
}

// BatchAdd validates and embeds every item before touching the store, then
// inserts all of them under one lock and snapshots once. Any failure leaves
// the store exactly as it was.
func (s *Service) BatchAdd(ctx context.Context, items []AddItem) ([]string, error) {
	if len(items) == 0 {
		return []string{}, nil
	}

	docs := make([]domdoc.Document, 0, len(items))
	for i, item := range items {
		doc, err := s.newDocument(item)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}

		embRes, err := s.docEmbedder.Embed(ctx, doc.Content())
		if err != nil {
			return nil, fmt.Errorf("embed document %d: %w", i, err)
		}
		doc.SetVector(embRes.Embedding)
		docs = append(docs, doc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.store.All()

	ids := make([]string, 0, len(docs))
	for i := range docs {
		id, err := s.store.Append(docs[i])
		if err != nil {
			s.store.Replace(prev)
			s.rebuildIndexesLocked()
			return nil, fmt.Errorf("append document %d: %w", i, err)
		}
		s.tags.Add(id, docs[i].Tags())
		s.vectors.Append(id, docs[i].Vector())
		ids = append(ids, id)
	}
	s.dirty = true
	metrics.DocumentsTotal.Set(float64(s.store.Count()))

	s.logger.Info("Batch added", zap.Int("documents", len(ids)))

	if err := s.saveLocked(); err != nil {
		return ids, err
	}
	return ids, nil
}

func (s *Service) newDocument(item AddItem) (domdoc.Document, error) {
	doc, err := domdoc.New(item.ID, item.Content, item.Tags, item.Metadata)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("new document: %w", err)
	}
	return doc, nil
}
