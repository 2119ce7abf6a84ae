// Package store holds the in-memory knowledge store core: the document
// table, the tag index, and the vector index. None of these structures lock
// internally; the owning service serializes writers.
package store

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/memdex/internal/domain"
	domdoc "github.com/kailas-cloud/memdex/internal/domain/document"
)

// DocumentStore owns the canonical id -> document mapping. Embedding vectors
// live inside the document records, so there is no parallel array to keep
// aligned; the insertion-order id list exists for deterministic ranking
// tie-breaks and snapshot ordering only.
type DocumentStore struct {
	dim   int
	docs  map[string]domdoc.Document
	order []string
	seq   map[string]int
}

// NewDocumentStore creates an empty store for vectors of the given dimension.
// dim 0 means "adopt the dimension of the first appended vector".
func NewDocumentStore(dim int) *DocumentStore {
	return &DocumentStore{
		dim:  dim,
		docs: make(map[string]domdoc.Document),
		seq:  make(map[string]int),
	}
}

// Append inserts a document and returns its identifier. When the document
// carries no id, one is generated from the wall clock and the current count,
// which keeps ids unique under rapid sequential inserts.
func (s *DocumentStore) Append(doc domdoc.Document) (string, error) {
	if len(doc.Vector()) == 0 {
		return "", fmt.Errorf("document has no embedding vector: %w", domain.ErrInvalidDocument)
	}
	if s.dim == 0 {
		s.dim = len(doc.Vector())
	}
	if len(doc.Vector()) != s.dim {
		return "", fmt.Errorf("vector has %d dimensions, store expects %d: %w",
			len(doc.Vector()), s.dim, domain.ErrVectorDimMismatch)
	}

	id := doc.ID()
	if id == "" {
		id = s.generateID()
		doc.SetID(id)
	}
	if _, exists := s.docs[id]; exists {
		return "", fmt.Errorf("document %q: %w", id, domain.ErrAlreadyExists)
	}

	s.docs[id] = doc
	s.seq[id] = len(s.order)
	s.order = append(s.order, id)
	return id, nil
}

// Get returns a document by id.
func (s *DocumentStore) Get(id string) (domdoc.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return domdoc.Document{}, fmt.Errorf("document %q: %w", id, domain.ErrDocumentNotFound)
	}
	return doc, nil
}

// All returns every document in insertion order.
func (s *DocumentStore) All() []domdoc.Document {
	out := make([]domdoc.Document, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.docs[id])
	}
	return out
}

// IDs returns all document ids in insertion order.
func (s *DocumentStore) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Count returns the number of stored documents.
func (s *DocumentStore) Count() int { return len(s.order) }

// Dim returns the vector dimension (0 until the first append).
func (s *DocumentStore) Dim() int { return s.dim }

// Seq returns the insertion position of a document, used as the stable
// tie-break for equal scores.
func (s *DocumentStore) Seq(id string) (int, bool) {
	n, ok := s.seq[id]
	return n, ok
}

// Reset drops every document.
func (s *DocumentStore) Reset() {
	s.docs = make(map[string]domdoc.Document)
	s.seq = make(map[string]int)
	s.order = nil
	s.dim = 0
}

// Replace swaps in a fully hydrated document set (snapshot load). Documents
// keep the given order; vector dimension is re-adopted from the first
// document carrying one.
func (s *DocumentStore) Replace(docs []domdoc.Document) {
	s.Reset()
	for i := range docs {
		id := docs[i].ID()
		s.docs[id] = docs[i]
		s.seq[id] = len(s.order)
		s.order = append(s.order, id)
		if s.dim == 0 && len(docs[i].Vector()) > 0 {
			s.dim = len(docs[i].Vector())
		}
	}
}

func (s *DocumentStore) generateID() string {
	return fmt.Sprintf("doc_%d_%d", time.Now().UnixMilli(), len(s.order))
}
