package document

import (
	"fmt"

	"github.com/kailas-cloud/memdex/internal/domain"
	"github.com/kailas-cloud/memdex/internal/domain/metadata"
)

// MaxContentSize is the maximum document content size in bytes.
const MaxContentSize = 163840 // 160KB

// MaxIDLength is the maximum document ID length.
const MaxIDLength = 256

// Document is a stored text record with tags, metadata, and its embedding
// vector. Immutable after insert; the vector lives inside the record so
// document and embedding can never drift apart.
type Document struct {
	id       string
	content  string
	tags     []string
	metadata metadata.Map
	vector   []float32
}

// New validates and creates a Document. An empty id is allowed: the store
// assigns one on append. Duplicate tags are removed, first occurrence wins.
func New(id, content string, tags []string, meta metadata.Map) (Document, error) {
	if len(id) > MaxIDLength {
		return Document{}, fmt.Errorf("document ID too long (max %d): %w", MaxIDLength, domain.ErrInvalidDocument)
	}
	if content == "" {
		return Document{}, fmt.Errorf("content is required: %w", domain.ErrInvalidDocument)
	}
	if len(content) > MaxContentSize {
		return Document{}, fmt.Errorf("content too large (max %d bytes): %w", MaxContentSize, domain.ErrInvalidDocument)
	}

	return Document{
		id:       id,
		content:  content,
		tags:     dedupTags(tags),
		metadata: meta.Clone(),
	}, nil
}

// Reconstruct creates a Document without validation (snapshot hydration).
func Reconstruct(id, content string, tags []string, meta metadata.Map, vector []float32) Document {
	return Document{id: id, content: content, tags: tags, metadata: meta, vector: vector}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Content returns the document text content.
func (d *Document) Content() string { return d.content }

// Tags returns the document tags (deduplicated).
func (d *Document) Tags() []string { return d.tags }

// Metadata returns the document metadata.
func (d *Document) Metadata() metadata.Map { return d.metadata }

// Vector returns the embedding vector (raw, not normalized).
func (d *Document) Vector() []float32 { return d.vector }

// SetVector sets the vector in place (mutation, pre-insert only).
func (d *Document) SetVector(v []float32) { d.vector = v }

// SetID assigns a store-generated identifier (pre-insert only).
func (d *Document) SetID(id string) { d.id = id }

// HasAnyTag reports whether the document carries at least one of the given tags.
func (d *Document) HasAnyTag(tags []string) bool {
	for _, t := range tags {
		for _, dt := range d.tags {
			if t == dt {
				return true
			}
		}
	}
	return false
}

func dedupTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
