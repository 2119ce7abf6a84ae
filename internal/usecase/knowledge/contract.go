package knowledge

import (
	"context"

	"github.com/kailas-cloud/memdex/internal/domain"
	domdoc "github.com/kailas-cloud/memdex/internal/domain/document"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Persister snapshots the document set to durable storage.
type Persister interface {
	Save(docs []domdoc.Document) error
	Load() ([]domdoc.Document, error)
}
