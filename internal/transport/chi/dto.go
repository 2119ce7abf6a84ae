package chi

import (
	"github.com/kailas-cloud/memdex/internal/domain/metadata"
)

// Error codes returned in the JSON error body.
type errorCode string

const (
	codeBadRequest        errorCode = "bad_request"
	codeValidationFailed  errorCode = "validation_failed"
	codeDocumentNotFound  errorCode = "document_not_found"
	codeAlreadyExists     errorCode = "document_already_exists"
	codeVectorDimMismatch errorCode = "vector_dim_mismatch"
	codeEmbeddingProvider errorCode = "embedding_provider_error"
	codePersistenceFailed errorCode = "persistence_failed"
	codeUnauthorized      errorCode = "unauthorized"
	codeInternalError     errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type addRequest struct {
	ID       string       `json:"id,omitempty"`
	Content  string       `json:"content"`
	Tags     []string     `json:"tags,omitempty"`
	Metadata metadata.Map `json:"metadata,omitempty"`
}

type addResponse struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"document_id"`
	Warning    string `json:"warning,omitempty"`
}

type batchAddRequest struct {
	Documents []addRequest `json:"documents"`
}

type batchAddResponse struct {
	Success     bool     `json:"success"`
	DocumentIDs []string `json:"document_ids"`
	Count       int      `json:"count"`
	Warning     string   `json:"warning,omitempty"`
}

type searchRequest struct {
	Query string `json:"query"`

	// Tags is the legacy AND-tags parameter; ignored when TagsAll is set.
	Tags         []string `json:"tags,omitempty"`
	TagsAll      []string `json:"tags_all,omitempty"`
	TagsAny      []string `json:"tags_any,omitempty"`
	PriorityTags []string `json:"priority_tags,omitempty"`

	MetadataFilter metadata.Filter `json:"metadata_filter,omitempty"`

	TopK        int     `json:"top_k,omitempty"`
	BoostFactor float64 `json:"boost_factor,omitempty"`
}

type searchResultItem struct {
	ID       string       `json:"id"`
	Content  string       `json:"content"`
	Tags     []string     `json:"tags,omitempty"`
	Metadata metadata.Map `json:"metadata,omitempty"`
	Score    float64      `json:"score"`
}

type searchResponse struct {
	Success bool               `json:"success"`
	Results []searchResultItem `json:"results"`
	Count   int                `json:"count"`
}

type statsResponse struct {
	Success       bool     `json:"success"`
	DocumentCount int      `json:"document_count"`
	VectorCount   int      `json:"vector_count"`
	TagCount      int      `json:"tag_count"`
	Tags          []string `json:"tags"`
	Dimensions    int      `json:"dimensions,omitempty"`
}

type okResponse struct {
	Success bool `json:"success"`
}

type rebuildResponse struct {
	Success       bool `json:"success"`
	DocumentCount int  `json:"document_count"`
}

type importRequest struct {
	Content      string       `json:"content"`
	Tags         []string     `json:"tags,omitempty"`
	Metadata     metadata.Map `json:"metadata,omitempty"`
	MaxChunkSize int          `json:"max_chunk_size,omitempty"`
}

type importResponse struct {
	Success     bool     `json:"success"`
	Chunks      int      `json:"chunks"`
	DocumentIDs []string `json:"document_ids"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
