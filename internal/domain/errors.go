package domain

import "errors"

var (
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrAlreadyExists signals a duplicate document identifier.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidDocument signals a document that failed validation.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProvider signals an embedding provider failure (timeout,
	// auth, malformed response). Retryable with backoff.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrPersistence signals a snapshot read/write failure. The in-memory
	// store remains usable; durability has lapsed.
	ErrPersistence = errors.New("persistence error")
)
