package result

import domdoc "github.com/kailas-cloud/memdex/internal/domain/document"

// Result is a single search hit: the full document plus its (possibly
// boosted) similarity score.
type Result struct {
	doc   domdoc.Document
	score float64
}

// New creates a search result.
func New(doc domdoc.Document, score float64) Result {
	return Result{doc: doc, score: score}
}

// Document returns the matched document.
func (r *Result) Document() *domdoc.Document { return &r.doc }

// Score returns the relevance score (cosine similarity, boosted).
func (r *Result) Score() float64 { return r.score }
