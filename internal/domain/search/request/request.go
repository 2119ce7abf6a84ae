package request

import (
	"fmt"

	"github.com/kailas-cloud/memdex/internal/domain/metadata"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultTopK    = 5
	MaxTopK        = 100
	// DefaultBoostFactor multiplies the similarity of priority-tagged documents.
	DefaultBoostFactor = 1.5
)

// Request is a validated search query.
type Request struct {
	query        string
	tagsAll      []string
	tagsAny      []string
	priorityTags []string
	filter       metadata.Filter
	topK         int
	boostFactor  float64
}

// New validates and normalizes search parameters.
// Defaults: topK=5, boostFactor=1.5. TopK is clamped to MaxTopK.
func New(
	query string,
	tagsAll, tagsAny, priorityTags []string,
	filter metadata.Filter,
	topK int,
	boostFactor float64,
) (Request, error) {
	if query == "" {
		return Request{}, fmt.Errorf("query is required")
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if boostFactor <= 0 {
		boostFactor = DefaultBoostFactor
	}

	return Request{
		query:        query,
		tagsAll:      tagsAll,
		tagsAny:      tagsAny,
		priorityTags: priorityTags,
		filter:       filter,
		topK:         topK,
		boostFactor:  boostFactor,
	}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// TagsAll returns tags that must all be present (AND).
func (r *Request) TagsAll() []string { return r.tagsAll }

// TagsAny returns tags of which at least one must be present (OR).
func (r *Request) TagsAny() []string { return r.tagsAny }

// PriorityTags returns tags whose documents get a score boost.
func (r *Request) PriorityTags() []string { return r.priorityTags }

// Filter returns the metadata constraint set.
func (r *Request) Filter() metadata.Filter { return r.filter }

// TopK returns the maximum number of results.
func (r *Request) TopK() int { return r.topK }

// BoostFactor returns the priority-tag score multiplier.
func (r *Request) BoostFactor() float64 { return r.boostFactor }
