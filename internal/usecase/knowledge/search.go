package knowledge

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/memdex/internal/domain/metadata"
	"github.com/kailas-cloud/memdex/internal/domain/search/request"
	"github.com/kailas-cloud/memdex/internal/domain/search/result"
	"github.com/kailas-cloud/memdex/internal/store"
)

// Search narrows candidates by tags and metadata, then ranks the survivors
// by cosine similarity with a priority-tag boost. Candidate narrowing runs
// entirely in memory; the embedding provider is called only when at least
// one candidate survives.
func (s *Service) Search(ctx context.Context, req *request.Request) ([]result.Result, error) {
	s.mu.RLock()
	empty := s.store.Count() == 0
	candidates, any := s.narrowLocked(req)
	s.mu.RUnlock()

	if empty || !any {
		return []result.Result{}, nil
	}

	embRes, err := s.queryEmbedder.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	scores := s.vectors.Score(embRes.Embedding, candidates)

	// Boost before sorting so a boosted score competes at its final value.
	boosted := false
	if len(req.PriorityTags()) > 0 {
		for i := range scores {
			doc, err := s.store.Get(scores[i].ID)
			if err != nil {
				continue
			}
			if doc.HasAnyTag(req.PriorityTags()) {
				// Cosine can be negative; multiplying a negative score by
				// the boost factor would demote, so only lift positives.
				if scores[i].Similarity > 0 {
					scores[i].Similarity *= req.BoostFactor()
					boosted = true
				}
			}
		}
	}

	if boosted {
		s.resortLocked(scores)
	}

	if len(scores) > req.TopK() {
		scores = scores[:req.TopK()]
	}

	out := make([]result.Result, 0, len(scores))
	for _, sc := range scores {
		doc, err := s.store.Get(sc.ID)
		if err != nil {
			continue
		}
		out = append(out, result.New(doc, sc.Similarity))
	}
	return out, nil
}

// narrowLocked computes the candidate set from tag and metadata constraints.
// A nil set with any=true means "no constraint". any=false means the
// constraints can match nothing, so the caller skips embedding entirely.
func (s *Service) narrowLocked(req *request.Request) (store.IDSet, bool) {
	candidates := store.Intersect(
		s.tags.ResolveAll(req.TagsAll()),
		s.tags.ResolveAny(req.TagsAny()),
	)
	if candidates != nil && len(candidates) == 0 {
		return nil, false
	}

	if len(req.Filter()) > 0 {
		candidates = s.filterByMetadataLocked(candidates, req.Filter())
		if len(candidates) == 0 {
			return nil, false
		}
	}

	return candidates, true
}

// filterByMetadataLocked materializes the survivors of the metadata filter.
// A nil input set means "consider every document".
func (s *Service) filterByMetadataLocked(candidates store.IDSet, f metadata.Filter) store.IDSet {
	out := store.IDSet{}
	for _, doc := range s.store.All() {
		if candidates != nil {
			if _, ok := candidates[doc.ID()]; !ok {
				continue
			}
		}
		if metadata.Matches(doc.Metadata(), f) {
			out[doc.ID()] = struct{}{}
		}
	}
	return out
}

// resortLocked re-sorts boosted scores descending with a deterministic
// insertion-order tie-break.
func (s *Service) resortLocked(scores []store.Score) {
	sort.SliceStable(scores, func(i, j int) bool {
		si, _ := s.store.Seq(scores[i].ID)
		sj, _ := s.store.Seq(scores[j].ID)
		return si < sj
	})
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Similarity > scores[j].Similarity
	})
}
