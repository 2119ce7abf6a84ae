package store

import (
	"sort"

	domdoc "github.com/kailas-cloud/memdex/internal/domain/document"
)

// IDSet is a set of document identifiers. A nil IDSet is the "no constraint"
// sentinel, distinct from an empty set which means "nothing matches".
type IDSet map[string]struct{}

// TagIndex maps tag strings (case-sensitive) to the documents carrying them.
// Derived state: rebuildable from the DocumentStore at any time, never the
// source of truth.
type TagIndex struct {
	byTag map[string]IDSet
}

// NewTagIndex creates an empty tag index.
func NewTagIndex() *TagIndex {
	return &TagIndex{byTag: make(map[string]IDSet)}
}

// Add registers a document under each of its tags.
func (t *TagIndex) Add(id string, tags []string) {
	for _, tag := range tags {
		set, ok := t.byTag[tag]
		if !ok {
			set = make(IDSet)
			t.byTag[tag] = set
		}
		set[id] = struct{}{}
	}
}

// Rebuild reconstructs the index from the full document set.
func (t *TagIndex) Rebuild(docs []domdoc.Document) {
	t.byTag = make(map[string]IDSet)
	for i := range docs {
		t.Add(docs[i].ID(), docs[i].Tags())
	}
}

// ResolveAll intersects the id sets of every given tag (AND). An empty tag
// list returns the nil sentinel. Any tag with zero matches short-circuits to
// an empty set.
func (t *TagIndex) ResolveAll(tags []string) IDSet {
	if len(tags) == 0 {
		return nil
	}

	var out IDSet
	for _, tag := range tags {
		set, ok := t.byTag[tag]
		if !ok {
			return IDSet{}
		}
		if out == nil {
			out = make(IDSet, len(set))
			for id := range set {
				out[id] = struct{}{}
			}
			continue
		}
		for id := range out {
			if _, ok := set[id]; !ok {
				delete(out, id)
			}
		}
		if len(out) == 0 {
			return out
		}
	}
	return out
}

// ResolveAny unions the id sets of the given tags (OR). An empty tag list
// returns the nil sentinel.
func (t *TagIndex) ResolveAny(tags []string) IDSet {
	if len(tags) == 0 {
		return nil
	}

	out := make(IDSet)
	for _, tag := range tags {
		for id := range t.byTag[tag] {
			out[id] = struct{}{}
		}
	}
	return out
}

// Tags returns all known tags, sorted for stable output.
func (t *TagIndex) Tags() []string {
	out := make([]string, 0, len(t.byTag))
	for tag := range t.byTag {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of distinct tags.
func (t *TagIndex) Len() int { return len(t.byTag) }

// Reset drops all entries.
func (t *TagIndex) Reset() {
	t.byTag = make(map[string]IDSet)
}

// Intersect returns a ∩ b, honoring the nil "no constraint" sentinel on
// either side.
func Intersect(a, b IDSet) IDSet {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	out := make(IDSet)
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for id := range small {
		if _, ok := large[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}
