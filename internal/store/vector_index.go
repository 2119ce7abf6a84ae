package store

import (
	"math"
	"sort"

	domdoc "github.com/kailas-cloud/memdex/internal/domain/document"
)

// Score is a scored candidate.
type Score struct {
	ID         string
	Similarity float64
}

// VectorIndex scores stored vectors against a query by exhaustive cosine
// scan. Ranking convention: cosine similarity as a normalized dot product
// over raw stored vectors, normalized at score time. There is no
// distance-derived scoring path; every deployment ranks on the same scale.
//
// Candidate restriction is exact pre-filtering, so small candidate sets lose
// no recall. The scan is O(n·d); Rebuild is kept as an explicit operation so
// an approximate structure can slot in behind the same contract.
type VectorIndex struct {
	entries []vecEntry
}

type vecEntry struct {
	id  string
	vec []float32
}

// NewVectorIndex creates an empty index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{}
}

// Append adds one vector in insertion order, keeping the index current
// without a full rebuild.
func (x *VectorIndex) Append(id string, vec []float32) {
	x.entries = append(x.entries, vecEntry{id: id, vec: vec})
}

// Rebuild reconstructs the index from the full document set. Documents
// without a vector (degraded snapshot load) are left out until re-embedded.
func (x *VectorIndex) Rebuild(docs []domdoc.Document) {
	x.entries = make([]vecEntry, 0, len(docs))
	for i := range docs {
		if len(docs[i].Vector()) == 0 {
			continue
		}
		x.entries = append(x.entries, vecEntry{id: docs[i].ID(), vec: docs[i].Vector()})
	}
}

// Len returns the number of indexed vectors.
func (x *VectorIndex) Len() int { return len(x.entries) }

// Reset drops all entries.
func (x *VectorIndex) Reset() { x.entries = nil }

// Score computes cosine similarity between the query and every candidate,
// returning results sorted by similarity descending. Ties keep insertion
// order (the scan order), so equal scores rank deterministically. A nil
// candidate set means "score everything".
func (x *VectorIndex) Score(query []float32, candidates IDSet) []Score {
	q := normalize(query)

	out := make([]Score, 0, len(x.entries))
	for _, e := range x.entries {
		if candidates != nil {
			if _, ok := candidates[e.id]; !ok {
				continue
			}
		}
		out = append(out, Score{ID: e.id, Similarity: dotNormalized(q, e.vec)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	return out
}

// normalize returns an L2-normalized copy. Zero vectors come back zeroed,
// scoring 0 against everything.
func normalize(v []float32) []float64 {
	out := make([]float64, len(v))
	var sum float64
	for i, f := range v {
		out[i] = float64(f)
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return out
	}
	n := math.Sqrt(sum)
	for i := range out {
		out[i] /= n
	}
	return out
}

// dotNormalized computes cosine similarity between a pre-normalized query
// and a raw stored vector.
func dotNormalized(q []float64, v []float32) float64 {
	if len(q) != len(v) {
		return 0
	}
	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	if norm == 0 {
		return 0
	}
	norm = math.Sqrt(norm)

	var dot float64
	for i, f := range v {
		dot += q[i] * float64(f) / norm
	}
	return dot
}
