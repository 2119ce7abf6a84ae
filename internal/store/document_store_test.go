package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/kailas-cloud/memdex/internal/domain"
	domdoc "github.com/kailas-cloud/memdex/internal/domain/document"
)

func mustDoc(t *testing.T, id, content string, tags []string, vec []float32) domdoc.Document {
	t.Helper()
	doc, err := domdoc.New(id, content, tags, nil)
	if err != nil {
		t.Fatalf("domdoc.New: %v", err)
	}
	doc.SetVector(vec)
	return doc
}

func TestDocumentStore_AppendAndGet(t *testing.T) {
	s := NewDocumentStore(3)

	id, err := s.Append(mustDoc(t, "d1", "cats are pets", []string{"animal"}, []float32{1, 0, 0}))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if id != "d1" {
		t.Errorf("id = %q, want d1", id)
	}

	doc, err := s.Get("d1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Content() != "cats are pets" {
		t.Errorf("content = %q", doc.Content())
	}

	if _, err := s.Get("missing"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestDocumentStore_GeneratedIDsUnique(t *testing.T) {
	s := NewDocumentStore(2)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := s.Append(mustDoc(t, "", fmt.Sprintf("doc %d", i), nil, []float32{1, 0}))
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		if seen[id] {
			t.Fatalf("duplicate generated id %q at insert %d", id, i)
		}
		seen[id] = true
	}
}

func TestDocumentStore_DuplicateID(t *testing.T) {
	s := NewDocumentStore(2)
	if _, err := s.Append(mustDoc(t, "d1", "first", nil, []float32{1, 0})); err != nil {
		t.Fatalf("Append: %v", err)
	}
	_, err := s.Append(mustDoc(t, "d1", "second", nil, []float32{0, 1}))
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if s.Count() != 1 {
		t.Errorf("count = %d after rejected insert, want 1", s.Count())
	}
}

func TestDocumentStore_DimMismatch(t *testing.T) {
	s := NewDocumentStore(0)

	if _, err := s.Append(mustDoc(t, "d1", "a", nil, []float32{1, 0, 0})); err != nil {
		t.Fatalf("first append adopts dimension: %v", err)
	}
	if s.Dim() != 3 {
		t.Errorf("dim = %d, want 3", s.Dim())
	}

	_, err := s.Append(mustDoc(t, "d2", "b", nil, []float32{1, 0}))
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}

	doc, _ := domdoc.New("d3", "no vector", nil, nil)
	if _, err := s.Append(doc); !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("expected ErrInvalidDocument for missing vector, got %v", err)
	}
}

func TestDocumentStore_InsertionOrder(t *testing.T) {
	s := NewDocumentStore(1)
	for _, id := range []string{"c", "a", "b"} {
		if _, err := s.Append(mustDoc(t, id, "content "+id, nil, []float32{1})); err != nil {
			t.Fatalf("Append %s: %v", id, err)
		}
	}

	ids := s.IDs()
	want := []string{"c", "a", "b"}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}

	if seq, ok := s.Seq("a"); !ok || seq != 1 {
		t.Errorf("Seq(a) = %d, %v; want 1, true", seq, ok)
	}

	docs := s.All()
	if len(docs) != 3 || docs[0].ID() != "c" {
		t.Errorf("All() order wrong: %v", docs)
	}
}

func TestDocumentStore_EveryDocumentHasVector(t *testing.T) {
	s := NewDocumentStore(2)
	for i := 0; i < 10; i++ {
		if _, err := s.Append(mustDoc(t, "", "content", nil, []float32{1, 0})); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	vectors := 0
	for _, doc := range s.All() {
		if len(doc.Vector()) == 2 {
			vectors++
		}
	}
	if vectors != s.Count() {
		t.Errorf("vector count %d != document count %d", vectors, s.Count())
	}
}

func TestDocumentStore_ResetAndReplace(t *testing.T) {
	s := NewDocumentStore(1)
	if _, err := s.Append(mustDoc(t, "d1", "a", nil, []float32{1})); err != nil {
		t.Fatalf("Append: %v", err)
	}

	s.Reset()
	if s.Count() != 0 || s.Dim() != 0 {
		t.Errorf("reset store should be empty, count=%d dim=%d", s.Count(), s.Dim())
	}

	docs := []domdoc.Document{
		mustDoc(t, "x", "one", nil, []float32{1, 0}),
		mustDoc(t, "y", "two", nil, []float32{0, 1}),
	}
	s.Replace(docs)
	if s.Count() != 2 || s.Dim() != 2 {
		t.Errorf("replace: count=%d dim=%d", s.Count(), s.Dim())
	}
	if seq, _ := s.Seq("y"); seq != 1 {
		t.Errorf("Seq(y) = %d, want 1", seq)
	}
}
