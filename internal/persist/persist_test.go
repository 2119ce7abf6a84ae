package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memdex/internal/domain"
	domdoc "github.com/kailas-cloud/memdex/internal/domain/document"
	"github.com/kailas-cloud/memdex/internal/domain/metadata"
)

func testDoc(id string, vec []float32) domdoc.Document {
	meta := metadata.Map{
		"user_id":    metadata.String("u1"),
		"importance": metadata.Number(7.5),
	}
	return domdoc.Reconstruct(id, "content of "+id, []string{"memory", "tag:" + id}, meta, vec)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	sizes := []int{0, 1, 128}

	for _, n := range sizes {
		t.Run(fmt.Sprintf("size_%d", n), func(t *testing.T) {
			m := New(t.TempDir(), zap.NewNop())

			docs := make([]domdoc.Document, 0, n)
			for i := 0; i < n; i++ {
				docs = append(docs, testDoc(fmt.Sprintf("doc_%03d", i), []float32{float32(i), 1, -2.5}))
			}

			if err := m.Save(docs); err != nil {
				t.Fatalf("Save: %v", err)
			}

			loaded, err := m.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(loaded) != n {
				t.Fatalf("loaded %d documents, want %d", len(loaded), n)
			}

			for i := range loaded {
				orig := docs[i]
				got := loaded[i]
				if got.ID() != orig.ID() {
					t.Errorf("doc %d: id %q, want %q (insertion order lost)", i, got.ID(), orig.ID())
				}
				if got.Content() != orig.Content() {
					t.Errorf("doc %d: content %q", i, got.Content())
				}
				if len(got.Vector()) != len(orig.Vector()) {
					t.Fatalf("doc %d: vector len %d, want %d", i, len(got.Vector()), len(orig.Vector()))
				}
				for j := range orig.Vector() {
					if got.Vector()[j] != orig.Vector()[j] {
						t.Errorf("doc %d vec[%d] = %f, want %f", i, j, got.Vector()[j], orig.Vector()[j])
					}
				}
				if !got.Metadata()["importance"].Equal(metadata.Number(7.5)) {
					t.Errorf("doc %d: metadata not preserved", i)
				}
			}
		})
	}
}

func TestLoad_BothAbsent(t *testing.T) {
	m := New(t.TempDir(), zap.NewNop())

	docs, err := m.Load()
	if err != nil {
		t.Fatalf("Load on empty dir: %v", err)
	}
	if docs != nil {
		t.Errorf("expected empty store, got %d docs", len(docs))
	}
}

func TestLoad_DocumentsOnly(t *testing.T) {
	dir := t.TempDir()
	m := New(dir, zap.NewNop())

	docs := []domdoc.Document{testDoc("d1", []float32{1, 2}), testDoc("d2", []float32{3, 4})}
	if err := m.Save(docs); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, VectorsFile)); err != nil {
		t.Fatalf("remove vectors: %v", err)
	}

	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d docs, want 2", len(loaded))
	}
	for i := range loaded {
		if len(loaded[i].Vector()) != 0 {
			t.Errorf("doc %d should load vectorless, got %v", i, loaded[i].Vector())
		}
	}
}

func TestLoad_CountMismatch(t *testing.T) {
	dir := t.TempDir()
	m := New(dir, zap.NewNop())

	// Save three docs, then overwrite the vector file with a two-vector save.
	three := []domdoc.Document{
		testDoc("d1", []float32{1, 0}),
		testDoc("d2", []float32{0, 1}),
		testDoc("d3", []float32{1, 1}),
	}
	if err := m.Save(three); err != nil {
		t.Fatalf("Save: %v", err)
	}

	other := New(t.TempDir(), zap.NewNop())
	if err := other.Save(three[:2]); err != nil {
		t.Fatalf("Save short: %v", err)
	}
	short, err := os.ReadFile(filepath.Join(other.Dir(), VectorsFile))
	if err != nil {
		t.Fatalf("read short vectors: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, VectorsFile), short, 0o600); err != nil {
		t.Fatalf("write short vectors: %v", err)
	}

	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("count mismatch must degrade, not fail: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("loaded %d docs, want 3", len(loaded))
	}
	if len(loaded[0].Vector()) == 0 || len(loaded[1].Vector()) == 0 {
		t.Error("first two docs should keep loaded vectors")
	}
	if len(loaded[2].Vector()) != 0 {
		t.Error("third doc has no vector to load")
	}
}

func TestLoad_CorruptVectorFile(t *testing.T) {
	dir := t.TempDir()
	m := New(dir, zap.NewNop())

	if err := m.Save([]domdoc.Document{testDoc("d1", []float32{1})}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, VectorsFile), []byte("not a snapshot"), 0o600); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	_, err := m.Load()
	if !errors.Is(err, domain.ErrPersistence) {
		t.Errorf("expected ErrPersistence, got %v", err)
	}
}

func TestSave_UnwritableDir(t *testing.T) {
	// A regular file in the path makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	m := New(filepath.Join(blocker, "sub"), zap.NewNop())

	err := m.Save([]domdoc.Document{testDoc("d1", []float32{1})})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Errorf("expected ErrPersistence, got %v", err)
	}
}
