// Package persist snapshots the knowledge store to disk: a JSON document
// table plus a flat binary vector array, written and loaded as a pair.
package persist

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memdex/internal/domain"
	domdoc "github.com/kailas-cloud/memdex/internal/domain/document"
	"github.com/kailas-cloud/memdex/internal/domain/metadata"
)

// Snapshot artifact file names.
const (
	DocumentsFile = "documents.json"
	VectorsFile   = "vectors.bin"
)

// vectors.bin layout: magic, format version, dim, count, then count*dim
// little-endian float32 values in insertion order.
var vectorsMagic = [4]byte{'M', 'D', 'X', 'V'}

const vectorsVersion uint32 = 1

// Manager saves and restores store snapshots under a single directory.
// It owns the only durable copy; the in-memory store is the working copy.
type Manager struct {
	dir    string
	logger *zap.Logger
}

// New creates a snapshot manager rooted at dir.
func New(dir string, logger *zap.Logger) *Manager {
	return &Manager{dir: dir, logger: logger}
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string { return m.dir }

// docRecord is the on-disk document form. Seq preserves insertion order,
// which the JSON map cannot; the i-th vector in vectors.bin belongs to the
// document with the i-th smallest seq.
type docRecord struct {
	Content  string       `json:"content"`
	Tags     []string     `json:"tags,omitempty"`
	Metadata metadata.Map `json:"metadata,omitempty"`
	Seq      int          `json:"seq"`
}

// Save writes both snapshot artifacts. docs must be in insertion order.
// Failures surface as ErrPersistence; the in-memory store is untouched.
func (m *Manager) Save(docs []domdoc.Document) error {
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return fmt.Errorf("create snapshot dir: %w: %w", err, domain.ErrPersistence)
	}

	table := make(map[string]docRecord, len(docs))
	for i := range docs {
		table[docs[i].ID()] = docRecord{
			Content:  docs[i].Content(),
			Tags:     docs[i].Tags(),
			Metadata: docs[i].Metadata(),
			Seq:      i,
		}
	}

	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("encode document table: %w: %w", err, domain.ErrPersistence)
	}
	if err := writeAtomic(filepath.Join(m.dir, DocumentsFile), data); err != nil {
		return err
	}

	if err := writeAtomic(filepath.Join(m.dir, VectorsFile), encodeVectors(docs)); err != nil {
		return err
	}

	m.logger.Info("Snapshot saved",
		zap.String("dir", m.dir),
		zap.Int("documents", len(docs)),
	)
	return nil
}

// Load restores a snapshot. Three legal states:
//   - both artifacts absent: empty store, no error;
//   - documents only: documents load vectorless (stale vectors, caller must
//     re-embed before they become searchable);
//   - count mismatch between artifacts: warn and keep whichever vectors
//     loaded, degraded but usable.
func (m *Manager) Load() ([]domdoc.Document, error) {
	docs, haveDocs, err := m.loadDocuments()
	if err != nil {
		return nil, err
	}
	if !haveDocs {
		return nil, nil
	}

	vectors, haveVecs, err := m.loadVectors()
	if err != nil {
		return nil, err
	}
	if !haveVecs {
		m.logger.Warn("Vector snapshot missing, documents loaded without embeddings",
			zap.String("dir", m.dir),
			zap.Int("documents", len(docs)),
		)
		return docs, nil
	}

	if len(vectors) != len(docs) {
		m.logger.Warn("Snapshot count mismatch, keeping loaded vectors",
			zap.Int("documents", len(docs)),
			zap.Int("vectors", len(vectors)),
		)
	}
	for i := range docs {
		if i < len(vectors) {
			docs[i].SetVector(vectors[i])
		}
	}

	m.logger.Info("Snapshot loaded",
		zap.String("dir", m.dir),
		zap.Int("documents", len(docs)),
		zap.Int("vectors", len(vectors)),
	)
	return docs, nil
}

func (m *Manager) loadDocuments() ([]domdoc.Document, bool, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, DocumentsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read document table: %w: %w", err, domain.ErrPersistence)
	}

	var table map[string]docRecord
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, false, fmt.Errorf("decode document table: %w: %w", err, domain.ErrPersistence)
	}

	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return table[ids[i]].Seq < table[ids[j]].Seq })

	docs := make([]domdoc.Document, 0, len(ids))
	for _, id := range ids {
		rec := table[id]
		docs = append(docs, domdoc.Reconstruct(id, rec.Content, rec.Tags, rec.Metadata, nil))
	}
	return docs, true, nil
}

func (m *Manager) loadVectors() ([][]float32, bool, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, VectorsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read vector array: %w: %w", err, domain.ErrPersistence)
	}

	vectors, err := decodeVectors(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode vector array: %w: %w", err, domain.ErrPersistence)
	}
	return vectors, true, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w: %w", filepath.Base(path), err, domain.ErrPersistence)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w: %w", filepath.Base(path), err, domain.ErrPersistence)
	}
	return nil
}

func encodeVectors(docs []domdoc.Document) []byte {
	dim := 0
	for i := range docs {
		if len(docs[i].Vector()) > 0 {
			dim = len(docs[i].Vector())
			break
		}
	}

	buf := make([]byte, 16, 16+len(docs)*dim*4)
	copy(buf[0:4], vectorsMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], vectorsVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(dim))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(docs)))

	scratch := make([]byte, 4)
	for i := range docs {
		vec := docs[i].Vector()
		for j := 0; j < dim; j++ {
			var f float32
			if j < len(vec) {
				f = vec[j]
			}
			binary.LittleEndian.PutUint32(scratch, math.Float32bits(f))
			buf = append(buf, scratch...)
		}
	}
	return buf
}

func decodeVectors(data []byte) ([][]float32, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("vector file too short (%d bytes)", len(data))
	}
	if [4]byte(data[0:4]) != vectorsMagic {
		return nil, fmt.Errorf("bad vector file magic")
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != vectorsVersion {
		return nil, fmt.Errorf("unsupported vector file version %d", v)
	}

	dim := int(binary.LittleEndian.Uint32(data[8:12]))
	count := int(binary.LittleEndian.Uint32(data[12:16]))
	if dim < 0 || count < 0 || len(data) != 16+count*dim*4 {
		return nil, fmt.Errorf("vector file size %d does not match dim=%d count=%d", len(data), dim, count)
	}

	vectors := make([][]float32, count)
	off := 16
	for i := 0; i < count; i++ {
		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
		vectors[i] = vec
	}
	return vectors, nil
}
