package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/memdex/internal/domain"
	"github.com/kailas-cloud/memdex/internal/domain/metadata"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		content string
		wantErr bool
	}{
		{"valid", "d1", "cats are pets", false},
		{"empty_id_allowed", "", "content", false},
		{"empty_content", "d1", "", true},
		{"id_too_long", strings.Repeat("x", MaxIDLength+1), "content", true},
		{"content_too_large", "d1", strings.Repeat("a", MaxContentSize+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.id, tt.content, nil, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidDocument) {
				t.Errorf("New() error = %v, want ErrInvalidDocument sentinel", err)
			}
		})
	}
}

func TestNew_DedupTags(t *testing.T) {
	doc, err := New("d1", "content", []string{"animal", "pet", "animal", "", "pet"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := []string{"animal", "pet"}
	got := doc.Tags()
	if len(got) != len(want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNew_ClonesMetadata(t *testing.T) {
	meta := metadata.Map{"user_id": metadata.String("u1")}
	doc, err := New("d1", "content", nil, meta)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	meta["user_id"] = metadata.String("u2")
	if !doc.Metadata()["user_id"].Equal(metadata.String("u1")) {
		t.Error("document metadata should be isolated from the caller's map")
	}
}

func TestHasAnyTag(t *testing.T) {
	doc, _ := New("d1", "content", []string{"memory", "personal"}, nil)

	if !doc.HasAnyTag([]string{"personal", "event"}) {
		t.Error("expected match on shared tag")
	}
	if doc.HasAnyTag([]string{"finance"}) {
		t.Error("expected no match")
	}
	if doc.HasAnyTag(nil) {
		t.Error("empty tag list should not match")
	}
}
