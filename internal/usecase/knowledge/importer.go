package knowledge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxChunkSize is the chunk ceiling in runes for bulk import.
const DefaultMaxChunkSize = 300

// ImportStats reports the outcome of a bulk import.
type ImportStats struct {
	Chunks      int
	DocumentIDs []string
}

// Import splits long content at sentence boundaries and inserts the chunks
// as individual documents sharing the given tags and metadata. The whole
// import is one batch: a failure inserts nothing.
func (s *Service) Import(ctx context.Context, item AddItem, maxChunkSize int) (ImportStats, error) {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	chunks := SplitDocument(item.Content, maxChunkSize)
	if len(chunks) == 0 {
		return ImportStats{}, fmt.Errorf("no content to import")
	}

	items := make([]AddItem, 0, len(chunks))
	for _, chunk := range chunks {
		items = append(items, AddItem{
			Content:  chunk,
			Tags:     item.Tags,
			Metadata: item.Metadata,
		})
	}

	ids, err := s.BatchAdd(ctx, items)
	if err != nil {
		return ImportStats{}, fmt.Errorf("import chunks: %w", err)
	}

	s.logger.Info("Import completed",
		zap.Int("chunks", len(ids)),
		zap.Int("max_chunk_size", maxChunkSize),
	)

	return ImportStats{Chunks: len(ids), DocumentIDs: ids}, nil
}

// sentence terminators recognized by the splitter, CJK and Latin
var sentenceEnders = []rune{'。', '！', '？', '.', '!', '?', '\n'}

// clause separators used when a single sentence exceeds the chunk size
var clauseSeparators = []rune{'，', ',', '；', ';'}

// SplitDocument splits content into chunks of at most maxChunk runes,
// preferring sentence boundaries. Sentences longer than the limit are split
// at clause separators, and failing that, hard-split by rune count.
func SplitDocument(content string, maxChunk int) []string {
	sentences := splitAfterAny(content, sentenceEnders)

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, sentence := range sentences {
		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}
		n := len([]rune(sentence))

		if n > maxChunk {
			if currentLen > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
				currentLen = 0
			}
			chunks = append(chunks, splitLongSentence(sentence, maxChunk)...)
			continue
		}

		if currentLen+n > maxChunk && currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		current.WriteString(sentence)
		currentLen += n
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitLongSentence breaks an oversize sentence at clause separators, then
// hard-splits any clause still over the limit.
func splitLongSentence(sentence string, maxChunk int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, part := range splitAfterAny(sentence, clauseSeparators) {
		n := len([]rune(part))

		if n > maxChunk {
			if currentLen > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
				currentLen = 0
			}
			chunks = append(chunks, hardSplit(part, maxChunk)...)
			continue
		}

		if currentLen+n > maxChunk && currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		current.WriteString(part)
		currentLen += n
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitAfterAny splits s after every occurrence of any separator rune,
// keeping the separator attached to the preceding segment.
func splitAfterAny(s string, seps []rune) []string {
	var out []string
	var current strings.Builder

	for _, r := range s {
		current.WriteRune(r)
		for _, sep := range seps {
			if r == sep {
				out = append(out, current.String())
				current.Reset()
				break
			}
		}
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// hardSplit cuts text into fixed-size rune windows.
func hardSplit(s string, maxChunk int) []string {
	runes := []rune(s)
	var out []string
	for i := 0; i < len(runes); i += maxChunk {
		end := i + maxChunk
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}
