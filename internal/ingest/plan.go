package ingest

import (
	"strings"

	"studyrag/internal/models"
	"studyrag/internal/util"
)

// probeRunes is how much of a chunk's head and tail is matched against the
// extracted pages when deriving its page range.
const probeRunes = 48

type PlannedChunk struct {
	Index      int    `json:"index"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
	PageFrom   int    `json:"page_from"`
	PageTo     int    `json:"page_to"`
	Kind       string `json:"kind"`
}

// Plan splits text and describes every chunk. It has no side effects; the
// chunk index is its position in the result.
func Plan(text string, chunker util.Chunker) []PlannedChunk {
	pages := splitPages(text)
	parts := chunker.Split(text)
	out := make([]PlannedChunk, 0, len(parts))
	for i, part := range parts {
		meta := util.DescribeChunk(part)
		from, to := pageRange(pages, part)
		out = append(out, PlannedChunk{
			Index:      i,
			Title:      meta.Title,
			Summary:    meta.Summary,
			Text:       part,
			TokenCount: meta.TokenCount,
			PageFrom:   from,
			PageTo:     to,
			Kind:       models.ChunkKindText,
		})
	}
	return out
}

func (p PlannedChunk) Chunk(documentID int64) models.Chunk {
	return models.Chunk{
		DocumentID: documentID,
		ChunkIndex: p.Index,
		Title:      p.Title,
		Summary:    p.Summary,
		Text:       p.Text,
		TokenCount: p.TokenCount,
		PageFrom:   p.PageFrom,
		PageTo:     p.PageTo,
		Kind:       p.Kind,
	}
}

// splitPages returns whitespace-normalized pages, or nil when the text carries
// no page markers.
func splitPages(text string) []string {
	if !strings.Contains(text, util.PageBreakMarker) {
		return nil
	}
	raw := strings.Split(text, util.PageBreakMarker)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		out = append(out, normalizeSpace(p))
	}
	return out
}

// pageRange returns 1-based pages holding the chunk's head and tail, or 0, 0
// when they cannot be located.
func pageRange(pages []string, chunk string) (int, int) {
	if len(pages) == 0 {
		return 0, 0
	}
	norm := []rune(normalizeSpace(chunk))
	if len(norm) == 0 {
		return 0, 0
	}
	n := probeRunes
	if n > len(norm) {
		n = len(norm)
	}
	head := string(norm[:n])
	tail := string(norm[len(norm)-n:])

	from := 0
	for i, p := range pages {
		if strings.Contains(p, head) {
			from = i + 1
			break
		}
	}
	if from == 0 {
		return 0, 0
	}
	to := from
	for i := from - 1; i < len(pages); i++ {
		if strings.Contains(pages[i], tail) {
			to = i + 1
			break
		}
	}
	return from, to
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
