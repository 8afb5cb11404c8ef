package util

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	PageBreakMarker = "---PAGE_BREAK---"

	DefaultMaxChunkSize = 1000
	DefaultMinChunkSize = 100
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Chunker splits text by paragraphs, then sentences, then fixed windows.
// Sizes are in runes.
type Chunker struct {
	MaxSize int
	MinSize int
}

func NewChunker(maxSize, minSize int) Chunker {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	if minSize <= 0 {
		minSize = DefaultMinChunkSize
	}
	if minSize > maxSize {
		minSize = maxSize
	}
	return Chunker{MaxSize: maxSize, MinSize: minSize}
}

type piece struct {
	text   string
	window bool
}

// Split returns the ordered chunks of text. Paragraph and sentence chunks
// shorter than MinSize are dropped; window chunks are always kept. When no
// chunk survives, the whole text is cut into windows.
func (c Chunker) Split(text string) []string {
	c = NewChunker(c.MaxSize, c.MinSize)
	text = strings.ReplaceAll(text, PageBreakMarker, "\n\n")
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []string{}
	}

	out := make([]string, 0)
	for _, p := range c.paragraphs(trimmed) {
		if p.window || runeLen(p.text) >= c.MinSize {
			out = append(out, p.text)
		}
	}
	if len(out) == 0 {
		return ChunkText(trimmed, c.MaxSize, 0)
	}
	return out
}

func (c Chunker) paragraphs(text string) []piece {
	out := make([]piece, 0)
	acc := accumulator{max: c.MaxSize, sep: "\n\n"}
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if runeLen(para) > c.MaxSize {
			out = acc.flush(out)
			out = append(out, c.sentences(para)...)
			continue
		}
		out = acc.add(out, para)
	}
	return acc.flush(out)
}

func (c Chunker) sentences(text string) []piece {
	out := make([]piece, 0)
	acc := accumulator{max: c.MaxSize, sep: " "}
	for _, s := range SplitSentences(text) {
		if runeLen(s) > c.MaxSize {
			out = acc.flush(out)
			for _, w := range ChunkText(s, c.MaxSize, 0) {
				out = append(out, piece{text: w, window: true})
			}
			continue
		}
		out = acc.add(out, s)
	}
	return acc.flush(out)
}

type accumulator struct {
	max int
	sep string
	cur strings.Builder
	n   int
}

func (a *accumulator) add(out []piece, s string) []piece {
	size := runeLen(s)
	if a.n > 0 && a.n+utf8.RuneCountInString(a.sep)+size > a.max {
		out = a.flush(out)
	}
	if a.n > 0 {
		a.cur.WriteString(a.sep)
		a.n += utf8.RuneCountInString(a.sep)
	}
	a.cur.WriteString(s)
	a.n += size
	return out
}

func (a *accumulator) flush(out []piece) []piece {
	if a.n == 0 {
		return out
	}
	out = append(out, piece{text: strings.TrimSpace(a.cur.String())})
	a.cur.Reset()
	a.n = 0
	return out
}

// SplitSentences breaks after '.', '!' or '?' when followed by whitespace.
func SplitSentences(text string) []string {
	runes := []rune(text)
	out := make([]string, 0, 8)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ChunkText slices text into windows of chunkSize runes advancing by
// chunkSize-overlap. Whitespace-only windows are skipped.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultMaxChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	runes := []rune(text)
	step := chunkSize - overlap
	out := make([]string, 0, len(runes)/chunkSize+1)
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		part := strings.TrimSpace(string(runes[i:end]))
		if part != "" {
			out = append(out, part)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

type ChunkMeta struct {
	Title      string
	Summary    string
	TokenCount int
}

// DescribeChunk derives a display title, a short summary and a rough token
// estimate (four runes per token).
func DescribeChunk(text string) ChunkMeta {
	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}
	summary := ""
	sentences := SplitSentences(text)
	switch {
	case len(sentences) >= 2:
		summary = sentences[0] + " " + sentences[1]
	case len(sentences) == 1:
		summary = sentences[0]
	}
	n := runeLen(text)
	return ChunkMeta{
		Title:      DisplaySnippet(firstLine, 80),
		Summary:    DisplaySnippet(summary, 240),
		TokenCount: (n + 3) / 4,
	}
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
