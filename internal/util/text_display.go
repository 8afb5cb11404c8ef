package util

import (
	"sort"
	"strings"
	"unicode"
)

const (
	defaultSnippetRunes = 420
	// a cut may back up this far to land on a space
	wordCutSlack = 24
)

// DisplaySnippet flattens s to one line of printable text and cuts it to
// maxRunes, preferring a word boundary. Truncated output ends in "...".
func DisplaySnippet(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = defaultSnippetRunes
	}
	runes := []rune(flatten(s))
	if len(runes) <= maxRunes {
		return string(runes)
	}
	cut := maxRunes
	for i := maxRunes; i > 0 && i > maxRunes-wordCutSlack; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])) + "..."
}

// DisplayEvidenceSnippet returns the sentence of a chunk that best matches
// the question, plus the runner-up when it matches too. Picked sentences keep
// their order in the chunk.
func DisplayEvidenceSnippet(chunkText, query string, maxRunes int) string {
	chunkText = flatten(chunkText)
	if chunkText == "" {
		return ""
	}
	terms := queryTerms(query)
	sentences := SplitSentences(chunkText)
	if len(terms) == 0 || len(sentences) == 0 {
		return DisplaySnippet(chunkText, maxRunes)
	}

	type scored struct {
		pos   int
		score int
	}
	ranked := make([]scored, 0, len(sentences))
	for i, s := range sentences {
		low := strings.ToLower(s)
		n := 0
		for _, term := range terms {
			if strings.Contains(low, term) {
				n++
			}
		}
		ranked = append(ranked, scored{pos: i, score: n})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if ranked[0].score == 0 {
		return DisplaySnippet(chunkText, maxRunes)
	}
	picked := []int{ranked[0].pos}
	if len(ranked) > 1 && ranked[1].score > 0 {
		picked = append(picked, ranked[1].pos)
		sort.Ints(picked)
	}
	parts := make([]string, 0, len(picked))
	for _, p := range picked {
		parts = append(parts, sentences[p])
	}
	return DisplaySnippet(strings.Join(parts, " "), maxRunes)
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "were": {}, "what": {}, "how": {}, "why": {},
	"who": {}, "when": {}, "where": {}, "which": {}, "that": {}, "this": {}, "these": {}, "those": {},
	"with": {}, "from": {}, "into": {}, "about": {}, "does": {}, "did": {}, "can": {}, "its": {},
	"explain": {}, "describe": {}, "define": {}, "give": {}, "list": {}, "tell": {},
	"chapter": {}, "notes": {}, "lesson": {}, "class": {},
}

// queryTerms lowercases the question, drops stop words and short tokens and
// reduces plurals and verb endings so "cells" matches "cell".
func queryTerms(s string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 8)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.TrimFunc(f, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) })
		if len([]rune(f)) < 3 {
			continue
		}
		if _, ok := stopWords[f]; ok {
			continue
		}
		f = stem(f)
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func stem(w string) string {
	for _, suffix := range []string{"ing", "ies", "es", "ed", "s"} {
		if strings.HasSuffix(w, suffix) && len(w)-len(suffix) >= 3 {
			return strings.TrimSuffix(w, suffix)
		}
	}
	return w
}

func flatten(s string) string {
	s = SanitizeText(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
