package rag

import (
	"strings"

	"studyrag/internal/models"
)

type NotesFormat string

const (
	FormatBulletPoints NotesFormat = "bullet_points"
	FormatOutline      NotesFormat = "outline"
	FormatFlashcards   NotesFormat = "flashcards"
	FormatSummary      NotesFormat = "summary"
)

// ParseNotesFormat maps any unrecognized value to FormatBulletPoints.
func ParseNotesFormat(s string) NotesFormat {
	switch f := NotesFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatOutline, FormatFlashcards, FormatSummary:
		return f
	}
	return FormatBulletPoints
}

const contextSeparator = "\n\n---\n\n"

const studyPersona = `You are a patient study assistant for school students.
Answer using ONLY the context provided below. Do not use outside knowledge.
If the context does not contain the answer, say that the study material does not cover it.`

const notesPersona = `You are a study assistant that writes revision notes for school students.
Use ONLY the context provided below. Do not add facts that are not in the context.`

var formatInstructions = map[NotesFormat]string{
	FormatBulletPoints: "Write concise bullet points covering the key facts, definitions and ideas.",
	FormatOutline:      "Write a hierarchical outline with numbered main sections and indented sub-points.",
	FormatFlashcards:   "Write question and answer flashcards. Format each card as \"Q: ...\" followed by \"A: ...\".",
	FormatSummary:      "Write a short narrative summary in plain paragraphs.",
}

// BuildAnswerPrompt assembles the question answering prompt. history may be
// empty and must already be in chronological order.
func BuildAnswerPrompt(question string, chunks []models.SearchResultChunk, history []models.ConversationTurn) string {
	var b strings.Builder
	b.WriteString(studyPersona)
	if len(history) > 0 {
		b.WriteString("\n\nPrevious conversation:\n")
		for _, t := range history {
			b.WriteString(speaker(t.Role))
			b.WriteString(": ")
			b.WriteString(strings.TrimSpace(t.Content))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n\nContext:\n")
	b.WriteString(joinContext(chunks))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nAnswer:")
	return b.String()
}

func BuildNotesPrompt(topic string, format NotesFormat, chunks []models.SearchResultChunk) string {
	instruction, ok := formatInstructions[format]
	if !ok {
		instruction = formatInstructions[FormatBulletPoints]
	}
	return notesPersona + "\n" + instruction +
		"\n\nContext:\n" + joinContext(chunks) +
		"\n\nTopic: " + strings.TrimSpace(topic) +
		"\n\nNotes:"
}

func joinContext(chunks []models.SearchResultChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, strings.TrimSpace(c.Text))
	}
	return strings.Join(parts, contextSeparator)
}

func speaker(r models.Role) string {
	if r == models.RoleAssistant {
		return "Assistant"
	}
	return "Student"
}
