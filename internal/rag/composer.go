package rag

import (
	"fmt"
	"strings"

	wl "github.com/abadojack/whatlanggo"
)

// Composer merges a query and its retrieved chunks into a model prompt.
// Compose is a pure function: identical inputs always produce an identical
// ComposedPrompt.
type Composer struct {
	budget int // maximum characters of retrieved content; <=0 means unlimited
}

func NewComposer(budget int) *Composer {
	return &Composer{budget: budget}
}

// Compose builds the prompt. Retrieved chunks are included in result order,
// bounded by the context budget: when the budget would be exceeded, the
// lowest-similarity chunks are dropped first and their IDs recorded in
// Dropped. An empty retrieval result produces a general-knowledge prompt
// with UsedContext=false.
func (c *Composer) Compose(q Query, matches RetrievalResult) ComposedPrompt {
	kept, dropped := c.fit(matches)

	var sys strings.Builder
	sys.WriteString("You are an assistant answering questions about the user's ingested documents and images. ")
	sys.WriteString("Answer in ")
	sys.WriteString(answerLanguage(q))
	sys.WriteString(". ")
	if len(kept) == 0 {
		sys.WriteString("No indexed content matched this question. ")
		sys.WriteString("Answer from general knowledge and state explicitly that no sourced context was used. ")
	} else {
		sys.WriteString("Answer ONLY based on the provided excerpts. ")
		sys.WriteString("If the answer is not clearly present, say that it is not available in the indexed content. ")
		sys.WriteString("Do not invent sources, paths or values.")
	}

	var user strings.Builder
	user.WriteString("Question:\n")
	user.WriteString(strings.TrimSpace(q.Content))
	if len(kept) > 0 {
		user.WriteString("\n\nRelevant excerpts:\n")
		for _, m := range kept {
			fmt.Fprintf(&user, "\n[DOC %s] source=%s position=%d\n",
				m.Chunk.ID, m.Chunk.Source, m.Chunk.Position)
			user.WriteString(strings.TrimSpace(m.Chunk.Content))
			user.WriteString("\n----\n")
		}
	}

	return ComposedPrompt{
		System:      sys.String(),
		User:        user.String(),
		Sources:     kept.IDs(),
		Dropped:     dropped,
		UsedContext: len(kept) > 0,
	}
}

// fit trims matches to the context budget, dropping from the low-similarity
// end so the best evidence always survives.
func (c *Composer) fit(matches RetrievalResult) (RetrievalResult, []string) {
	if c.budget <= 0 {
		return matches, nil
	}

	total := 0
	for _, m := range matches {
		total += len(m.Chunk.Content)
	}

	kept := matches
	var dropped []string
	for total > c.budget && len(kept) > 0 {
		last := kept[len(kept)-1]
		dropped = append(dropped, last.Chunk.ID)
		total -= len(last.Chunk.Content)
		kept = kept[:len(kept)-1]
	}
	return kept, dropped
}

// answerLanguage picks the reply language from the question text so users get
// answers in the language they asked in. Image queries default to English.
func answerLanguage(q Query) string {
	if q.Modality != ModalityText {
		return "English"
	}
	info := wl.Detect(q.Content)
	switch wl.LangToString(info.Lang) {
	case "por":
		return "Portuguese"
	case "spa":
		return "Spanish"
	default:
		return "English"
	}
}
