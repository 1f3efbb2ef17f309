package service

import (
	"strings"

	"github.com/glossa-works/glossa/internal/llm"
)

// DefaultOutputRatio assumes translated text runs up to 20% longer than
// its input, so input chunks are sized below the model's output capacity.
const DefaultOutputRatio = 1.2

// Chunker sizes and bin-packs paragraph sequences against a model's token
// budget. Token counting is delegated to an injected tokenizer.
type Chunker struct {
	tokenizer llm.Tokenizer
}

// NewChunker creates a Chunker over the given tokenizer.
func NewChunker(tokenizer llm.Tokenizer) *Chunker {
	return &Chunker{tokenizer: tokenizer}
}

// TokenCount returns the token count of text.
func (c *Chunker) TokenCount(text string) int {
	return len(c.tokenizer.Encode(text))
}

// ChunkBudget computes how many input tokens one request can carry:
// the smaller of what the output capacity allows (maxOutput / outputRatio)
// and what remains of the context window after the prompt and the reserved
// output. Extra texts sharing the request (reference excerpts) count
// against the prompt. Floored at 0; a zero budget means "no room" and is
// the caller's condition to shrink input, not an error.
func (c *Chunker) ChunkBudget(promptText string, limits llm.ModelLimits, outputRatio float64, extraTexts ...string) int {
	if outputRatio <= 0 {
		outputRatio = DefaultOutputRatio
	}

	promptTokens := c.TokenCount(promptText)
	for _, t := range extraTexts {
		promptTokens += c.TokenCount(t)
	}

	budget := int(float64(limits.MaxOutputTokens) / outputRatio)
	if byContext := limits.ContextWindow - promptTokens - limits.MaxOutputTokens; byContext < budget {
		budget = byContext
	}
	if budget < 0 {
		budget = 0
	}
	return budget
}

// PackParagraphs greedily bins paragraphs into chunks: a paragraph joins
// the current chunk while the chunk's tokens plus the paragraph and its
// separator fit the budget, otherwise it starts a new chunk. Blank and
// separator-only paragraphs are skipped. A budget of 0 or less returns no
// chunks.
func (c *Chunker) PackParagraphs(paragraphs []string, budget int) [][]string {
	if budget <= 0 {
		return nil
	}

	separatorTokens := c.TokenCount(llm.Separator)

	var chunks [][]string
	var current []string
	currentTokens := 0

	for _, p := range paragraphs {
		if skipParagraph(p) {
			continue
		}

		tokens := c.TokenCount(p)
		if len(current) == 0 {
			current = []string{p}
			currentTokens = tokens
			continue
		}

		if currentTokens+separatorTokens+tokens <= budget {
			current = append(current, p)
			currentTokens += separatorTokens + tokens
			continue
		}

		chunks = append(chunks, current)
		current = []string{p}
		currentTokens = tokens
	}

	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func skipParagraph(p string) bool {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		return true
	}
	return strings.Trim(trimmed, "|") == ""
}
