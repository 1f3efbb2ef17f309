package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/glossa-works/glossa/internal/domain"
)

// Prompt keys selectable per translation call.
const (
	// PromptKeyDefault asks for a faithful, close-to-literal translation.
	PromptKeyDefault = "prompt_1"
	// PromptKeyLiterary trades literalness for register and flow.
	PromptKeyLiterary = "prompt_2"
)

// PromptComposer builds the system prompt for a translation call.
type PromptComposer interface {
	Compose(key string, from, to domain.Language) (string, error)
}

var promptTemplates = map[string]string{
	PromptKeyDefault: "You are a professional translator. Translate the text from %s to %s. " +
		"The text contains paragraphs separated by the delimiter ' ||| '. " +
		"Keep the delimiter in exactly the same positions so every input paragraph maps to exactly one output paragraph. " +
		"Translate faithfully and completely; do not summarize, merge, or omit paragraphs. " +
		"Output only the translated text.",
	PromptKeyLiterary: "You are a literary translator. Translate the text from %s to %s, " +
		"preserving the author's register, rhythm, and imagery over word-for-word fidelity. " +
		"The text contains paragraphs separated by the delimiter ' ||| '. " +
		"Keep the delimiter in exactly the same positions so every input paragraph maps to exactly one output paragraph. " +
		"Output only the translated text.",
}

// KeyPromptComposer composes prompts from a fixed template per key.
type KeyPromptComposer struct{}

// Compose returns the prompt for key, with the language pair spelled out.
func (KeyPromptComposer) Compose(key string, from, to domain.Language) (string, error) {
	if key == "" {
		key = PromptKeyDefault
	}
	tmpl, ok := promptTemplates[key]
	if !ok {
		return "", domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("unknown prompt key: %s", key))
	}
	return fmt.Sprintf(tmpl, domain.LanguageName(from), domain.LanguageName(to)), nil
}

// ReferenceExcerpt is one reference source's contribution to an alignment
// call: the next unconsumed stretch of its text.
type ReferenceExcerpt struct {
	SourceID string
	Language domain.Language
	Text     string
}

// BuildAlignmentPrompt extends a base translation prompt with reference
// excerpts and the structured-response instructions for an alignment call.
// Excerpts are embedded in deterministic language order.
func BuildAlignmentPrompt(basePrompt string, excerpts []ReferenceExcerpt, paragraphCount int) string {
	sorted := make([]ReferenceExcerpt, len(excerpts))
	copy(sorted, excerpts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Language < sorted[j].Language })

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nYou are also given existing renditions of the same passage in other languages. ")
	b.WriteString("For each of them, split off the stretch that corresponds to the text being translated ")
	b.WriteString(fmt.Sprintf("and divide it into exactly %d segments matching the input paragraphs one-to-one. ", paragraphCount))
	b.WriteString("Use each rendition's own wording; never translate it yourself.")

	for _, e := range sorted {
		b.WriteString(fmt.Sprintf("\n\n%s rendition:\n%s", domain.LanguageName(e.Language), e.Text))
	}

	b.WriteString("\n\nRespond with a JSON object of the form ")
	b.WriteString(`{"translation": "<p1> ||| <p2> ...", "segments": {"<language code>": ["seg1", "seg2", ...]}} `)
	b.WriteString("where \"translation\" holds the translated paragraphs joined by ' ||| ' and \"segments\" holds, ")
	b.WriteString("per reference language code, the aligned segment list in paragraph order.")

	return b.String()
}
