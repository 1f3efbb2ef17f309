package llm

import (
	"regexp"
	"strings"
)

// Separator joins paragraphs within one chunk sent to the model. The
// model is instructed to keep it in the exact same positions, which makes
// splitting the response the inverse of joining the request.
const Separator = " ||| "

// separatorPattern tolerates whitespace variants around the delimiter in
// model output (" |||", "||| ", "|||").
var separatorPattern = regexp.MustCompile(`\s*\|\|\|\s*`)

// JoinParagraphs assembles a chunk payload from paragraphs.
func JoinParagraphs(paragraphs []string) string {
	return strings.Join(paragraphs, Separator)
}

// SplitParagraphs recovers one string per paragraph from model output.
// The count is whatever the model produced; a mismatch against the input
// paragraph count is the caller's contract to observe, not repair here.
func SplitParagraphs(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	return separatorPattern.Split(trimmed, -1)
}
