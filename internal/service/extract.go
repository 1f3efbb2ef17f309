package service

import (
	"regexp"
	"strings"
)

// ParagraphExtractor turns an uploaded document into its paragraphs.
// Implementations are document-format specific.
type ParagraphExtractor interface {
	Extract(data []byte) ([]string, error)
}

var blankLinePattern = regexp.MustCompile(`\r?\n\s*\r?\n`)

// PlainTextExtractor splits UTF-8 text on blank lines.
type PlainTextExtractor struct{}

// Extract returns the non-empty paragraphs of data.
func (PlainTextExtractor) Extract(data []byte) ([]string, error) {
	var paragraphs []string
	for _, block := range blankLinePattern.Split(string(data), -1) {
		if p := strings.TrimSpace(block); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs, nil
}
