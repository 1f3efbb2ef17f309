package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AlignedResponse is the structured payload expected from a multi-source
// alignment call: the translated origin text (separator-joined) plus, per
// reference language, the aligned segment list.
type AlignedResponse struct {
	Translation string              `json:"translation"`
	Segments    map[string][]string `json:"segments"`
}

// TranslatedParagraphs splits the translation payload on the paragraph
// separator.
func (r *AlignedResponse) TranslatedParagraphs() []string {
	return SplitParagraphs(r.Translation)
}

// ParseAlignedResponse decodes a raw model response into an
// AlignedResponse. Models occasionally wrap JSON in a markdown fence even
// in JSON mode; the fence is stripped before decoding.
func ParseAlignedResponse(raw string) (*AlignedResponse, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var resp AlignedResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode aligned response: %w", err)
	}
	if resp.Translation == "" {
		return nil, fmt.Errorf("aligned response has no translation field")
	}
	return &resp, nil
}
