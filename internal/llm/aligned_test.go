package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAlignedResponse(t *testing.T) {
	raw := `{"translation": "uno ||| dos", "segments": {"he": ["h1", "h2"], "ru": ["r1", "r2"]}}`

	resp, err := ParseAlignedResponse(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"uno", "dos"}, resp.TranslatedParagraphs())
	assert.Equal(t, []string{"h1", "h2"}, resp.Segments["he"])
	assert.Equal(t, []string{"r1", "r2"}, resp.Segments["ru"])
}

func TestParseAlignedResponseStripsFence(t *testing.T) {
	raw := "```json\n{\"translation\": \"uno\", \"segments\": {}}\n```"

	resp, err := ParseAlignedResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "uno", resp.Translation)
}

func TestParseAlignedResponseErrors(t *testing.T) {
	_, err := ParseAlignedResponse("not json at all")
	assert.Error(t, err)

	_, err = ParseAlignedResponse(`{"segments": {"he": ["h1"]}}`)
	assert.Error(t, err, "missing translation is rejected")
}
