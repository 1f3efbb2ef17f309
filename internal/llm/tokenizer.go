package llm

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer encodes text into token ids. The pipeline only ever uses the
// length of the encoding, but the full id slice is exposed so the
// implementation stays a drop-in for provider tokenizers.
type Tokenizer interface {
	Encode(text string) []int
}

// TiktokenTokenizer counts tokens with the BPE encoding matching an
// OpenAI model.
type TiktokenTokenizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenTokenizer creates a tokenizer for the given model, falling
// back to the cl100k_base encoding for models tiktoken does not know.
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to load tokenizer encoding: %w", err)
		}
	}
	return &TiktokenTokenizer{encoding: encoding}, nil
}

// Encode returns the token ids for text.
func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.encoding.Encode(text, nil, nil)
}
