package provider

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter estimates output tokens when a backend reports none.
type TokenCounter interface {
	Count(model, text string) int
}

type tiktokenCounter struct {
	mu     sync.Mutex
	codecs map[string]tokenizer.Codec
}

// NewTokenCounter returns a counter using the model's tiktoken encoding,
// cl100k_base for models tiktoken does not know.
func NewTokenCounter() TokenCounter {
	return &tiktokenCounter{codecs: make(map[string]tokenizer.Codec)}
}

func (c *tiktokenCounter) codec(model string) (tokenizer.Codec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.codecs[model]; ok {
		return enc, nil
	}
	enc, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		enc, err = tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return nil, err
		}
	}
	c.codecs[model] = enc
	return enc, nil
}

func (c *tiktokenCounter) Count(model, text string) int {
	if text == "" {
		return 0
	}
	enc, err := c.codec(model)
	if err != nil {
		return len(strings.Fields(text))
	}
	toks, _, err := enc.Encode(text)
	if err != nil {
		return len(strings.Fields(text))
	}
	return len(toks)
}
