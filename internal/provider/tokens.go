package provider

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// fallbackEncoding is used for models tiktoken does not know.
const fallbackEncoding = "cl100k_base"

// TokenCounter estimates token counts when a provider does not report usage.
type TokenCounter interface {
	Count(model, text string) (int, bool)
}

// TiktokenCounter counts with tiktoken, caching one encoder per model.
type TiktokenCounter struct {
	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
	logger   *zap.Logger
}

func NewTiktokenCounter(logger *zap.Logger) *TiktokenCounter {
	return &TiktokenCounter{
		encoders: make(map[string]*tiktoken.Tiktoken),
		logger:   logger.Named("Tiktoken"),
	}
}

// Count returns false when no encoder could be loaded.
func (c *TiktokenCounter) Count(model, text string) (int, bool) {
	enc := c.encoder(model)
	if enc == nil {
		return 0, false
	}
	return len(enc.Encode(text, nil, nil)), true
}

func (c *TiktokenCounter) encoder(model string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encoders[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		c.logger.Warn("No tokenizer available, token counts will be empty", zap.String("model", model), zap.Error(err))
		enc = nil
	}
	c.encoders[model] = enc
	return enc
}

// estimate fills missing token counts on res.
func estimate(counter TokenCounter, model, prompt string, res *Result) {
	if counter == nil {
		return
	}
	if res.PromptTokens == nil {
		if n, ok := counter.Count(model, prompt); ok {
			res.PromptTokens = intPtr(n)
		}
	}
	if res.ResponseTokens == nil {
		if n, ok := counter.Count(model, res.ResponseText); ok {
			res.ResponseTokens = intPtr(n)
		}
	}
}
