package data

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tiktoken encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// Encoder turns text into token IDs.
type Encoder interface {
	Encode(text string) ([]int32, error)
}

// TikToken adapts a tiktoken-go encoding to Encoder.
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken loads the named tiktoken encoding, e.g. "cl100k_base".
func NewTikToken(encodingName string) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: encoding, name: encodingName}, nil
}

// Name returns the encoding name.
func (t *TikToken) Name() string {
	return t.name
}

// Encode converts text to token IDs.
func (t *TikToken) Encode(text string) ([]int32, error) {
	tokens := t.encoding.Encode(text, nil, nil)
	result := make([]int32, len(tokens))
	for i, tok := range tokens {
		result[i] = int32(tok) //nolint:gosec // G115: token IDs fit in int32.
	}
	return result, nil
}

// TokenWindow is a next-token prediction example: Targets[i] follows Inputs[i].
type TokenWindow struct {
	Inputs  []int32
	Targets []int32
}

// Len returns the number of prediction positions in the window.
func (w TokenWindow) Len() int {
	return len(w.Inputs)
}

// TextConfig controls how text is cut into windows.
type TextConfig struct {
	WindowSize int // Prediction positions per item (default: 32).
	VocabSize  int // Token IDs are folded modulo this size; 0 keeps them unchanged.
}

// NewTextLoader encodes text and cuts the token stream into consecutive,
// non-overlapping windows. A trailing run shorter than one window is dropped.
func NewTextLoader(enc Encoder, text string, cfg TextConfig) (*SliceLoader[TokenWindow], error) {
	windows, err := TokenWindows(enc, text, cfg)
	if err != nil {
		return nil, err
	}
	return NewSliceLoader(windows), nil
}

// TokenWindows encodes text and returns its windows.
func TokenWindows(enc Encoder, text string, cfg TextConfig) ([]TokenWindow, error) {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 32
	}
	if cfg.VocabSize < 0 {
		return nil, fmt.Errorf("data: negative vocab size %d", cfg.VocabSize)
	}

	tokens, err := enc.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("data: encode text: %w", err)
	}
	if cfg.VocabSize > 0 {
		for i, tok := range tokens {
			tokens[i] = tok % int32(cfg.VocabSize) //nolint:gosec // vocab size is small.
		}
	}

	var windows []TokenWindow
	for start := 0; start+cfg.WindowSize < len(tokens); start += cfg.WindowSize {
		windows = append(windows, TokenWindow{
			Inputs:  tokens[start : start+cfg.WindowSize],
			Targets: tokens[start+1 : start+cfg.WindowSize+1],
		})
	}
	return windows, nil
}
