package rag

import (
	"fmt"
	"strings"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Chunker splits text into overlapping windows of whitespace-delimited words.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunkConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunkConfig, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Chunks returns a lazy sequence over the windows of text. The sequence can be
// ranged over any number of times.
func (c *Chunker) Chunks(text string) func(yield func(string) bool) {
	return func(yield func(string) bool) {
		tokens := strings.Fields(text)
		step := c.size - c.overlap
		for start := 0; start < len(tokens); start += step {
			end := start + c.size
			if end > len(tokens) {
				end = len(tokens)
			}
			part := strings.Join(tokens[start:end], " ")
			if part != "" && !yield(part) {
				return
			}
			if end == len(tokens) {
				return
			}
		}
	}
}

func (c *Chunker) Split(text string) []string {
	out := make([]string, 0)
	for part := range c.Chunks(text) {
		out = append(out, part)
	}
	return out
}

// ExpectedChunks is the number of windows produced for n tokens.
func (c *Chunker) ExpectedChunks(n int) int {
	if n <= 0 {
		return 0
	}
	if n <= c.overlap {
		return 1
	}
	step := c.size - c.overlap
	return (n - c.overlap + step - 1) / step
}
