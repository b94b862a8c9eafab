package rag

import "fmt"

// ChunkingConfig controls the sliding window used to split text.
// Window is the maximum chunk size in runes; Overlap is how many runes
// consecutive chunks share so sentences cut at a boundary stay retrievable.
type ChunkingConfig struct {
	Window  int
	Overlap int
}

// Validate rejects configs that would stall or lose text.
func (c ChunkingConfig) Validate() error {
	if c.Window <= 0 || c.Overlap < 0 || c.Overlap >= c.Window {
		return fmt.Errorf("%w: window=%d overlap=%d (need window > overlap >= 0)",
			ErrInvalidChunkingConfig, c.Window, c.Overlap)
	}
	return nil
}

// SplitText cuts text into overlapping windows. The windows cover the whole
// text with no gaps and each is at most cfg.Window runes long. Splitting is a
// pure function of the text and the config. Empty text yields no chunks.
func SplitText(text string, cfg ChunkingConfig) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += cfg.Window - cfg.Overlap {
		end := start + cfg.Window
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
