package extractor

import (
	"context"
	"fmt"

	"simplexkg/internal/activity"
	"simplexkg/internal/embedding"
)

// ollamaExtractor is an embeddings-only deployment target: local Ollama has
// no structured-generation endpoint wired here, so Extract always fails
// with extraction-failure. This mirrors Ollama's role elsewhere in the
// stack, where it serves embeddings but generation goes through a
// different provider.
type ollamaExtractor struct {
	*embedding.OllamaEngine
}

func newOllamaExtractor(endpoint, model string) (*ollamaExtractor, error) {
	engine, err := embedding.NewOllamaEngine(endpoint, model)
	if err != nil {
		return nil, fmt.Errorf("%w: create ollama engine: %v", ErrExtraction, err)
	}
	return &ollamaExtractor{OllamaEngine: engine}, nil
}

func (e *ollamaExtractor) Extract(ctx context.Context, act activity.ParsedActivity) (ExtractionResult, error) {
	return ExtractionResult{}, fmt.Errorf("%w: ollama provider does not support entity extraction, use provider=genai", ErrExtraction)
}
