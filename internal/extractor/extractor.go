// Package extractor defines the contract between the ingest pipeline and
// the black-box entity/relationship extraction + embedding service, and
// provides the two concrete providers this module ships.
package extractor

import (
	"context"
	"errors"
	"fmt"

	"simplexkg/internal/activity"
	"simplexkg/internal/embedding"
)

// Relationship is a single subject-predicate-object triple extracted from
// an activity.
type Relationship struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// ExtractionResult is the output of Extract: every entity name mentioned,
// plus the relationships between them. Every Subject/Object referenced in
// Relationships must (case-folded) appear in Entities; callers drop
// relationships that reference unknown names rather than trust them blindly.
type ExtractionResult struct {
	Entities      []string       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// Extractor is the full contract required by the ingest pipeline: vector
// embeddings (single and batch) plus structured entity/relationship
// extraction. It composes embedding.EmbeddingEngine so a configured
// extractor is always simultaneously a configured embedding engine — the
// pipeline never wires two different backends to one database.
type Extractor interface {
	embedding.EmbeddingEngine
	Extract(ctx context.Context, act activity.ParsedActivity) (ExtractionResult, error)
}

// ErrExtraction signals an extraction-failure per the error taxonomy: the
// extractor or embedding call failed, or returned malformed output.
var ErrExtraction = errors.New("extraction failure")

// Config selects and configures one of the concrete providers.
type Config struct {
	Provider string // "genai" or "ollama"
	Model    string
	APIKey   string

	OllamaEndpoint string
	OllamaModel    string
}

// New builds the configured Extractor. Both providers are EmbeddingEngines;
// only the genai provider also extracts.
func New(cfg Config) (Extractor, error) {
	switch cfg.Provider {
	case "genai":
		return newGenAIExtractor(cfg.APIKey, cfg.Model)
	case "ollama":
		return newOllamaExtractor(cfg.OllamaEndpoint, cfg.OllamaModel)
	default:
		return nil, fmt.Errorf("%w: unsupported extractor provider %q", ErrExtraction, cfg.Provider)
	}
}
