package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simplexkg/internal/activity"
)

func TestNewUnsupportedProvider(t *testing.T) {
	_, err := New(Config{Provider: "bogus"})
	require.ErrorIs(t, err, ErrExtraction)
}

func TestNewGenAIRequiresAPIKey(t *testing.T) {
	_, err := New(Config{Provider: "genai", APIKey: ""})
	require.ErrorIs(t, err, ErrExtraction)
}

func TestOllamaExtractAlwaysFails(t *testing.T) {
	ext, err := New(Config{Provider: "ollama", OllamaEndpoint: "http://localhost:11434", OllamaModel: "embeddinggemma"})
	require.NoError(t, err)

	_, err = ext.Extract(context.Background(), activity.ParsedActivity{Type: activity.TypeSearched, Content: "golang"})
	assert.ErrorIs(t, err, ErrExtraction)
}
