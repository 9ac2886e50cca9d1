package extractor

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"simplexkg/internal/activity"
	"simplexkg/internal/logging"
)

const extractionPromptTemplate = `Extract entities and relationships from this activity.

Activity type: %s
Content: %s

Rules:
- Extract concrete entities (people, places, organizations, products, concepts).
- For search queries, extract the main topics/concepts being searched.
- For visited/viewed titles, extract identifiable entities from the title.
- Relationships should capture semantic connections between extracted entities.
- Common relationship types: located_in, is_a, related_to, part_of, about.

Return only entities and relationships that are clearly present.`

// genaiExtractor backs both halves of the Extractor contract with a single
// google.golang.org/genai client: EmbedContent for embeddings, GenerateContent
// with a JSON response schema for entity/relationship extraction.
type genaiExtractor struct {
	client *genai.Client
	model  string
}

func newGenAIExtractor(apiKey, model string) (*genaiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: genai api key is required", ErrExtraction)
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("%w: create genai client: %v", ErrExtraction, err)
	}

	logging.Embedding("genai extractor created: model=%s", model)
	return &genaiExtractor{client: client, model: model}, nil
}

func (e *genaiExtractor) Embed(ctx context.Context, text string) ([]float32, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "genai.Embed")
	defer timer.Stop()

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	dims := int32(3072)
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: genai embed: %v", ErrExtraction, err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: genai embed returned no vectors", ErrExtraction)
	}
	return result.Embeddings[0].Values, nil
}

func (e *genaiExtractor) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	dims := int32(3072)
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: genai batch embed: %v", ErrExtraction, err)
	}
	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

func (e *genaiExtractor) Dimensions() int { return 3072 }

func (e *genaiExtractor) Name() string { return fmt.Sprintf("genai:%s", e.model) }

// extractionSchema constrains GenerateContent's JSON output to exactly the
// ExtractionResult shape, so parsing never has to tolerate free-form prose.
var extractionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"entities": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
		"relationships": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"subject":   {Type: genai.TypeString},
					"predicate": {Type: genai.TypeString},
					"object":    {Type: genai.TypeString},
				},
				Required: []string{"subject", "predicate", "object"},
			},
		},
	},
	Required: []string{"entities", "relationships"},
}

func (e *genaiExtractor) Extract(ctx context.Context, act activity.ParsedActivity) (ExtractionResult, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "genai.Extract")
	defer timer.Stop()

	if act.Content == "" {
		return ExtractionResult{}, nil
	}

	prompt := fmt.Sprintf(extractionPromptTemplate, act.Type, act.Content)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := e.client.Models.GenerateContent(ctx, "gemini-2.0-flash", contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   extractionSchema,
	})
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("%w: genai extract: %v", ErrExtraction, err)
	}

	text := resp.Text()
	if text == "" {
		return ExtractionResult{}, fmt.Errorf("%w: genai extract returned empty response", ErrExtraction)
	}

	var result ExtractionResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return ExtractionResult{}, fmt.Errorf("%w: malformed extraction response: %v", ErrExtraction, err)
	}
	return result, nil
}
