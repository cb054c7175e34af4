package categorize

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/finboard/backend/internal/model"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiCategorizer classifies descriptions with the Gemini API. It is always
// wrapped in a Chain; callers never see its errors directly.
type GeminiCategorizer struct {
	client    *genai.Client
	modelName string
}

// NewGeminiCategorizer creates the remote classifier. The API key is read
// from the environment by the genai client when apiKey is empty.
func NewGeminiCategorizer(ctx context.Context, apiKey string) (*GeminiCategorizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiCategorizer{client: client, modelName: defaultGeminiModel}, nil
}

// Categorize asks the model for a single category label out of the fixed
// vocabulary. Any transport error, empty response or out-of-vocabulary label
// is returned as an error so the chain can fall back.
func (g *GeminiCategorizer) Categorize(ctx context.Context, description string) (model.Category, error) {
	var vocab []string
	for _, c := range model.Categories {
		vocab = append(vocab, string(c))
	}

	prompt := "Classify this bank transaction description into exactly one of the " +
		"following categories:\n" + strings.Join(vocab, ", ") + "\n\n" +
		"Transaction: " + description + "\n\n" +
		"Respond with the category name only, nothing else."

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	label := model.Category(strings.TrimSpace(resp.Text()))
	if !model.ValidCategory(label) {
		return "", fmt.Errorf("model returned out-of-vocabulary label %q", label)
	}
	return label, nil
}
