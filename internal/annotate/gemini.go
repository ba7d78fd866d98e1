package annotate

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Gemini wraps one genai client shared by every classifier built from it.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// ClassifierFor builds a classifier pinned to one ruleset's system prompt.
func (g *Gemini) ClassifierFor(systemPrompt string) Classifier {
	return &GeminiClassifier{client: g.client, model: g.model, system: systemPrompt}
}

// GeminiClassifier asks a Gemini model for the label. The system prompt pins
// the model to the ruleset's two answers; temperature 0 and a tiny output
// budget keep responses terse and cheap.
type GeminiClassifier struct {
	client *genai.Client
	model  string
	system string
}

func (g *GeminiClassifier) Classify(ctx context.Context, title, text string) (string, error) {
	contents := genai.Text(fmt.Sprintf("Title: %s\nContent: %s", title, text))
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		MaxOutputTokens:   16,
	})
	if err != nil {
		return "", fmt.Errorf("gemini classification failed: %w", err)
	}
	answer := result.Text()
	if answer == "" {
		return "", errors.New("empty classification response")
	}
	return answer, nil
}

// Disabled returns a classifier that fails every call. Wired when no API key
// is configured so every label resolves to "unknown" instead of hanging.
func Disabled() Classifier {
	return disabledClassifier{}
}

type disabledClassifier struct{}

func (disabledClassifier) Classify(context.Context, string, string) (string, error) {
	return "", errors.New("classifier disabled: no API key configured")
}
