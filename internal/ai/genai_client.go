package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

// GenAIClient adapts Google's Gemini API to the CompletionClient contract.
type GenAIClient struct {
	client *genai.Client
}

// NewGenAIClient constructs a Gemini-backed completion client.
func NewGenAIClient(ctx context.Context, apiKey string) (*GenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ai: api key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &GenAIClient{client: client}, nil
}

// Complete issues a single-shot generation call against the named model.
func (c *GenAIClient) Complete(ctx context.Context, model, prompt string) (string, error) {
	result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", errors.New("ai: empty completion")
	}
	return text, nil
}
