package ai

import (
	"context"
	"net/http"

	"google.golang.org/genai"
)

// UnconfiguredClient stands in when no API key is provisioned. Every call
// fails permanently, so the generator answers from its canned pool without
// burning retry backoff.
type UnconfiguredClient struct{}

// Complete always fails.
func (UnconfiguredClient) Complete(context.Context, string, string) (string, error) {
	return "", genai.APIError{Code: http.StatusUnauthorized, Message: "generation service not configured"}
}
