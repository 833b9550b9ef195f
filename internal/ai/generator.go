package ai

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultRetryBackoff = 1500 * time.Millisecond

// defaultFallbackMessages is the canned pool used when every candidate model
// has been exhausted.
var defaultFallbackMessages = []string{
	"I'm having trouble thinking right now. Try again later.",
	"AI service is busy. Please retry in a few seconds.",
	"Sorry, I'm having a short technical hiccup.",
}

// CompletionClient is the external text-completion collaborator.
type CompletionClient interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Reply is the outcome of a generation attempt. Fallback records whether the
// text came from the canned pool rather than a model call.
type Reply struct {
	Text     string
	Fallback bool
}

// GeneratorConfig describes the dependencies and tuning of the generator.
type GeneratorConfig struct {
	Client           CompletionClient
	Models           []string
	RetryBackoff     time.Duration
	FallbackMessages []string
	Logger           *zap.Logger
}

// Generator produces assistant replies with ordered model fallback. Its
// reliability contract: Generate never fails, total exhaustion degrades to a
// canned apology.
type Generator struct {
	client   CompletionClient
	models   []string
	backoff  time.Duration
	fallback []string
	logger   *zap.Logger
}

// NewGenerator constructs a Generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.Client == nil {
		return nil, errors.New("ai: completion client required")
	}
	if len(cfg.Models) == 0 {
		return nil, errors.New("ai: at least one candidate model required")
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	fallback := cfg.FallbackMessages
	if len(fallback) == 0 {
		fallback = defaultFallbackMessages
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:   cfg.Client,
		models:   cfg.Models,
		backoff:  backoff,
		fallback: fallback,
		logger:   logger,
	}, nil
}

// Generate asks each candidate model in order for a reply to the user prompt.
// A transient failure earns the candidate one retry after a fixed backoff; a
// permanent failure abandons the candidate immediately.
func (g *Generator) Generate(ctx context.Context, userPrompt string, pctx PromptContext) Reply {
	fullPrompt := buildPrompt(userPrompt, pctx)

	for _, model := range g.models {
		for attempt := 0; attempt < 2; attempt++ {
			text, err := g.client.Complete(ctx, model, fullPrompt)
			if err == nil {
				return Reply{Text: strings.TrimSpace(text)}
			}

			g.logger.Warn("generation attempt failed",
				zap.String("model", model),
				zap.Int("attempt", attempt+1),
				zap.Error(err))

			if !isTransient(err) {
				break
			}
			if attempt == 0 && !g.wait(ctx) {
				return g.cannedReply()
			}
		}
	}

	return g.cannedReply()
}

// wait blocks for the retry backoff. It returns false when the context was
// cancelled before the backoff elapsed.
func (g *Generator) wait(ctx context.Context) bool {
	timer := time.NewTimer(g.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (g *Generator) cannedReply() Reply {
	return Reply{
		Text:     g.fallback[rand.IntN(len(g.fallback))],
		Fallback: true,
	}
}

// isTransient classifies a completion failure. Rate limiting and server
// overload are retryable, as is anything that never produced an API response
// (network-level failure). Client-side API errors are permanent.
func isTransient(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}
