package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/genai"
)

type call struct {
	Model  string
	Prompt string
}

// scriptedClient returns one scripted outcome per call, in order.
type scriptedClient struct {
	outcomes []outcome
	calls    []call
}

type outcome struct {
	text string
	err  error
}

func (c *scriptedClient) Complete(_ context.Context, model, prompt string) (string, error) {
	c.calls = append(c.calls, call{Model: model, Prompt: prompt})
	if len(c.outcomes) == 0 {
		return "", errors.New("unexpected call")
	}
	next := c.outcomes[0]
	c.outcomes = c.outcomes[1:]
	return next.text, next.err
}

func newTestGenerator(t *testing.T, client CompletionClient, models []string) *Generator {
	t.Helper()
	generator, err := NewGenerator(GeneratorConfig{
		Client:       client,
		Models:       models,
		RetryBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to construct generator: %v", err)
	}
	return generator
}

func TestGenerateFirstCandidateSucceeds(t *testing.T) {
	client := &scriptedClient{outcomes: []outcome{{text: "  hello there  "}}}
	generator := newTestGenerator(t, client, []string{"model-a", "model-b"})

	reply := generator.Generate(context.Background(), "hi", PromptContext{PostTitle: "t", PostContent: "c"})
	if reply.Fallback {
		t.Fatalf("expected a model reply, got fallback")
	}
	if reply.Text != "hello there" {
		t.Fatalf("expected trimmed reply, got %q", reply.Text)
	}
	if len(client.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(client.calls))
	}
}

func TestGenerateRetriesTransientOnceThenFallsThrough(t *testing.T) {
	transient := genai.APIError{Code: 503, Message: "overloaded"}
	client := &scriptedClient{outcomes: []outcome{
		{err: transient},
		{err: transient},
		{text: "answer from b"},
	}}
	generator := newTestGenerator(t, client, []string{"model-a", "model-b"})

	reply := generator.Generate(context.Background(), "hi", PromptContext{})
	if reply.Fallback || reply.Text != "answer from b" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	wantModels := []string{"model-a", "model-a", "model-b"}
	if len(client.calls) != len(wantModels) {
		t.Fatalf("expected %d calls, got %d", len(wantModels), len(client.calls))
	}
	for i, want := range wantModels {
		if client.calls[i].Model != want {
			t.Fatalf("call %d used model %s, want %s", i, client.calls[i].Model, want)
		}
	}
}

func TestGeneratePermanentErrorSkipsRetry(t *testing.T) {
	permanent := genai.APIError{Code: 400, Message: "bad request"}
	client := &scriptedClient{outcomes: []outcome{
		{err: permanent},
		{text: "answer from b"},
	}}
	generator := newTestGenerator(t, client, []string{"model-a", "model-b"})

	reply := generator.Generate(context.Background(), "hi", PromptContext{})
	if reply.Fallback || reply.Text != "answer from b" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if len(client.calls) != 2 {
		t.Fatalf("permanent failure must not be retried, got %d calls", len(client.calls))
	}
	if client.calls[1].Model != "model-b" {
		t.Fatalf("expected second call against model-b, got %s", client.calls[1].Model)
	}
}

func TestGenerateNetworkErrorIsTransient(t *testing.T) {
	client := &scriptedClient{outcomes: []outcome{
		{err: errors.New("connection reset")},
		{text: "recovered"},
	}}
	generator := newTestGenerator(t, client, []string{"model-a"})

	reply := generator.Generate(context.Background(), "hi", PromptContext{})
	if reply.Fallback || reply.Text != "recovered" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if len(client.calls) != 2 {
		t.Fatalf("expected a retry of the same candidate, got %d calls", len(client.calls))
	}
}

func TestGenerateExhaustionReturnsCannedReply(t *testing.T) {
	permanent := genai.APIError{Code: 401, Message: "unauthorized"}
	client := &scriptedClient{outcomes: []outcome{
		{err: permanent},
		{err: permanent},
	}}
	generator := newTestGenerator(t, client, []string{"model-a", "model-b"})

	reply := generator.Generate(context.Background(), "hi", PromptContext{})
	if !reply.Fallback {
		t.Fatalf("expected fallback reply, got %+v", reply)
	}
	found := false
	for _, canned := range defaultFallbackMessages {
		if reply.Text == canned {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("reply %q is not a member of the canned pool", reply.Text)
	}
}

func TestGenerateCancelledBackoffDegrades(t *testing.T) {
	transient := genai.APIError{Code: 429, Message: "rate limited"}
	client := &scriptedClient{outcomes: []outcome{{err: transient}}}
	generator, err := NewGenerator(GeneratorConfig{
		Client:       client,
		Models:       []string{"model-a"},
		RetryBackoff: time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to construct generator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reply := generator.Generate(ctx, "hi", PromptContext{})
	if !reply.Fallback {
		t.Fatalf("expected fallback after cancelled backoff, got %+v", reply)
	}
	if len(client.calls) != 1 {
		t.Fatalf("cancelled backoff must not retry, got %d calls", len(client.calls))
	}
}

func TestGeneratePassesAssembledPrompt(t *testing.T) {
	client := &scriptedClient{outcomes: []outcome{{text: "ok"}}}
	generator := newTestGenerator(t, client, []string{"model-a"})

	pctx := PromptContext{
		PostTitle:        "Launch day",
		PostContent:      "We shipped it.",
		PreviousComments: "alice: first!",
	}
	generator.Generate(context.Background(), "summarize this", pctx)

	if len(client.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(client.calls))
	}
	want := buildPrompt("summarize this", pctx)
	if client.calls[0].Prompt != want {
		t.Fatalf("prompt mismatch:\n%s\nwant:\n%s", client.calls[0].Prompt, want)
	}
}
