package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/postinlab/postin-api/internal/ai"
	"github.com/postinlab/postin-api/internal/notify"
)

func TestRealtimeStreamEmitsNotificationEvents(t *testing.T) {
	env := newRouterEnv(t, ai.Reply{Text: "unused"})

	server := httptest.NewServer(env.handler)
	t.Cleanup(server.Close)

	recorder := env.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"email": "alice@example.com", "username": "alice", "password": "s3cret",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("registration returned %d: %s", recorder.Code, recorder.Body.String())
	}
	var registered struct {
		ID string `json:"id"`
	}
	decodeJSON(t, recorder, &registered)

	token := env.registerAndLoginExisting(t, "alice@example.com")

	streamRequest, err := http.NewRequest(http.MethodGet, server.URL+"/api/realtime/stream?access_token="+token, http.NoBody)
	if err != nil {
		t.Fatalf("failed to construct stream request: %v", err)
	}
	streamResponse, err := http.DefaultClient.Do(streamRequest)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() { _ = streamResponse.Body.Close() })
	if streamResponse.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status %d", streamResponse.StatusCode)
	}
	if contentType := streamResponse.Header.Get("Content-Type"); contentType != "text/event-stream" {
		t.Fatalf("unexpected content type %q", contentType)
	}

	// The handler subscribes asynchronously, so republish until the stream
	// yields the event.
	publishCtx, stopPublishing := context.WithCancel(context.Background())
	t.Cleanup(stopPublishing)
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			_ = env.broker.Publish(publishCtx, notify.Event{
				ID:        "n-1",
				UserID:    registered.ID,
				Kind:      notify.KindComment,
				Message:   `bob commented on your post: "Launch day"`,
				PostID:    "post-1",
				ActorName: "bob",
			})
			select {
			case <-publishCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	deadline := time.After(5 * time.Second)

	streamReader := bufio.NewReader(streamResponse.Body)
	currentEventType := ""
	type readResult struct {
		line string
		err  error
	}
	for {
		resultCh := make(chan readResult, 1)
		go func() {
			line, err := streamReader.ReadString('\n')
			resultCh <- readResult{line: line, err: err}
		}()
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a realtime event")
		case result := <-resultCh:
			if result.err != nil {
				t.Fatalf("failed to read stream: %v", result.err)
			}
			line := strings.TrimSpace(result.line)
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}
			if strings.HasPrefix(line, "event:") {
				currentEventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			if currentEventType != realtimeEventNotification {
				continue
			}
			var event notify.Event
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				t.Fatalf("failed to decode event payload: %v", err)
			}
			if event.ID != "n-1" || event.UserID != registered.ID || event.Kind != notify.KindComment {
				t.Fatalf("unexpected event %+v", event)
			}
			return
		}
	}
}

// registerAndLoginExisting logs in an account registered earlier in the test.
func (env *routerEnv) registerAndLoginExisting(t *testing.T, email string) string {
	t.Helper()
	recorder := env.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": email, "password": "s3cret",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", recorder.Code, recorder.Body.String())
	}
	var login loginResponsePayload
	decodeJSON(t, recorder, &login)
	return login.AccessToken
}
