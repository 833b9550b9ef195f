package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/postinlab/postin-api/internal/ai"
	"github.com/postinlab/postin-api/internal/auth"
	"github.com/postinlab/postin-api/internal/comments"
	"github.com/postinlab/postin-api/internal/communities"
	"github.com/postinlab/postin-api/internal/ids"
	"github.com/postinlab/postin-api/internal/notify"
	"github.com/postinlab/postin-api/internal/posts"
	"github.com/postinlab/postin-api/internal/users"
)

type stubGenerator struct {
	reply ai.Reply
}

func (g stubGenerator) Generate(context.Context, string, ai.PromptContext) ai.Reply {
	return g.reply
}

type routerEnv struct {
	handler http.Handler
	db      *gorm.DB
	broker  *notify.Broker
}

func newRouterEnv(t *testing.T, reply ai.Reply) *routerEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:postin_server_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	err = db.AutoMigrate(
		&users.User{}, &users.Profile{},
		&posts.Post{}, &posts.Like{},
		&comments.Comment{},
		&communities.Community{}, &communities.Member{},
		&notify.Notification{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	idProvider := ids.NewUUIDProvider()
	userService, err := users.NewService(users.ServiceConfig{Database: db, IDProvider: idProvider})
	if err != nil {
		t.Fatalf("failed to construct user service: %v", err)
	}
	botManager := users.NewBotManager(userService, nil)
	postService, err := posts.NewService(posts.ServiceConfig{Database: db, IDProvider: idProvider})
	if err != nil {
		t.Fatalf("failed to construct post service: %v", err)
	}
	pipeline, err := comments.NewPipeline(comments.PipelineConfig{
		Database:   db,
		IDProvider: idProvider,
		Generator:  stubGenerator{reply: reply},
		Bots:       botManager,
	})
	if err != nil {
		t.Fatalf("failed to construct pipeline: %v", err)
	}
	communityService, err := communities.NewService(communities.ServiceConfig{Database: db, IDProvider: idProvider})
	if err != nil {
		t.Fatalf("failed to construct community service: %v", err)
	}
	notificationService, err := notify.NewService(db)
	if err != nil {
		t.Fatalf("failed to construct notification service: %v", err)
	}

	tokens := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("router-test-secret"),
		Issuer:        "postin-auth",
		Audience:      "postin-api",
		TokenTTL:      time.Hour,
	})

	broker := notify.NewBroker()
	handler, err := NewHTTPHandler(Dependencies{
		Tokens:        tokens,
		Users:         userService,
		Posts:         postService,
		Comments:      pipeline,
		Communities:   communityService,
		Notifications: notificationService,
		Broker:        broker,
	})
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}

	return &routerEnv{handler: handler, db: db, broker: broker}
}

func (env *routerEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeJSON(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %s: %v", recorder.Body.String(), err)
	}
}

func (env *routerEnv) registerAndLogin(t *testing.T, email, username string) string {
	t.Helper()

	recorder := env.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"email": email, "username": username, "password": "s3cret",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("registration returned %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = env.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": email, "password": "s3cret",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", recorder.Code, recorder.Body.String())
	}

	var login loginResponsePayload
	decodeJSON(t, recorder, &login)
	if login.AccessToken == "" || login.TokenType != "Bearer" {
		t.Fatalf("unexpected login response %+v", login)
	}
	return login.AccessToken
}

func TestRegisterLoginFlow(t *testing.T) {
	env := newRouterEnv(t, ai.Reply{Text: "unused"})

	token := env.registerAndLogin(t, "alice@example.com", "alice")
	if token == "" {
		t.Fatalf("expected a bearer token")
	}

	// Duplicate registration conflicts.
	recorder := env.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"email": "alice@example.com", "username": "other", "password": "x",
	})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", recorder.Code)
	}

	// Bad credentials are rejected.
	recorder = env.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad credentials, got %d", recorder.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newRouterEnv(t, ai.Reply{Text: "unused"})

	recorder := env.do(t, http.MethodGet, "/api/posts", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", recorder.Code)
	}

	recorder = env.do(t, http.MethodGet, "/api/posts", "garbage-token", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", recorder.Code)
	}
}

func TestCommentEndpointReturnsBotReplyOnMention(t *testing.T) {
	env := newRouterEnv(t, ai.Reply{Text: "Tentu, ini ringkasannya."})
	token := env.registerAndLogin(t, "alice@example.com", "alice")

	recorder := env.do(t, http.MethodPost, "/api/posts", token, map[string]string{
		"title": "Launch day", "content": "We shipped it.",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("post creation returned %d: %s", recorder.Code, recorder.Body.String())
	}
	var post posts.Post
	decodeJSON(t, recorder, &post)

	recorder = env.do(t, http.MethodPost, "/api/posts/"+post.ID+"/comments", token, map[string]string{
		"content": "@bot summarize this",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("comment returned %d: %s", recorder.Code, recorder.Body.String())
	}

	var response commentResponsePayload
	decodeJSON(t, recorder, &response)
	if response.UserComment.Content != "@bot summarize this" {
		t.Fatalf("unexpected user comment %+v", response.UserComment)
	}
	if response.BotComment == nil {
		t.Fatalf("expected a bot comment in the response")
	}
	if response.BotComment.Content != "Tentu, ini ringkasannya." {
		t.Fatalf("unexpected bot comment %+v", response.BotComment)
	}

	var bot users.User
	if err := env.db.Where("email = ?", users.BotEmail).First(&bot).Error; err != nil {
		t.Fatalf("expected the bot identity to exist: %v", err)
	}
	if response.BotComment.UserID != bot.ID {
		t.Fatalf("bot comment attributed to %s, want %s", response.BotComment.UserID, bot.ID)
	}
}

func TestCommentEndpointWithoutMentionOmitsBot(t *testing.T) {
	env := newRouterEnv(t, ai.Reply{Text: "unused"})
	token := env.registerAndLogin(t, "alice@example.com", "alice")

	recorder := env.do(t, http.MethodPost, "/api/posts", token, map[string]string{
		"title": "Launch day",
	})
	var post posts.Post
	decodeJSON(t, recorder, &post)

	recorder = env.do(t, http.MethodPost, "/api/posts/"+post.ID+"/comments", token, map[string]string{
		"content": "nice post!",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("comment returned %d: %s", recorder.Code, recorder.Body.String())
	}

	var response commentResponsePayload
	decodeJSON(t, recorder, &response)
	if response.BotComment != nil {
		t.Fatalf("expected no bot comment, got %+v", response.BotComment)
	}

	// Empty bodies and unknown posts both surface as invalid comments.
	recorder = env.do(t, http.MethodPost, "/api/posts/"+post.ID+"/comments", token, map[string]string{
		"content": "   ",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty comment, got %d", recorder.Code)
	}
	recorder = env.do(t, http.MethodPost, "/api/posts/missing/comments", token, map[string]string{
		"content": "hello",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown post, got %d", recorder.Code)
	}
}

func TestPostLifecycleOverHTTP(t *testing.T) {
	env := newRouterEnv(t, ai.Reply{Text: "unused"})
	aliceToken := env.registerAndLogin(t, "alice@example.com", "alice")
	bobToken := env.registerAndLogin(t, "bob@example.com", "bob")

	recorder := env.do(t, http.MethodPost, "/api/posts", aliceToken, map[string]string{
		"title": "Launch day", "content": "We shipped it.",
	})
	var post posts.Post
	decodeJSON(t, recorder, &post)

	recorder = env.do(t, http.MethodPost, "/api/posts/"+post.ID+"/like", bobToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("like returned %d: %s", recorder.Code, recorder.Body.String())
	}
	var likeResponse struct {
		Liked bool `json:"liked"`
	}
	decodeJSON(t, recorder, &likeResponse)
	if !likeResponse.Liked {
		t.Fatalf("expected the first toggle to like")
	}

	recorder = env.do(t, http.MethodGet, "/api/posts/"+post.ID, bobToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("post lookup returned %d: %s", recorder.Code, recorder.Body.String())
	}

	// Only the owner may delete.
	recorder = env.do(t, http.MethodDelete, "/api/posts/"+post.ID, bobToken, nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign delete, got %d", recorder.Code)
	}
	recorder = env.do(t, http.MethodDelete, "/api/posts/"+post.ID, aliceToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("owner delete returned %d: %s", recorder.Code, recorder.Body.String())
	}
	recorder = env.do(t, http.MethodGet, "/api/posts/"+post.ID, aliceToken, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", recorder.Code)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	env := newRouterEnv(t, ai.Reply{Text: "unused"})
	token := env.registerAndLogin(t, "alice@example.com", "alice")

	recorder := env.do(t, http.MethodPut, "/api/profile", token, map[string]string{
		"bio": "hello", "location": "Jakarta",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("profile update returned %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = env.do(t, http.MethodGet, "/api/profile", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("profile lookup returned %d: %s", recorder.Code, recorder.Body.String())
	}
	var profile users.Profile
	decodeJSON(t, recorder, &profile)
	if profile.Bio != "hello" || profile.Location != "Jakarta" {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestCommunityRoutes(t *testing.T) {
	env := newRouterEnv(t, ai.Reply{Text: "unused"})
	aliceToken := env.registerAndLogin(t, "alice@example.com", "alice")
	bobToken := env.registerAndLogin(t, "bob@example.com", "bob")

	recorder := env.do(t, http.MethodPost, "/api/communities", aliceToken, map[string]interface{}{
		"name": "Gophers", "description": "Go talk", "is_public": true,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("community creation returned %d: %s", recorder.Code, recorder.Body.String())
	}
	var community communities.Community
	decodeJSON(t, recorder, &community)

	recorder = env.do(t, http.MethodPost, "/api/communities/"+community.ID+"/join", bobToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("join returned %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = env.do(t, http.MethodGet, "/api/communities", bobToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("community listing returned %d: %s", recorder.Code, recorder.Body.String())
	}
	var listing struct {
		Communities []communities.Summary `json:"communities"`
	}
	decodeJSON(t, recorder, &listing)
	if len(listing.Communities) != 1 || listing.Communities[0].MemberCount != 2 {
		t.Fatalf("unexpected listing %+v", listing)
	}
}
