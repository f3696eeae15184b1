package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jkaninda/kazi/internal/chat"
	"github.com/jkaninda/kazi/internal/llm"
	"github.com/jkaninda/kazi/internal/ratelimit"
	"github.com/jkaninda/kazi/internal/task"
	"github.com/jkaninda/kazi/internal/tools"
	"github.com/jkaninda/kazi/internal/tools/taskops"
)

// cannedProvider replays one fixed text response.
type cannedProvider struct {
	content string
}

func (p *cannedProvider) Name() string { return "canned" }

func (p *cannedProvider) SendMessage(_ context.Context, _ *llm.Request) (*llm.Response, error) {
	return &llm.Response{
		Content:       p.content,
		ContentBlocks: []llm.ContentBlock{llm.TextBlock(p.content)},
		StopReason:    "end_turn",
	}, nil
}

func testGateway(t *testing.T, limiter *ratelimit.Limiter) *Gateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := task.NewInMemoryStore()
	reg := tools.NewRegistry()
	taskops.RegisterAll(reg, store, logger)
	dispatcher := tools.NewDispatcher(reg, 4)

	root, err := chat.NewHierarchy(dispatcher)
	if err != nil {
		t.Fatalf("building hierarchy: %v", err)
	}

	convs := chat.NewInMemoryConversationStore()
	runtime := chat.NewRuntime(&cannedProvider{content: "Done!"}, root, convs, logger)

	cfg := Config{
		ListenAddr: ":0",
		APIKeys:    map[string]string{"test-key": "u1"},
	}
	return NewGateway(cfg, store, convs, runtime, limiter, logger)
}

func chatRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer test-key")
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestChat_RequiresAuth(t *testing.T) {
	g := testGateway(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	g.handleChat(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestChat_RejectsEmptyMessage(t *testing.T) {
	g := testGateway(t, nil)

	rec := httptest.NewRecorder()
	g.handleChat(rec, chatRequest(`{"message":""}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChat_CreatesConversationAndPersistsExchange(t *testing.T) {
	g := testGateway(t, nil)

	rec := httptest.NewRecorder()
	g.handleChat(rec, chatRequest(`{"message":"add a task to buy milk"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.ConversationID == "" {
		t.Fatal("expected a conversation_id")
	}
	if !resp.Success || resp.Response != "Done!" {
		t.Errorf("response = %+v", resp)
	}

	// Both sides of the exchange are stored, user first.
	convs, err := g.convs.ListConversations(context.Background(), "u1")
	if err != nil || len(convs) != 1 {
		t.Fatalf("conversations = %v, err = %v", convs, err)
	}
	msgs, err := g.convs.ListMessages(context.Background(), "u1", convs[0].ID)
	if err != nil {
		t.Fatalf("listing messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("messages = %+v", msgs)
	}
	if convs[0].Title != "add a task to buy milk" {
		t.Errorf("title = %q", convs[0].Title)
	}
}

func TestChat_RejectsOversizedMessage(t *testing.T) {
	g := testGateway(t, nil)

	body, _ := json.Marshal(map[string]string{"message": strings.Repeat("a", maxMessageChars+1)})
	rec := httptest.NewRecorder()
	g.handleChat(rec, chatRequest(string(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "1000 characters") {
		t.Errorf("body = %s", rec.Body.String())
	}

	// Exactly at the cap is fine. The cap counts characters, so a
	// multi-byte message of maxMessageChars runes passes too.
	body, _ = json.Marshal(map[string]string{"message": strings.Repeat("ä", maxMessageChars)})
	rec = httptest.NewRecorder()
	g.handleChat(rec, chatRequest(string(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("at-cap status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestChat_ConversationCeilingIs400(t *testing.T) {
	g := testGateway(t, nil)

	ctx := context.Background()
	for i := 0; i < chat.MaxConversationsPerUser; i++ {
		if _, err := g.convs.CreateConversation(ctx, "u1", "t"); err != nil {
			t.Fatalf("seeding conversation %d: %v", i, err)
		}
	}

	rec := httptest.NewRecorder()
	g.handleChat(rec, chatRequest(`{"message":"hi"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "conversation limit") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

// storeInspectingProvider records how many messages the conversation
// store holds at the moment the model is called.
type storeInspectingProvider struct {
	convs      chat.ConversationStore
	userID     string
	seenStored int
}

func (p *storeInspectingProvider) Name() string { return "inspecting" }

func (p *storeInspectingProvider) SendMessage(ctx context.Context, _ *llm.Request) (*llm.Response, error) {
	convs, err := p.convs.ListConversations(ctx, p.userID)
	if err == nil && len(convs) == 1 {
		if msgs, err := p.convs.ListMessages(ctx, p.userID, convs[0].ID); err == nil {
			p.seenStored = len(msgs)
		}
	}
	return &llm.Response{
		Content:       "ok",
		ContentBlocks: []llm.ContentBlock{llm.TextBlock("ok")},
		StopReason:    "end_turn",
	}, nil
}

func TestChat_UserMessageStoredBeforeModelRuns(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := task.NewInMemoryStore()
	reg := tools.NewRegistry()
	taskops.RegisterAll(reg, store, logger)
	dispatcher := tools.NewDispatcher(reg, 4)

	root, err := chat.NewHierarchy(dispatcher)
	if err != nil {
		t.Fatal(err)
	}
	convs := chat.NewInMemoryConversationStore()
	provider := &storeInspectingProvider{convs: convs, userID: "u1"}
	runtime := chat.NewRuntime(provider, root, convs, logger)

	cfg := Config{ListenAddr: ":0", APIKeys: map[string]string{"test-key": "u1"}}
	g := NewGateway(cfg, store, convs, runtime, nil, logger)

	rec := httptest.NewRecorder()
	g.handleChat(rec, chatRequest(`{"message":"add a task"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	// The user message must already be stored when the model is invoked,
	// so a dropped connection cannot lose the question.
	if provider.seenStored != 1 {
		t.Errorf("stored messages at model time = %d, want 1", provider.seenStored)
	}
}

func TestChat_UnknownConversationIs404(t *testing.T) {
	g := testGateway(t, nil)

	rec := httptest.NewRecorder()
	g.handleChat(rec, chatRequest(`{"message":"hi","conversation_id":"6be32a11-3b0e-4687-a44e-1a3f4c7e8a5b"}`))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestChat_RateLimitHeaders(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{Requests: 2})
	g := testGateway(t, limiter)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		g.handleChat(rec, chatRequest(`{"message":"hi"}`))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("limit header = %q", rec.Header().Get("X-RateLimit-Limit"))
		}
	}

	rec := httptest.NewRecorder()
	g.handleChat(rec, chatRequest(`{"message":"hi"}`))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("remaining header = %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("expected a reset header")
	}
}

func TestChatStream_FrameSequence(t *testing.T) {
	g := testGateway(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream", strings.NewReader(`{"message":"add a task to water the plants"}`))
	req.Header.Set("Authorization", "Bearer test-key")
	rec := httptest.NewRecorder()
	g.handleChatStream(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	var frames []streamFrame
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f streamFrame
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f); err != nil {
			t.Fatalf("bad frame %q: %v", line, err)
		}
		frames = append(frames, f)
	}

	if len(frames) < 3 {
		t.Fatalf("expected at least 3 frames, got %+v", frames)
	}
	if frames[0].Type != "conversation_created" || frames[0].ConversationID == "" {
		t.Errorf("first frame = %+v", frames[0])
	}
	if frames[1].Type != "agent_change" {
		t.Errorf("second frame = %+v", frames[1])
	}

	last := frames[len(frames)-1]
	if last.Type != "done" {
		t.Fatalf("last frame = %+v", last)
	}
	if last.Content != "Done!" || last.MessageID == "" {
		t.Errorf("done frame = %+v", last)
	}

	// Token frames concatenate to the done content.
	var tokens strings.Builder
	for _, f := range frames {
		if f.Type == "token" {
			tokens.WriteString(f.Content)
		}
	}
	if tokens.String() != last.Content {
		t.Errorf("tokens = %q, done = %q", tokens.String(), last.Content)
	}
}

func TestParseTaskFilter(t *testing.T) {
	filter, err := parseTaskFilter(map[string][]string{
		"completed": {"true"},
		"priority":  {"high"},
		"tag":       {"home", "errands"},
		"sort_by":   {"due_date"},
		"order":     {"desc"},
	})
	if err != nil {
		t.Fatalf("parseTaskFilter: %v", err)
	}
	if filter.Completed == nil || !*filter.Completed {
		t.Error("completed filter not set")
	}
	if string(filter.Priority) != "High" {
		t.Errorf("priority = %q", filter.Priority)
	}
	if len(filter.Tags) != 2 || filter.Tags[0] != "home" || filter.Tags[1] != "errands" {
		t.Errorf("tags = %v", filter.Tags)
	}
	if filter.SortBy != "due_date" || !filter.SortDesc {
		t.Errorf("filter = %+v", filter)
	}

	if _, err := parseTaskFilter(map[string][]string{"completed": {"maybe"}}); err == nil {
		t.Error("expected error for bad completed value")
	}
	if _, err := parseTaskFilter(map[string][]string{"sort_by": {"color"}}); err == nil {
		t.Error("expected error for bad sort key")
	}
}
