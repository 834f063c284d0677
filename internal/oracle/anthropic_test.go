package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func anthropicTestServer(t *testing.T, respond any, capture *anthropicRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", req.URL.Path)
		}
		if req.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", req.Header.Get("x-api-key"))
		}
		if req.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("anthropic-version = %q", req.Header.Get("anthropic-version"))
		}
		if capture != nil {
			if err := json.NewDecoder(req.Body).Decode(capture); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(respond)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicComplete(t *testing.T) {
	respond := map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": "Extracting cards."},
			{"type": "tool_use", "id": "toolu_1", "name": ToolCreateFlashcards,
				"input": map[string]any{"flashcards": []map[string]string{{"front": "Q", "back": "A"}}}},
		},
		"stop_reason": "tool_use",
	}
	var got anthropicRequest
	srv := anthropicTestServer(t, respond, &got)

	o, err := New(Config{Provider: "anthropic", APIKey: "test-key", BaseURL: srv.URL, Model: "claude-sonnet-4-20250514"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := o.Complete(context.Background(), Request{
		System: "system text",
		Prompt: "user text",
		Tools:  []ToolDef{FlashcardTool()},
		Force:  ToolCreateFlashcards,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if got.Model != "claude-sonnet-4-20250514" || got.System != "system text" {
		t.Errorf("request model/system = %q/%q", got.Model, got.System)
	}
	if got.MaxTokens != defaultMaxTokens {
		t.Errorf("max_tokens = %d", got.MaxTokens)
	}
	if len(got.Tools) != 1 || got.Tools[0].Name != ToolCreateFlashcards {
		t.Errorf("tools = %+v", got.Tools)
	}
	if got.ToolChoice == nil || got.ToolChoice.Type != "tool" || got.ToolChoice.Name != ToolCreateFlashcards {
		t.Errorf("tool_choice = %+v", got.ToolChoice)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content[0].Text != "user text" {
		t.Errorf("messages = %+v", got.Messages)
	}

	if resp.Text != "Extracting cards." {
		t.Errorf("text = %q", resp.Text)
	}
	if len(resp.Calls) != 1 || resp.Calls[0].Name != ToolCreateFlashcards || resp.Calls[0].ID != "toolu_1" {
		t.Fatalf("calls = %+v", resp.Calls)
	}
	cards, err := ParseFlashcards(resp)
	if err != nil || len(cards) != 1 || cards[0].Front != "Q" {
		t.Errorf("cards = %v, %v", cards, err)
	}
}

func TestAnthropicHistoryReplay(t *testing.T) {
	respond := map[string]any{"content": []map[string]any{}, "stop_reason": "end_turn"}
	var got anthropicRequest
	srv := anthropicTestServer(t, respond, &got)

	o, err := New(Config{Provider: "anthropic", APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	history := []Exchange{{
		Text: "Trying a tag query first.",
		Calls: []ToolCall{{
			ID: "toolu_q1", Name: ToolExecuteQuery,
			Input: json.RawMessage(`{"query":"TABLE ...","reasoning":"tags"}`),
		}},
		Results: []ToolResult{{
			CallID: "toolu_q1", Name: ToolExecuteQuery,
			Content: "DQL Error: unknown field", IsError: true,
		}},
	}}
	if _, err := o.Complete(context.Background(), Request{Prompt: "find notes", History: history}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if len(got.Messages) != 3 {
		t.Fatalf("message count = %d", len(got.Messages))
	}
	asst := got.Messages[1]
	if asst.Role != "assistant" || len(asst.Content) != 2 {
		t.Fatalf("assistant turn = %+v", asst)
	}
	if asst.Content[0].Type != "text" || asst.Content[1].Type != "tool_use" || asst.Content[1].ID != "toolu_q1" {
		t.Errorf("assistant blocks = %+v", asst.Content)
	}
	res := got.Messages[2]
	if res.Role != "user" || res.Content[0].Type != "tool_result" {
		t.Fatalf("result turn = %+v", res)
	}
	if res.Content[0].ToolUseID != "toolu_q1" || !res.Content[0].IsError {
		t.Errorf("tool_result block = %+v", res.Content[0])
	}
}

func TestAnthropicErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error"}}`))
	}))
	t.Cleanup(srv.Close)

	o, err := New(Config{Provider: "anthropic", APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = o.Complete(context.Background(), Request{Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "rate_limit_error") {
		t.Errorf("err = %v", err)
	}
}
