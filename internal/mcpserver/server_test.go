package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/jera/internal/ledger"
	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/oracle"
	"github.com/starford/jera/internal/sampling"
)

type fakeStore struct {
	notes    []models.Note
	contents map[string]string
}

func (f *fakeStore) Search(ctx context.Context, dql string) ([]models.Note, error) {
	return f.notes, nil
}

func (f *fakeStore) SampleCandidates(ctx context.Context, days, minSize int, folders, excluded []string) ([]models.Note, error) {
	return f.notes, nil
}

func (f *fakeStore) NoteContent(ctx context.Context, path string) (string, error) {
	content, ok := f.contents[path]
	if !ok {
		return "", fmt.Errorf("missing note %s", path)
	}
	return content, nil
}

type fakeOracle struct {
	mu       sync.Mutex
	requests []oracle.Request
	respond  func(req oracle.Request) (*oracle.Response, error)
}

func (f *fakeOracle) Name() string { return "fake" }

func (f *fakeOracle) Complete(ctx context.Context, req oracle.Request) (*oracle.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(req)
	}
	return &oracle.Response{}, nil
}

func (f *fakeOracle) lastRequest(t *testing.T) oracle.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("oracle was never called")
	}
	return f.requests[len(f.requests)-1]
}

func cardsResponse(t *testing.T, fronts ...string) *oracle.Response {
	t.Helper()
	cards := make([]map[string]string, 0, len(fronts))
	for _, front := range fronts {
		cards = append(cards, map[string]string{"front": front, "back": "A: " + front})
	}
	input, err := json.Marshal(map[string]any{"flashcards": cards})
	if err != nil {
		t.Fatal(err)
	}
	return &oracle.Response{Calls: []oracle.ToolCall{{
		ID:    "call_1",
		Name:  oracle.ToolCreateFlashcards,
		Input: input,
	}}}
}

func testNote(path string, tags ...string) models.Note {
	return models.NewNote(path, "", 500, tags, time.Now().AddDate(0, 0, -60))
}

func testLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	led, err := ledger.Load(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatal(err)
	}
	return led
}

func testServer(t *testing.T, store *fakeStore, orc *fakeOracle, led *ledger.Ledger) *Server {
	t.Helper()
	if store == nil {
		store = &fakeStore{}
	}
	if orc == nil {
		orc = &fakeOracle{}
	}
	return New(store, orc, led, sampling.DefaultSchema(), Config{
		DaysOld:     30,
		MinNoteSize: 100,
	})
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "sample_notes":
		result, err = srv.sampleNotes(ctx, req)
	case "generate_flashcards":
		result, err = srv.generateFlashcards(ctx, req)
	case "flashcard_history":
		result, err = srv.flashcardHistory(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSearchNotes(t *testing.T) {
	store := &fakeStore{notes: []models.Note{
		testNote("notes/Alpha.md", "#go"),
		testNote("notes/Beta.md"),
	}}
	srv := testServer(t, store, nil, nil)

	r := callTool(t, srv, "search_notes", map[string]interface{}{
		"query": `TABLE file.name FROM ""`,
	})
	text := resultText(r)
	if !strings.Contains(text, "notes/Alpha.md") || !strings.Contains(text, "notes/Beta.md") {
		t.Errorf("search result = %q", text)
	}
}

func TestSearchNotesEmpty(t *testing.T) {
	srv := testServer(t, &fakeStore{}, nil, nil)
	r := callTool(t, srv, "search_notes", map[string]interface{}{"query": "TABLE"})
	if got := resultText(r); got != "no notes matched" {
		t.Errorf("result = %q", got)
	}
}

func TestSearchNotesMissingQuery(t *testing.T) {
	srv := testServer(t, nil, nil, nil)
	r := callTool(t, srv, "search_notes", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing query")
	}
}

func TestSampleNotesCount(t *testing.T) {
	store := &fakeStore{notes: []models.Note{
		testNote("a.md"), testNote("b.md"), testNote("c.md"), testNote("d.md"),
	}}
	srv := testServer(t, store, nil, nil)

	r := callTool(t, srv, "sample_notes", map[string]interface{}{"count": float64(2)})
	var picked []models.Note
	if err := json.Unmarshal([]byte(resultText(r)), &picked); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if len(picked) != 2 {
		t.Errorf("sampled %d notes, want 2", len(picked))
	}
}

func TestSampleNotesSkipsExcludedTags(t *testing.T) {
	store := &fakeStore{notes: []models.Note{
		testNote("keep.md"),
		testNote("skip.md", "#private"),
	}}
	srv := testServer(t, store, nil, nil)
	srv.schema.Exclude("private")

	r := callTool(t, srv, "sample_notes", map[string]interface{}{"count": float64(5)})
	text := resultText(r)
	if strings.Contains(text, "skip.md") {
		t.Errorf("excluded note was sampled: %q", text)
	}
	if !strings.Contains(text, "keep.md") {
		t.Errorf("eligible note missing: %q", text)
	}
}

func TestGenerateFlashcards(t *testing.T) {
	store := &fakeStore{contents: map[string]string{
		"notes/Go.md": "Goroutines are lightweight threads managed by the runtime.",
	}}
	orc := &fakeOracle{respond: func(req oracle.Request) (*oracle.Response, error) {
		return cardsResponse(t, "What are goroutines?", "Who schedules goroutines?"), nil
	}}
	srv := testServer(t, store, orc, nil)

	r := callTool(t, srv, "generate_flashcards", map[string]interface{}{
		"path":  "notes/Go.md",
		"count": float64(4),
	})
	text := resultText(r)
	if !strings.Contains(text, "What are goroutines?") {
		t.Errorf("result = %q", text)
	}

	req := orc.lastRequest(t)
	if !strings.Contains(req.Prompt, "lightweight threads") {
		t.Error("prompt should include the note content")
	}
	if !strings.Contains(req.Prompt, "approximately 4 flashcards") {
		t.Errorf("prompt should carry the card target, got %q", req.Prompt)
	}
	if req.Force != oracle.ToolCreateFlashcards {
		t.Errorf("force = %q", req.Force)
	}
}

func TestGenerateFlashcardsMissingNote(t *testing.T) {
	srv := testServer(t, &fakeStore{contents: map[string]string{}}, &fakeOracle{}, nil)
	r := callTool(t, srv, "generate_flashcards", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
	if !strings.Contains(resultText(r), "not found") {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestFlashcardHistory(t *testing.T) {
	led := testLedger(t)
	if err := led.RecordInsertion("notes/Go.md", 500, 2, []string{"Q1", "Q2"}); err != nil {
		t.Fatal(err)
	}
	srv := testServer(t, nil, nil, led)

	r := callTool(t, srv, "flashcard_history", map[string]interface{}{"path": "notes/Go.md"})
	text := resultText(r)
	if !strings.Contains(text, `"total_cards": 2`) {
		t.Errorf("entry result = %q", text)
	}

	r = callTool(t, srv, "flashcard_history", map[string]interface{}{})
	text = resultText(r)
	if !strings.Contains(text, `"cards": 2`) {
		t.Errorf("summary result = %q", text)
	}

	r = callTool(t, srv, "flashcard_history", map[string]interface{}{"path": "unknown.md"})
	if got := resultText(r); got != "no history for unknown.md" {
		t.Errorf("result = %q", got)
	}
}

func TestFlashcardHistoryUnavailable(t *testing.T) {
	srv := testServer(t, nil, nil, nil)
	r := callTool(t, srv, "flashcard_history", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error when the ledger is unavailable")
	}
}
