// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes jera's vault and generation tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jera/internal/ledger"
	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/oracle"
	"github.com/starford/jera/internal/sampling"
)

// Store is the vault surface the tools need.
type Store interface {
	Search(ctx context.Context, dql string) ([]models.Note, error)
	NoteContent(ctx context.Context, path string) (string, error)
	SampleCandidates(ctx context.Context, days, minSize int, folders, excludedTags []string) ([]models.Note, error)
}

// Config carries the sampling defaults the tools inherit from the app.
type Config struct {
	Folders      []string
	DaysOld      int
	MinNoteSize  int
	BiasStrength float64
}

// Server wraps the MCP server with jera tools.
type Server struct {
	mcp    *server.MCPServer
	store  Store
	oracle oracle.Oracle
	led    *ledger.Ledger
	schema *sampling.Schema
	cfg    Config
	rng    *rand.Rand
}

// New creates a new MCP server with all jera tools registered. led may
// be nil when the history file is unreadable; history-dependent answers
// degrade accordingly.
func New(store Store, o oracle.Oracle, led *ledger.Ledger, schema *sampling.Schema, cfg Config) *Server {
	if schema == nil {
		schema = sampling.DefaultSchema()
	}
	s := &Server{
		store:  store,
		oracle: o,
		led:    led,
		schema: schema,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	s.mcp = server.NewMCPServer(
		"Jera",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Run a Dataview DQL query against the vault and return matching notes."),
		mcp.WithString("query", mcp.Required(),
			mcp.Description(`Dataview DQL query, e.g. TABLE file.name FROM "" WHERE contains(file.tags, "#go")`)),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("sample_notes",
		mcp.WithDescription("Pick random vault notes using jera's tag-weighted, density-biased sampling. "+
			"Notes that already produced many flashcards are picked less often."),
		mcp.WithNumber("count", mcp.Description("How many notes to sample (default 3)")),
	), s.sampleNotes)

	s.mcp.AddTool(mcp.NewTool("generate_flashcards",
		mcp.WithDescription("Generate flashcard candidates from one vault note. "+
			"Returns front/back pairs as JSON without inserting them anywhere."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path of the note (e.g. folder/note.md)")),
		mcp.WithNumber("count", mcp.Description("Approximate number of cards to request")),
	), s.generateFlashcards)

	s.mcp.AddTool(mcp.NewTool("flashcard_history",
		mcp.WithDescription("Inspect how many flashcards notes have already produced."),
		mcp.WithString("path", mcp.Description("Vault path for one note's history; omit for aggregate statistics")),
	), s.flashcardHistory)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.store.Search(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(notes) == 0 {
		return mcp.NewToolResultText("no notes matched"), nil
	}
	out, _ := json.MarshalIndent(notes, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) sampleNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count := 3
	if n, err := req.RequireInt("count"); err == nil && n > 0 {
		count = n
	}

	candidates, err := s.store.SampleCandidates(ctx, s.cfg.DaysOld, s.cfg.MinNoteSize, s.cfg.Folders, s.schema.Excluded)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	eligible := make([]models.Note, 0, len(candidates))
	for _, n := range candidates {
		if !s.schema.IsExcluded(n.Tags) {
			eligible = append(eligible, n)
		}
	}
	if len(eligible) == 0 {
		return mcp.NewToolResultText("no eligible notes in the vault"), nil
	}

	var hist sampling.HistorySource
	if s.led != nil {
		hist = s.led
	}
	weigher := sampling.NewWeigher(s.schema, hist, s.cfg.BiasStrength)
	picked := sampling.Sample(s.rng, eligible, count, weigher.SamplingWeight)

	out, _ := json.MarshalIndent(picked, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) generateFlashcards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target := 0
	if n, err := req.RequireInt("count"); err == nil && n > 0 {
		target = n
	}

	content, err := s.store.NoteContent(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	if strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError(fmt.Sprintf("note is empty: %s", path)), nil
	}
	note := models.NewNote(path, "", len(content), nil, time.Time{})
	note.SetContent(content)

	var previous []string
	if s.led != nil {
		previous = s.led.PreviousFronts(path)
	}

	resp, err := s.oracle.Complete(ctx, oracle.Request{
		System: oracle.NoteSystem(""),
		Prompt: oracle.BuildNotePrompt(oracle.NotePrompt{
			Title:    note.Title(),
			Content:  note.Content,
			Target:   target,
			Previous: previous,
		}),
		Tools: []oracle.ToolDef{oracle.FlashcardTool()},
		Force: oracle.ToolCreateFlashcards,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cards, err := oracle.ParseFlashcards(resp)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(cards) == 0 {
		return mcp.NewToolResultText("no flashcards generated"), nil
	}
	out, _ := json.MarshalIndent(cards, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) flashcardHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.led == nil {
		return mcp.NewToolResultError("history unavailable"), nil
	}

	path := ""
	if p, err := req.RequireString("path"); err == nil {
		path = p
	}

	if path == "" {
		out, _ := json.MarshalIndent(s.led.Summary(), "", "  ")
		return mcp.NewToolResultText(string(out)), nil
	}

	entry, ok := s.led.Entry(path)
	if !ok {
		return mcp.NewToolResultText(fmt.Sprintf("no history for %s", path)), nil
	}
	out, _ := json.MarshalIndent(entry, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
