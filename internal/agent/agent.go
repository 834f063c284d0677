// Package agent implements natural language note discovery: a bounded
// conversation where the oracle iteratively runs DQL queries against the
// Note Store, inspects result summaries, and finalizes a set of notes.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/oracle"
)

const (
	// defaultMaxTurns bounds the refinement conversation.
	defaultMaxTurns = 8
	// detailLimit is the largest result set enumerated in full for the
	// model; above it only the count is reported.
	detailLimit = 20
	// encourageLimit is the result size at which the summary nudges the
	// model toward finalizing.
	encourageLimit = 15
	// autoSelectLimit caps how many notes may be promoted from the last
	// query when the model never finalizes.
	autoSelectLimit = 25

	turnMaxTokens = 3000
)

// Store runs raw DQL queries. Query errors must come back as errors with
// the server's message intact, so the model can correct its syntax.
type Store interface {
	Search(ctx context.Context, dql string) ([]models.Note, error)
}

// Config carries the deterministic guardrails applied on top of whatever
// the model queries.
type Config struct {
	Folders      []string
	ExcludedTags []string
	MaxTurns     int
}

// Agent drives the discovery conversation.
type Agent struct {
	oracle   oracle.Oracle
	store    Store
	folders  []string
	excluded []string
	maxTurns int
	logger   *slog.Logger
	now      func() time.Time
}

// New builds an Agent. A nil logger falls back to the default.
func New(o oracle.Oracle, store Store, cfg Config, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &Agent{
		oracle:   o,
		store:    store,
		folders:  cfg.Folders,
		excluded: cfg.ExcludedTags,
		maxTurns: maxTurns,
		logger:   logger,
		now:      time.Now,
	}
}

// FindNotes resolves a natural language request into vault notes. The
// model refines queries until it finalizes a selection or the turn
// budget runs out; on exhaustion the last result set is promoted when it
// is small enough, otherwise no notes are returned. Oracle failures
// abort the conversation.
func (a *Agent) FindNotes(ctx context.Context, request string) ([]models.Note, error) {
	prompt := oracle.BuildAgentPrompt(request, a.now(), a.folders)
	tools := []oracle.ToolDef{oracle.QueryTool(), oracle.FinalizeTool()}

	var (
		history     []oracle.Exchange
		lastResults []models.Note
		selected    []models.Note
		finalized   bool
	)

	for turn := 0; turn < a.maxTurns && !finalized; turn++ {
		resp, err := a.oracle.Complete(ctx, oracle.Request{
			System:    oracle.AgentSystem(),
			Prompt:    prompt,
			Tools:     tools,
			History:   history,
			MaxTokens: turnMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("agent: turn %d: %w", turn+1, err)
		}

		ex := oracle.Exchange{Text: resp.Text, Calls: resp.Calls}
		for _, call := range resp.Calls {
			switch call.Name {
			case oracle.ToolExecuteQuery:
				notes, result := a.runQuery(ctx, call)
				if notes != nil {
					lastResults = notes
				}
				ex.Results = append(ex.Results, result)
			case oracle.ToolFinalize:
				sel, result, ok := a.finalize(call, lastResults)
				ex.Results = append(ex.Results, result)
				if ok {
					selected = sel
					finalized = true
				}
			default:
				ex.Results = append(ex.Results, oracle.ToolResult{
					CallID:  call.ID,
					Name:    call.Name,
					Content: fmt.Sprintf("Unknown tool %q.", call.Name),
					IsError: true,
				})
			}
		}
		history = append(history, ex)
	}

	if len(selected) > 0 {
		return selected, nil
	}
	// An empty or missing selection falls back to the last result set
	// when it is small enough to process blindly.
	if n := len(lastResults); n > 0 && n <= autoSelectLimit {
		a.logger.Warn("agent: no usable selection, promoting last query results",
			slog.Int("notes", n))
		return lastResults, nil
	}
	a.logger.Warn("agent: no selection finalized and no suitable results")
	return nil, nil
}

// runQuery executes one execute_dql_query call. Query failures become
// error tool results so the model can retry; only a successful search
// replaces the tracked result set.
func (a *Agent) runQuery(ctx context.Context, call oracle.ToolCall) ([]models.Note, oracle.ToolResult) {
	result := oracle.ToolResult{CallID: call.ID, Name: call.Name}

	var args oracle.QueryArgs
	if err := json.Unmarshal(call.Input, &args); err != nil {
		result.Content = fmt.Sprintf("DQL Error: bad tool input: %v", err)
		result.IsError = true
		return nil, result
	}
	a.logger.Info("agent: running query",
		slog.String("reasoning", args.Reasoning),
		slog.String("query", args.Query))

	notes, err := a.store.Search(ctx, args.Query)
	if err != nil {
		a.logger.Warn("agent: query failed", slog.String("error", err.Error()))
		result.Content = fmt.Sprintf("DQL Error: %v", err)
		result.IsError = true
		return nil, result
	}

	notes = a.filter(notes)
	a.logger.Info("agent: query results", slog.Int("notes", len(notes)))
	result.Content = summarize(notes)
	return notes, result
}

// finalize resolves selected paths against the last result set. Paths
// the model never saw are dropped.
func (a *Agent) finalize(call oracle.ToolCall, last []models.Note) ([]models.Note, oracle.ToolResult, bool) {
	result := oracle.ToolResult{CallID: call.ID, Name: call.Name}

	var args oracle.FinalizeArgs
	if err := json.Unmarshal(call.Input, &args); err != nil {
		result.Content = fmt.Sprintf("Bad tool input: %v", err)
		result.IsError = true
		return nil, result, false
	}

	byPath := make(map[string]models.Note, len(last))
	for _, note := range last {
		byPath[note.Path] = note
	}
	var selected []models.Note
	for _, p := range args.SelectedPaths {
		if note, ok := byPath[p]; ok {
			selected = append(selected, note)
		}
	}
	a.logger.Info("agent: selection finalized",
		slog.String("reasoning", args.Reasoning),
		slog.Int("requested", len(args.SelectedPaths)),
		slog.Int("selected", len(selected)))
	result.Content = fmt.Sprintf("Selection finalized: %d notes will be processed.", len(selected))
	return selected, result, true
}

// filter applies the folder allow-list and excluded tags. The model's
// queries are advisory; this filter is not.
func (a *Agent) filter(notes []models.Note) []models.Note {
	out := make([]models.Note, 0, len(notes))
	for _, note := range notes {
		if !a.inFolders(note.Path) {
			continue
		}
		if a.hasExcludedTag(note) {
			continue
		}
		out = append(out, note)
	}
	return out
}

func (a *Agent) inFolders(path string) bool {
	if len(a.folders) == 0 {
		return true
	}
	for _, f := range a.folders {
		if strings.HasPrefix(path, strings.TrimSuffix(f, "/")+"/") {
			return true
		}
	}
	return false
}

func (a *Agent) hasExcludedTag(note models.Note) bool {
	for _, ex := range a.excluded {
		ex = strings.TrimPrefix(ex, "#")
		for _, tag := range note.Tags {
			if strings.TrimPrefix(tag, "#") == ex {
				return true
			}
		}
	}
	return false
}

// summarize renders a query result for the model: enumerated when small,
// a count with a nudge to narrow when large.
func summarize(notes []models.Note) string {
	switch n := len(notes); {
	case n == 0:
		return "No notes found matching this query."
	case n <= detailLimit:
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d notes:\n", n)
		for i, note := range notes {
			fmt.Fprintf(&b, "%d. %s (%s) - %d chars, tags: %s\n",
				i+1, note.Title(), note.Path, note.Size, strings.Join(note.Tags, ", "))
		}
		if n <= encourageLimit {
			b.WriteString("\nThis looks like a good set of results! Consider finalizing your selection if these notes match the request well.")
		}
		return b.String()
	default:
		return fmt.Sprintf("Found %d notes - this may be too many. Consider refining your query to be more specific.", n)
	}
}
