// Package oracle abstracts the Generation Oracle: a tool-calling LLM that
// turns notes into flashcard candidates and drives the note discovery
// agent. Providers register themselves by name and are selected through
// configuration, so the rest of the system never sees a vendor API.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Config selects and parameterizes a provider.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// ToolDef describes a function the model may call. Schema is a JSON
// Schema object; providers translate it into their native format.
type ToolDef struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult carries a tool's output back to the model. IsError marks
// recoverable failures the model should react to, such as a bad query.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Exchange is one completed model turn: what it said, the calls it made,
// and the results it was given. Request.History replays exchanges in
// order, so a conversation is just a growing slice of them.
type Exchange struct {
	Text    string
	Calls   []ToolCall
	Results []ToolResult
}

// Request is a single completion: system and user prompt, the tools on
// offer, and any prior exchanges. Force names a tool the model must
// call; empty lets it choose freely.
type Request struct {
	System    string
	Prompt    string
	Tools     []ToolDef
	Force     string
	History   []Exchange
	MaxTokens int
}

// Response is the model's output for one turn.
type Response struct {
	Text  string
	Calls []ToolCall
}

// Oracle is a tool-calling LLM provider.
type Oracle interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Factory builds a provider from config.
type Factory func(cfg Config) (Oracle, error)

var registry = map[string]Factory{}

// Register adds a provider factory under name. Providers call this from
// their init functions.
func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

// New builds the provider named by cfg.Provider.
func New(cfg Config) (Oracle, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if key == "" {
		return nil, fmt.Errorf("oracle: provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("oracle: unsupported provider %q", cfg.Provider)
	}
	return factory(cfg)
}
