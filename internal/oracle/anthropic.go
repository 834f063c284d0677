package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-sonnet-4-20250514"
	anthropicVersion        = "2023-06-01"
	defaultMaxTokens        = 8000
)

type anthropicOracle struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	http      *http.Client
}

func newAnthropic(cfg Config) (Oracle, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("oracle: anthropic API key is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &anthropicOracle{
		apiKey:    apiKey,
		baseURL:   baseURL,
		model:     model,
		maxTokens: maxTokens,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

func (o *anthropicOracle) Name() string {
	return "anthropic"
}

type anthropicRequest struct {
	Model      string               `json:"model"`
	MaxTokens  int                  `json:"max_tokens"`
	System     string               `json:"system,omitempty"`
	Messages   []anthropicMessage   `json:"messages"`
	Tools      []anthropicTool      `json:"tools,omitempty"`
	ToolChoice *anthropicToolChoice `json:"tool_choice,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

// anthropicBlock is the union of the content block shapes the Messages
// API uses: text, tool_use, and tool_result.
type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
}

func (o *anthropicOracle) Complete(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}
	body := anthropicRequest{
		Model:     o.model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  anthropicMessages(req),
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Schema,
		})
	}
	if req.Force != "" {
		body.ToolChoice = &anthropicToolChoice{Type: "tool", Name: req.Force}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("oracle: encode anthropic request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-api-key", o.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("oracle: anthropic request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("oracle: anthropic request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("oracle: decode anthropic response: %w", err)
	}

	result := &Response{}
	for _, block := range out.Content {
		switch block.Type {
		case "text":
			result.Text += block.Text
		case "tool_use":
			result.Calls = append(result.Calls, ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			})
		}
	}
	return result, nil
}

// anthropicMessages replays the conversation: the opening user prompt,
// then per exchange an assistant message and, when the tools were
// answered, a user message carrying the tool results.
func anthropicMessages(req Request) []anthropicMessage {
	msgs := []anthropicMessage{{
		Role:    "user",
		Content: []anthropicBlock{{Type: "text", Text: req.Prompt}},
	}}
	for _, ex := range req.History {
		var blocks []anthropicBlock
		if ex.Text != "" {
			blocks = append(blocks, anthropicBlock{Type: "text", Text: ex.Text})
		}
		for _, call := range ex.Calls {
			blocks = append(blocks, anthropicBlock{
				Type:  "tool_use",
				ID:    call.ID,
				Name:  call.Name,
				Input: call.Input,
			})
		}
		if len(blocks) == 0 {
			continue
		}
		msgs = append(msgs, anthropicMessage{Role: "assistant", Content: blocks})

		if len(ex.Results) == 0 {
			continue
		}
		var results []anthropicBlock
		for _, r := range ex.Results {
			results = append(results, anthropicBlock{
				Type:      "tool_result",
				ToolUseID: r.CallID,
				Content:   r.Content,
				IsError:   r.IsError,
			})
		}
		msgs = append(msgs, anthropicMessage{Role: "user", Content: results})
	}
	return msgs
}

func init() {
	Register("anthropic", newAnthropic)
}
