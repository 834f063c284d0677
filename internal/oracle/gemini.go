package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

type geminiOracle struct {
	apiKey    string
	model     string
	maxTokens int
}

func newGemini(cfg Config) (Oracle, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("oracle: gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &geminiOracle{apiKey: apiKey, model: model, maxTokens: cfg.MaxTokens}, nil
}

func (o *geminiOracle) Name() string {
	return "gemini"
}

func (o *geminiOracle) Complete(ctx context.Context, req Request) (*Response, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  o.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}
	if len(req.Tools) > 0 {
		tool := &genai.Tool{}
		for _, t := range req.Tools {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  geminiSchema(t.Schema),
			})
		}
		config.Tools = []*genai.Tool{tool}
	}
	if req.Force != "" {
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{req.Force},
			},
		}
	}

	resp, err := client.Models.GenerateContent(ctx, o.model, geminiContents(req), config)
	if err != nil {
		return nil, fmt.Errorf("oracle: gemini request: %w", err)
	}

	result := &Response{}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return result, nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			result.Text += part.Text
		}
		if part.FunctionCall == nil {
			continue
		}
		input, err := json.Marshal(part.FunctionCall.Args)
		if err != nil {
			return nil, fmt.Errorf("oracle: encode %s args: %w", part.FunctionCall.Name, err)
		}
		result.Calls = append(result.Calls, ToolCall{
			ID:    part.FunctionCall.ID,
			Name:  part.FunctionCall.Name,
			Input: input,
		})
	}
	return result, nil
}

// geminiContents replays history as alternating user and model turns,
// with tool results as function responses.
func geminiContents(req Request) []*genai.Content {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.Prompt}},
	}}
	for _, ex := range req.History {
		var parts []*genai.Part
		if ex.Text != "" {
			parts = append(parts, &genai.Part{Text: ex.Text})
		}
		for _, call := range ex.Calls {
			args := map[string]any{}
			_ = json.Unmarshal(call.Input, &args)
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   call.ID,
				Name: call.Name,
				Args: args,
			}})
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: "model", Parts: parts})

		if len(ex.Results) == 0 {
			continue
		}
		var responses []*genai.Part
		for _, r := range ex.Results {
			responses = append(responses, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       r.CallID,
				Name:     r.Name,
				Response: map[string]any{"result": r.Content},
			}})
		}
		contents = append(contents, &genai.Content{Role: "user", Parts: responses})
	}
	return contents
}

// geminiSchema converts a JSON Schema object into the SDK's typed form.
// Only the subset our tools use is translated.
func geminiSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		switch t {
		case "object":
			s.Type = genai.TypeObject
		case "array":
			s.Type = genai.TypeArray
		case "string":
			s.Type = genai.TypeString
		case "number":
			s.Type = genai.TypeNumber
		case "integer":
			s.Type = genai.TypeInteger
		case "boolean":
			s.Type = genai.TypeBoolean
		}
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				s.Properties[name] = geminiSchema(sub)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = geminiSchema(items)
	}
	if required, ok := m["required"].([]string); ok {
		s.Required = required
	}
	return s
}

func init() {
	Register("gemini", newGemini)
}
