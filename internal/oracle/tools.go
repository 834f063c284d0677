package oracle

import (
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Tool names shared between prompts, providers, and parsers.
const (
	ToolCreateFlashcards = "create_flashcards"
	ToolExecuteQuery     = "execute_dql_query"
	ToolFinalize         = "finalize_note_selection"
)

// Candidate is one proposed card, as emitted by the create_flashcards
// tool before any rendering.
type Candidate struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Validate rejects candidates missing either side.
func (c Candidate) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Front, validation.Required),
		validation.Field(&c.Back, validation.Required),
	)
}

// FlashcardTool is the card emission tool. Generation requests force it
// so the model cannot answer in prose.
func FlashcardTool() ToolDef {
	return ToolDef{
		Name:        ToolCreateFlashcards,
		Description: "Create flashcards from note content with front (question) and back (answer)",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"flashcards": map[string]any{
					"type":        "array",
					"description": "Array of flashcards extracted from the note",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"front": map[string]any{
								"type":        "string",
								"description": "The question or prompt for the flashcard",
							},
							"back": map[string]any{
								"type":        "string",
								"description": "The answer or information for the flashcard",
							},
						},
						"required": []string{"front", "back"},
					},
				},
			},
			"required": []string{"flashcards"},
		},
	}
}

// QueryTool lets the discovery agent run a DQL query and observe a
// summary of the matches.
func QueryTool() ToolDef {
	return ToolDef{
		Name:        ToolExecuteQuery,
		Description: "Execute a DQL query against the vault and observe a summary of the matching notes",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The DQL query to execute",
				},
				"reasoning": map[string]any{
					"type":        "string",
					"description": "Why this query should find the requested notes",
				},
			},
			"required": []string{"query", "reasoning"},
		},
	}
}

// FinalizeTool ends the discovery conversation with a chosen note set.
func FinalizeTool() ToolDef {
	return ToolDef{
		Name:        ToolFinalize,
		Description: "Finalize the set of notes to process once query results match the request",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"selected_paths": map[string]any{
					"type":        "array",
					"description": "Paths of the selected notes, taken from the latest query results",
					"items":       map[string]any{"type": "string"},
				},
				"reasoning": map[string]any{
					"type":        "string",
					"description": "Why these notes satisfy the request",
				},
			},
			"required": []string{"selected_paths", "reasoning"},
		},
	}
}

// QueryArgs is the input of execute_dql_query.
type QueryArgs struct {
	Query     string `json:"query"`
	Reasoning string `json:"reasoning"`
}

// FinalizeArgs is the input of finalize_note_selection.
type FinalizeArgs struct {
	SelectedPaths []string `json:"selected_paths"`
	Reasoning     string   `json:"reasoning"`
}

// ParseFlashcards extracts candidates from the create_flashcards call in
// resp. Candidates missing a side are dropped rather than failing the
// whole batch; a response without the call yields none.
func ParseFlashcards(resp *Response) ([]Candidate, error) {
	for _, call := range resp.Calls {
		if call.Name != ToolCreateFlashcards {
			continue
		}
		var args struct {
			Flashcards []Candidate `json:"flashcards"`
		}
		if err := json.Unmarshal(call.Input, &args); err != nil {
			return nil, fmt.Errorf("oracle: decode %s input: %w", ToolCreateFlashcards, err)
		}
		cards := make([]Candidate, 0, len(args.Flashcards))
		for _, c := range args.Flashcards {
			if c.Validate() != nil {
				continue
			}
			cards = append(cards, c)
		}
		return cards, nil
	}
	return nil, nil
}
