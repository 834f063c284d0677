package oracle

import (
	"fmt"
	"strings"
	"time"
)

const systemNotes = `You are an expert at creating high-quality flashcards for spaced repetition learning. Your job is to analyze note content and extract key information that would be valuable for long-term retention.

FLASHCARD CREATION GUIDELINES:
1. Focus on factual information, definitions, concepts, and relationships
2. Create clear, specific questions that test understanding
3. Keep answers concise but complete
4. Avoid overly obvious or trivial information
5. Look for information that would benefit from spaced repetition
6. Create the requested number of flashcards when specified, otherwise 1-3 per note

GOOD FLASHCARD EXAMPLES:
- Front: "What is the primary function of mitochondria?" Back: "Generate ATP (energy) for cellular processes"
- Front: "Who developed the concept of 'deliberate practice'?" Back: "Anders Ericsson"
- Front: "What are the three pillars of observability?" Back: "Metrics, logs, and traces"

AVOID:
- Questions with yes/no answers unless conceptually important
- Information that's too specific/detailed to be useful
- Duplicate concepts across multiple cards
- Questions that require external context not in the note

Analyze the provided note content and extract the most valuable information as flashcards using the create_flashcards tool.`

const systemTargeted = `You are an expert at extracting specific information from notes to create targeted flashcards. Your job is to analyze the provided note content and create flashcards that specifically address the user's query within the context of that note.

TARGETED EXTRACTION GUIDELINES:
1. Focus ONLY on information in the note that relates to the user's query
2. Extract specific examples, syntax, or concepts that answer the query
3. If the note doesn't contain relevant information, create fewer or no cards
4. Prioritize practical, actionable information over theory
5. Create the requested number of flashcards when specified, otherwise 1-3 per note

Analyze the note content and extract information specifically related to the user's query using the create_flashcards tool.`

const systemTopic = `You are an expert at creating high-quality flashcards based on user queries. Your job is to generate educational flashcards that help users learn and remember information about their specific query.

QUERY-BASED FLASHCARD GUIDELINES:
1. Create flashcards that directly address the user's query
2. Include fundamental concepts, definitions, and practical examples
3. Break complex topics into digestible pieces
4. Focus on information that benefits from spaced repetition
5. Create the requested number of flashcards when specified, otherwise 2-4 per query

Generate educational flashcards based on the user's query using the create_flashcards tool.`

const systemAgent = `You are a note discovery agent for a personal knowledge vault. You find the notes that best match a natural language request by iteratively running Dataview DQL queries and inspecting the results.

QUERY FORMAT:
Every query MUST start with exactly this projection so results can be parsed:

TABLE file.name AS "filename", file.path AS "path", file.mtime AS "mtime", file.size AS "size", file.tags AS "tags" FROM ""

Append WHERE and SORT clauses to narrow and order the results.

USEFUL DQL PATTERNS:
- contains(file.tags, "#topic") matches notes carrying a tag
- startswith(file.path, "folder/") restricts to a folder
- contains(lower(file.name), "term") matches a name substring
- file.mtime >= date(today) - dur(7 days) finds recently modified notes
- file.size > 500 skips stub notes

PROCESS:
1. Start with a reasonable query for the request.
2. Inspect the result summary. Refine the query if it matches too many
   notes, too few, or the wrong ones.
3. When the results match the request, call finalize_note_selection with
   the paths to process. Select paths only from results you have seen.

Prefer finalizing a good set over endless refinement. If a query returns
an error, fix the syntax and try again.`

// NoteSystem returns the system prompt for note extraction. A non-empty
// topic switches to targeted extraction.
func NoteSystem(topic string) string {
	if topic != "" {
		return systemTargeted
	}
	return systemNotes
}

// TopicSystem returns the system prompt for query-only generation.
func TopicSystem() string {
	return systemTopic
}

// AgentSystem returns the system prompt for the discovery agent.
func AgentSystem() string {
	return systemAgent
}

// CardExample is an existing deck card shown to the model as a style
// reference.
type CardExample struct {
	Front string
	Back  string
}

// NotePrompt carries everything a note extraction prompt needs.
type NotePrompt struct {
	Title    string
	Content  string
	Topic    string
	Target   int
	Previous []string
	Examples []CardExample
}

// BuildNotePrompt renders the user prompt for extracting cards from a
// note, optionally focused on a topic.
func BuildNotePrompt(p NotePrompt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Note Title: %s\n", p.Title)
	if p.Topic != "" {
		fmt.Fprintf(&b, "Query: %s\n", p.Topic)
	}
	fmt.Fprintf(&b, "\nNote Content:\n%s", p.Content)
	b.WriteString(dedupContext(p.Previous, "note"))
	b.WriteString(styleContext(p.Examples))
	if p.Topic != "" {
		fmt.Fprintf(&b, "\n\nPlease analyze this note and extract information specifically related to the query %q. %s only for information in the note that directly addresses or relates to this query.",
			p.Topic, cardInstruction(p.Target, "Create 1-3 flashcards"))
	} else {
		fmt.Fprintf(&b, "\n\nPlease analyze this note and %s for the key information that would be valuable for spaced repetition learning.",
			strings.ToLower(cardInstruction(p.Target, "create 1-3 flashcards")))
	}
	return b.String()
}

// TopicPrompt carries everything a query-only prompt needs.
type TopicPrompt struct {
	Topic    string
	Target   int
	Previous []string
	Examples []CardExample
}

// BuildTopicPrompt renders the user prompt for generating cards about a
// topic with no source note.
func BuildTopicPrompt(p TopicPrompt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User Query: %s\n", p.Topic)
	fmt.Fprintf(&b, "\nPlease %s to help someone learn about this topic. Focus on the most important concepts, definitions, and practical information related to this query.",
		strings.ToLower(cardInstruction(p.Target, "create 2-4 flashcards")))
	b.WriteString(dedupContext(p.Previous, "deck"))
	b.WriteString(styleContext(p.Examples))
	return b.String()
}

// BuildAgentPrompt renders the opening user prompt for the discovery
// agent, anchoring it to today's date and the allowed folders.
func BuildAgentPrompt(request string, now time.Time, folders []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Natural language request: %s", request)
	fmt.Fprintf(&b, "\n\nToday's date is %s.", now.Format("2006-01-02"))
	if len(folders) > 0 {
		fmt.Fprintf(&b, "\n\nIMPORTANT: Only search in these folders: %s. Add folder filtering to your WHERE clause using startswith(file.path, \"folder/\").",
			strings.Join(folders, ", "))
	}
	b.WriteString("\n\nFind the most relevant notes for this request using DQL queries. Start with an initial query, analyze the results, and refine as needed.")
	return b.String()
}

func cardInstruction(target int, fallback string) string {
	if target > 0 {
		return fmt.Sprintf("Create approximately %d flashcards", target)
	}
	return fallback
}

// dedupContext lists previously generated fronts so the model avoids
// repeating them. Scope names what the fronts belong to.
func dedupContext(previous []string, scope string) string {
	if len(previous) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n\nIMPORTANT: We have previously created the following flashcards for this %s:\n", scope)
	for _, front := range previous {
		fmt.Fprintf(&b, "- %s\n", front)
	}
	b.WriteString("\nDO NOT create flashcards that ask similar questions or cover the same concepts as the ones listed above. Focus on different aspects of the content.")
	return b.String()
}

// styleContext shows existing deck cards so new ones blend in.
func styleContext(examples []CardExample) string {
	if len(examples) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nIMPORTANT FORMATTING REQUIREMENTS:")
	b.WriteString("\nYou MUST generate flashcards that strongly mirror the style and formatting of these existing cards from the deck:")
	b.WriteString("\n\nEXISTING CARD EXAMPLES:")
	for i, ex := range examples {
		fmt.Fprintf(&b, "\n\nExample %d:\nFront: %s\nBack: %s", i+1, ex.Front, ex.Back)
	}
	b.WriteString("\n\nYour new flashcards MUST follow the same:")
	b.WriteString("\n- Question/answer structure and style")
	b.WriteString("\n- Level of detail and complexity")
	b.WriteString("\n- Formatting patterns (code blocks, emphasis, etc.)")
	b.WriteString("\n- Length and conciseness")
	b.WriteString("\nGenerate cards that would fit seamlessly with these examples.")
	return b.String()
}
