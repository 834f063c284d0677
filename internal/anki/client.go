// Package anki is the Flashcard Store client, speaking the AnkiConnect
// JSON-RPC-style protocol: one POST per action with a result/error envelope.
package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/models"
)

// apiVersion is the minimum AnkiConnect protocol version; createDeck and
// per-item addNotes results both require it.
const apiVersion = 6

// markerTag labels every card this tool creates so users can find or
// bulk-edit them inside Anki.
const markerTag = "jera"

// Config carries the AnkiConnect endpoint settings.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client issues AnkiConnect actions.
type Client struct {
	url  string
	http *http.Client
}

// NewClient builds a Client from config.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:  cfg.URL,
		http: &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

type reply struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// call posts one action and decodes the result into out when non-nil.
func (c *Client) call(ctx context.Context, action string, params, out any) error {
	body, err := json.Marshal(envelope{Action: action, Version: apiVersion, Params: params})
	if err != nil {
		return fmt.Errorf("anki: encode %s: %w", action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("anki: %s: %w: %w", action, apperr.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("anki: %s returned %s", action, resp.Status)
	}

	var r reply
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("anki: decode %s response: %w", action, err)
	}
	if r.Error != nil && *r.Error != "" {
		return fmt.Errorf("anki: %s: %s", action, *r.Error)
	}
	if out != nil {
		if err := json.Unmarshal(r.Result, out); err != nil {
			return fmt.Errorf("anki: decode %s result: %w", action, err)
		}
	}
	return nil
}

// Ping verifies AnkiConnect is reachable and recent enough.
func (c *Client) Ping(ctx context.Context) error {
	var version int
	if err := c.call(ctx, "version", nil, &version); err != nil {
		return err
	}
	if version < apiVersion {
		return fmt.Errorf("anki: AnkiConnect version %d is below required %d", version, apiVersion)
	}
	return nil
}

// DeckNames lists all decks.
func (c *Client) DeckNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.call(ctx, "deckNames", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// EnsureDeck creates the deck if absent; createDeck is idempotent.
func (c *Client) EnsureDeck(ctx context.Context, name string) error {
	return c.call(ctx, "createDeck", map[string]any{"deck": name}, nil)
}

type noteParam struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Tags      []string          `json:"tags"`
	Options   noteOptions       `json:"options"`
}

type noteOptions struct {
	AllowDuplicate bool `json:"allowDuplicate"`
}

// AddCards inserts cards into deck using the given note type. AnkiConnect
// reports per-item failures as null IDs; the successfully inserted cards
// and the failure count are returned together.
func (c *Client) AddCards(ctx context.Context, deck, model string, cards []models.Flashcard) ([]models.Flashcard, int, error) {
	if len(cards) == 0 {
		return nil, 0, nil
	}

	notes := make([]noteParam, 0, len(cards))
	for _, card := range cards {
		notes = append(notes, noteParam{
			DeckName:  deck,
			ModelName: model,
			Fields: map[string]string{
				"Front": card.Front,
				"Back":  withProvenance(card),
			},
			Tags:    cardTags(card),
			Options: noteOptions{AllowDuplicate: false},
		})
	}

	var ids []*int64
	if err := c.call(ctx, "addNotes", map[string]any{"notes": notes}, &ids); err != nil {
		return nil, 0, err
	}

	var added []models.Flashcard
	failed := 0
	for i, id := range ids {
		if i >= len(cards) {
			break
		}
		if id == nil {
			failed++
			continue
		}
		added = append(added, cards[i])
	}
	return added, failed, nil
}

// CardFronts returns the Front field of every note in deck, used as
// negative examples for deduplication.
func (c *Client) CardFronts(ctx context.Context, deck string) ([]string, error) {
	infos, err := c.deckNotes(ctx, deck)
	if err != nil {
		return nil, err
	}
	fronts := make([]string, 0, len(infos))
	for _, info := range infos {
		if f, ok := info.Fields["Front"]; ok {
			fronts = append(fronts, f.Value)
		}
	}
	return fronts, nil
}

// CardSample is an existing deck card used as a style example.
type CardSample struct {
	Front string
	Back  string
}

// CardSamples returns up to n existing cards from deck so the oracle can
// mirror the deck's phrasing style.
func (c *Client) CardSamples(ctx context.Context, deck string, n int) ([]CardSample, error) {
	infos, err := c.deckNotes(ctx, deck)
	if err != nil {
		return nil, err
	}
	samples := make([]CardSample, 0, n)
	for _, info := range infos {
		if len(samples) >= n {
			break
		}
		front, okF := info.Fields["Front"]
		back, okB := info.Fields["Back"]
		if !okF || !okB {
			continue
		}
		samples = append(samples, CardSample{Front: front.Value, Back: back.Value})
	}
	return samples, nil
}

type noteInfo struct {
	NoteID int64                `json:"noteId"`
	Fields map[string]noteField `json:"fields"`
}

type noteField struct {
	Value string `json:"value"`
	Order int    `json:"order"`
}

func (c *Client) deckNotes(ctx context.Context, deck string) ([]noteInfo, error) {
	var ids []int64
	if err := c.call(ctx, "findNotes", map[string]any{"query": deckQuery(deck)}, &ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var infos []noteInfo
	if err := c.call(ctx, "notesInfo", map[string]any{"notes": ids}, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// DeckStat summarizes a deck for the deck admin command.
type DeckStat struct {
	Name   string `json:"name"`
	NewCnt int    `json:"new_count"`
	Learn  int    `json:"learn_count"`
	Review int    `json:"review_count"`
	Total  int    `json:"total_in_deck"`
	DeckID int64  `json:"deck_id"`
}

// DeckStats fetches per-deck statistics keyed by deck name.
func (c *Client) DeckStats(ctx context.Context, decks []string) (map[string]DeckStat, error) {
	var raw map[string]DeckStat
	if err := c.call(ctx, "getDeckStats", map[string]any{"decks": decks}, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]DeckStat, len(raw))
	for _, st := range raw {
		out[st.Name] = st
	}
	return out, nil
}

// RenameDeck moves every card from old into a fresh deck named new and
// removes the then-empty old deck.
func (c *Client) RenameDeck(ctx context.Context, oldName, newName string) error {
	names, err := c.DeckNames(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, n := range names {
		if n == oldName {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("anki: deck %q: %w", oldName, apperr.ErrNotFound)
	}

	if err := c.EnsureDeck(ctx, newName); err != nil {
		return err
	}

	var cardIDs []int64
	if err := c.call(ctx, "findCards", map[string]any{"query": deckQuery(oldName)}, &cardIDs); err != nil {
		return err
	}
	if len(cardIDs) > 0 {
		if err := c.call(ctx, "changeDeck", map[string]any{"cards": cardIDs, "deck": newName}, nil); err != nil {
			return err
		}
	}
	// Old deck is empty now; cardsToo is safe.
	return c.call(ctx, "deleteDecks", map[string]any{"decks": []string{oldName}, "cardsToo": true}, nil)
}

func deckQuery(deck string) string {
	return fmt.Sprintf("deck:%q", deck)
}

// withProvenance appends an obsidian:// back-link when the card has an
// owning note.
func withProvenance(card models.Flashcard) string {
	if card.NotePath == "" {
		return card.Back
	}
	link := "obsidian://open?file=" + url.QueryEscape(card.NotePath)
	return fmt.Sprintf(`%s<br><br><a href="%s">%s</a>`, card.Back, link, card.Title)
}

// cardTags normalizes tags for Anki: no spaces, no hash prefix, plus the
// marker tag.
func cardTags(card models.Flashcard) []string {
	tags := make([]string, 0, len(card.Tags)+1)
	for _, t := range card.Tags {
		t = strings.TrimPrefix(t, "#")
		t = strings.ReplaceAll(t, " ", "_")
		if t != "" {
			tags = append(tags, t)
		}
	}
	return append(tags, markerTag)
}
