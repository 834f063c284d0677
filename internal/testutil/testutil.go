// Package testutil provides in-memory fakes of the vault and flashcard
// store HTTP APIs for integration style tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// VaultNote is one note served by FakeVault.
type VaultNote struct {
	Path    string
	Content string
	Tags    []string
	ModTime time.Time
}

// FakeVault emulates the Obsidian Local REST API. Search requests
// return every note regardless of the query body; tests assert
// selection behavior through what the caller does with the results.
type FakeVault struct {
	mu      sync.Mutex
	notes   []VaultNote
	queries []string
	srv     *httptest.Server
}

// NewFakeVault starts a fake vault server that shuts down with the test.
func NewFakeVault(t *testing.T, notes ...VaultNote) *FakeVault {
	t.Helper()
	f := &FakeVault{notes: notes}

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","authenticated":true}`))
	})
	r.Post("/search/", f.search)
	r.Get("/vault/*", f.noteContent)

	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

// URL returns the server base URL.
func (f *FakeVault) URL() string { return f.srv.URL }

// Queries returns every search body received so far.
func (f *FakeVault) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.queries...)
}

func (f *FakeVault) search(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	f.mu.Lock()
	f.queries = append(f.queries, string(body))
	notes := append([]VaultNote{}, f.notes...)
	f.mu.Unlock()

	type result struct {
		Path     string   `json:"path"`
		Filename string   `json:"filename"`
		MTime    int64    `json:"mtime"`
		Size     int      `json:"size"`
		Tags     []string `json:"tags"`
	}
	type row struct {
		Filename string `json:"filename"`
		Result   result `json:"result"`
	}

	rows := make([]row, 0, len(notes))
	for _, n := range notes {
		name := strings.TrimSuffix(path.Base(n.Path), ".md")
		mt := n.ModTime
		if mt.IsZero() {
			mt = time.Now().AddDate(0, 0, -60)
		}
		rows = append(rows, row{
			Filename: name,
			Result: result{
				Path:     n.Path,
				Filename: name,
				MTime:    mt.UnixMilli(),
				Size:     len(n.Content),
				Tags:     n.Tags,
			},
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

func (f *FakeVault) noteContent(w http.ResponseWriter, req *http.Request) {
	p := strings.TrimPrefix(req.URL.Path, "/vault/")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notes {
		if n.Path == p {
			w.Header().Set("Content-Type", "text/markdown")
			_, _ = w.Write([]byte(n.Content))
			return
		}
	}
	http.NotFound(w, req)
}

// AnkiCard is one card stored by FakeAnki.
type AnkiCard struct {
	ID    int64
	Deck  string
	Front string
	Back  string
	Tags  []string
}

// FakeAnki emulates the AnkiConnect action endpoint with an in-memory
// card store. Duplicate fronts within a deck are rejected the way the
// real endpoint rejects them when allowDuplicate is off.
type FakeAnki struct {
	mu     sync.Mutex
	nextID int64
	decks  map[string]bool
	cards  []AnkiCard
	srv    *httptest.Server
}

// NewFakeAnki starts a fake AnkiConnect server with the given decks
// pre-created. It shuts down with the test.
func NewFakeAnki(t *testing.T, decks ...string) *FakeAnki {
	t.Helper()
	f := &FakeAnki{nextID: 1000, decks: map[string]bool{"Default": true}}
	for _, d := range decks {
		f.decks[d] = true
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

// URL returns the server base URL.
func (f *FakeAnki) URL() string { return f.srv.URL }

// Seed inserts cards directly into deck, bypassing the API.
func (f *FakeAnki) Seed(deck string, cards ...AnkiCard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decks[deck] = true
	for _, c := range cards {
		f.nextID++
		c.ID = f.nextID
		c.Deck = deck
		f.cards = append(f.cards, c)
	}
}

// Cards returns a snapshot of the cards currently in deck.
func (f *FakeAnki) Cards(deck string) []AnkiCard {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []AnkiCard
	for _, c := range f.cards {
		if c.Deck == deck {
			out = append(out, c)
		}
	}
	return out
}

// Decks returns the sorted deck names.
func (f *FakeAnki) Decks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deckNamesLocked()
}

func (f *FakeAnki) deckNamesLocked() []string {
	names := make([]string, 0, len(f.decks))
	for d := range f.decks {
		names = append(names, d)
	}
	sort.Strings(names)
	return names
}

func (f *FakeAnki) handle(w http.ResponseWriter, req *http.Request) {
	var env struct {
		Action string          `json:"action"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(req.Body).Decode(&env); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	result, errMsg := f.dispatch(env.Action, env.Params)
	f.mu.Unlock()

	resp := map[string]any{"result": result, "error": nil}
	if errMsg != "" {
		resp["result"] = nil
		resp["error"] = errMsg
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *FakeAnki) dispatch(action string, params json.RawMessage) (any, string) {
	switch action {
	case "version":
		return 6, ""

	case "deckNames":
		return f.deckNamesLocked(), ""

	case "createDeck":
		var p struct {
			Deck string `json:"deck"`
		}
		_ = json.Unmarshal(params, &p)
		f.decks[p.Deck] = true
		return f.nextID, ""

	case "addNotes":
		var p struct {
			Notes []struct {
				DeckName string            `json:"deckName"`
				Fields   map[string]string `json:"fields"`
				Tags     []string          `json:"tags"`
				Options  struct {
					AllowDuplicate bool `json:"allowDuplicate"`
				} `json:"options"`
			} `json:"notes"`
		}
		_ = json.Unmarshal(params, &p)
		ids := make([]any, 0, len(p.Notes))
		for _, n := range p.Notes {
			if !f.decks[n.DeckName] {
				ids = append(ids, nil)
				continue
			}
			if !n.Options.AllowDuplicate && f.hasFrontLocked(n.DeckName, n.Fields["Front"]) {
				ids = append(ids, nil)
				continue
			}
			f.nextID++
			f.cards = append(f.cards, AnkiCard{
				ID:    f.nextID,
				Deck:  n.DeckName,
				Front: n.Fields["Front"],
				Back:  n.Fields["Back"],
				Tags:  n.Tags,
			})
			ids = append(ids, f.nextID)
		}
		return ids, ""

	case "findNotes", "findCards":
		var p struct {
			Query string `json:"query"`
		}
		_ = json.Unmarshal(params, &p)
		deck, ok := deckFromQuery(p.Query)
		if !ok {
			return nil, "unsupported query: " + p.Query
		}
		ids := []int64{}
		for _, c := range f.cards {
			if c.Deck == deck {
				ids = append(ids, c.ID)
			}
		}
		return ids, ""

	case "notesInfo":
		var p struct {
			Notes []int64 `json:"notes"`
		}
		_ = json.Unmarshal(params, &p)
		type fieldVal struct {
			Value string `json:"value"`
			Order int    `json:"order"`
		}
		type info struct {
			NoteID int64               `json:"noteId"`
			Fields map[string]fieldVal `json:"fields"`
		}
		infos := []info{}
		for _, id := range p.Notes {
			for _, c := range f.cards {
				if c.ID == id {
					infos = append(infos, info{
						NoteID: c.ID,
						Fields: map[string]fieldVal{
							"Front": {Value: c.Front, Order: 0},
							"Back":  {Value: c.Back, Order: 1},
						},
					})
				}
			}
		}
		return infos, ""

	case "changeDeck":
		var p struct {
			Cards []int64 `json:"cards"`
			Deck  string  `json:"deck"`
		}
		_ = json.Unmarshal(params, &p)
		f.decks[p.Deck] = true
		for i := range f.cards {
			for _, id := range p.Cards {
				if f.cards[i].ID == id {
					f.cards[i].Deck = p.Deck
				}
			}
		}
		return nil, ""

	case "deleteDecks":
		var p struct {
			Decks []string `json:"decks"`
		}
		_ = json.Unmarshal(params, &p)
		for _, d := range p.Decks {
			delete(f.decks, d)
			kept := f.cards[:0]
			for _, c := range f.cards {
				if c.Deck != d {
					kept = append(kept, c)
				}
			}
			f.cards = kept
		}
		return nil, ""

	case "getDeckStats":
		var p struct {
			Decks []string `json:"decks"`
		}
		_ = json.Unmarshal(params, &p)
		out := map[string]any{}
		for i, d := range p.Decks {
			if !f.decks[d] {
				continue
			}
			total := 0
			for _, c := range f.cards {
				if c.Deck == d {
					total++
				}
			}
			out[strconv.Itoa(i+1)] = map[string]any{
				"deck_id":       i + 1,
				"name":          d,
				"new_count":     total,
				"learn_count":   0,
				"review_count":  0,
				"total_in_deck": total,
			}
		}
		return out, ""

	default:
		return nil, "unsupported action: " + action
	}
}

func (f *FakeAnki) hasFrontLocked(deck, front string) bool {
	for _, c := range f.cards {
		if c.Deck == deck && c.Front == front {
			return true
		}
	}
	return false
}

// deckFromQuery parses the deck name out of a deck:"Name" search query.
func deckFromQuery(query string) (string, bool) {
	rest, ok := strings.CutPrefix(query, "deck:")
	if !ok {
		return "", false
	}
	name, err := strconv.Unquote(rest)
	if err != nil {
		return rest, true
	}
	return name, true
}
