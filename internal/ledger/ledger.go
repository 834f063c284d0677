// Package ledger tracks how many flashcards each note has already produced.
//
// The ledger is the persisted memory behind density-bias sampling: every
// successful insertion appends a session record and rewrites the backing
// JSON file before returning, so a crash never loses more than the
// insertion in flight.
package ledger

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/starford/jera/internal/statefile"
)

// Session records one insertion event for a note.
type Session struct {
	Timestamp  time.Time `json:"timestamp"`
	CardsAdded int       `json:"cards_added"`
	Fronts     []string  `json:"fronts"`
}

// Entry aggregates the full processing history of one note path.
// Invariant: Total equals the sum of CardsAdded across Sessions.
type Entry struct {
	Size     int       `json:"size"`
	Total    int       `json:"total_cards"`
	Sessions []Session `json:"sessions"`
}

// Ledger is the append-only history store. All mutation goes through a
// single mutex; batched-mode workers therefore serialize their updates.
type Ledger struct {
	mu      sync.Mutex
	path    string
	entries map[string]*Entry
	now     func() time.Time
}

// Load reads the ledger file at path. A missing file yields an empty ledger.
func Load(path string) (*Ledger, error) {
	l := &Ledger{
		path:    path,
		entries: map[string]*Entry{},
		now:     time.Now,
	}
	err := statefile.Load(path, &l.entries)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return l, nil
}

// RecordInsertion appends a session for path and persists the ledger
// before returning. size is the note's current size; count and fronts
// describe the cards just inserted.
func (l *Ledger) RecordInsertion(path string, size, count int, fronts []string) error {
	if count <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[path]
	if !ok {
		e = &Entry{}
		l.entries[path] = e
	}
	e.Size = size
	e.Total += count
	e.Sessions = append(e.Sessions, Session{
		Timestamp:  l.now().UTC(),
		CardsAdded: count,
		Fronts:     append([]string{}, fronts...),
	})

	if err := statefile.Save(l.path, l.entries); err != nil {
		return fmt.Errorf("ledger: persist: %w", err)
	}
	return nil
}

// PreviousFronts returns every front ever recorded for path, oldest first.
func (l *Ledger) PreviousFronts(path string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[path]
	if !ok {
		return nil
	}
	var fronts []string
	for _, s := range e.Sessions {
		fronts = append(fronts, s.Fronts...)
	}
	return fronts
}

// HasHistory reports whether path has ever produced cards.
func (l *Ledger) HasHistory(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[path]
	return ok
}

// CumulativeCards returns the total card count recorded for path.
func (l *Ledger) CumulativeCards(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[path]; ok {
		return e.Total
	}
	return 0
}

// Entry returns a copy of the history for path.
func (l *Ledger) Entry(path string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[path]
	if !ok {
		return Entry{}, false
	}
	out := Entry{Size: e.Size, Total: e.Total, Sessions: append([]Session{}, e.Sessions...)}
	return out, true
}

// Stats summarizes the whole ledger for the history admin command.
type Stats struct {
	Notes       int       `json:"notes"`
	Cards       int       `json:"cards"`
	Sessions    int       `json:"sessions"`
	LastSession time.Time `json:"last_session,omitempty"`
}

// Summary computes aggregate statistics across all entries.
func (l *Ledger) Summary() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	var st Stats
	st.Notes = len(l.entries)
	for _, e := range l.entries {
		st.Cards += e.Total
		st.Sessions += len(e.Sessions)
		for _, s := range e.Sessions {
			if s.Timestamp.After(st.LastSession) {
				st.LastSession = s.Timestamp
			}
		}
	}
	return st
}

// Clear wipes the ledger and persists the empty state.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = map[string]*Entry{}
	if err := statefile.Save(l.path, l.entries); err != nil {
		return fmt.Errorf("ledger: persist: %w", err)
	}
	return nil
}
