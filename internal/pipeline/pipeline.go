// Package pipeline drives flashcard generation end to end. It resolves
// which notes to process, asks the Generation Oracle for candidate
// cards, walks the user through approvals, inserts accepted cards into
// the Flashcard Store and keeps the processing ledger current.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/jera/internal/anki"
	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/markup"
	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/oracle"
	"github.com/starford/jera/internal/sampling"
)

// NoteStore is the vault surface the pipeline reads from.
type NoteStore interface {
	Ping(ctx context.Context) error
	NoteContent(ctx context.Context, path string) (string, error)
	SampleCandidates(ctx context.Context, days, minSize int, folders, excludedTags []string) ([]models.Note, error)
	FindByPattern(ctx context.Context, pattern string, folders, excludedTags []string) ([]models.Note, error)
	FindByName(ctx context.Context, name string, folders, excludedTags []string) ([]models.Note, error)
}

// CardStore is the Anki surface the pipeline writes to.
type CardStore interface {
	Ping(ctx context.Context) error
	EnsureDeck(ctx context.Context, name string) error
	AddCards(ctx context.Context, deck, model string, cards []models.Flashcard) ([]models.Flashcard, int, error)
	CardFronts(ctx context.Context, deck string) ([]string, error)
	CardSamples(ctx context.Context, deck string, n int) ([]anki.CardSample, error)
}

// History records which notes produced cards, so later runs can bias
// sampling away from them and feed deduplication context to the oracle.
type History interface {
	RecordInsertion(path string, size, count int, fronts []string) error
	PreviousFronts(path string) []string
	CumulativeCards(path string) int
}

// Finder turns a natural language request into a set of notes.
type Finder interface {
	FindNotes(ctx context.Context, request string) ([]models.Note, error)
}

// UI is the interactive surface for progress output and approvals.
type UI interface {
	Printf(format string, args ...any)
	Card(idx, total int, card models.Flashcard)
	Confirm(prompt string) (bool, error)
}

// Config carries the knobs that shape a generation run.
type Config struct {
	Deck     string
	CardType string

	// MaxCards is the card budget for the run. CardsSet marks it as an
	// explicit request rather than the configured default, which changes
	// how budgets and per-note targets are derived.
	MaxCards int
	CardsSet bool

	NotesToSample int
	DaysOld       int
	MinNoteSize   int

	ApproveNotes  bool
	ApproveCards  bool
	DedupHistory  bool
	DedupDeck     bool
	UseDeckSchema bool

	Batching       bool
	BatchSizeLimit int
	BatchCardLimit int
	Workers        int

	BiasStrength float64
	Folders      []string
	ExcludedTags []string

	Highlight    bool
	ExampleCards int
}

// Deps bundles the collaborators a Pipeline needs. Store, Cards, Oracle
// and UI are required; the rest degrade gracefully when absent.
type Deps struct {
	Store   NoteStore
	Cards   CardStore
	Oracle  oracle.Oracle
	Finder  Finder
	History History
	Schema  *sampling.Schema
	UI      UI
	Logger  *slog.Logger
	Rand    *rand.Rand
}

// Request is a single generation request as the user phrased it.
type Request struct {
	Notes []string // counts, exact names or glob patterns
	Query string   // standalone topic, or extraction focus when notes are given
	Agent string   // natural language note discovery request
}

// Session accumulates the outcome of one run.
type Session struct {
	NotesProcessed int
	CardsGenerated int
	CardsInserted  int
	NotesSkipped   int
	Errors         []string
}

// Pipeline is the processing orchestrator.
type Pipeline struct {
	cfg     Config
	store   NoteStore
	cards   CardStore
	oracle  oracle.Oracle
	finder  Finder
	history History
	schema  *sampling.Schema
	ui      UI
	logger  *slog.Logger
	rng     *rand.Rand
}

// genParams is the generation context shared by every note in a run.
type genParams struct {
	budget   int
	target   int // cards per note, 0 lets the oracle decide
	topic    string
	examples []oracle.CardExample
}

// New validates deps, applies config defaults and builds a Pipeline.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Store == nil || deps.Cards == nil || deps.Oracle == nil || deps.UI == nil {
		return nil, errors.New("pipeline: store, cards, oracle and ui are required")
	}
	if cfg.Deck == "" {
		cfg.Deck = "Obsidian"
	}
	if cfg.CardType == "" {
		cfg.CardType = "Basic"
	}
	if cfg.MaxCards <= 0 {
		cfg.MaxCards = 6
	}
	if cfg.NotesToSample <= 0 {
		cfg.NotesToSample = 3
	}
	if cfg.DaysOld <= 0 {
		cfg.DaysOld = 30
	}
	if cfg.MinNoteSize <= 0 {
		cfg.MinNoteSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.BatchSizeLimit <= 0 {
		cfg.BatchSizeLimit = 10
	}
	if cfg.BatchCardLimit <= 0 {
		cfg.BatchCardLimit = 30
	}
	if cfg.ExampleCards <= 0 {
		cfg.ExampleCards = 5
	}
	if deps.Schema == nil {
		deps.Schema = sampling.DefaultSchema()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Pipeline{
		cfg:     cfg,
		store:   deps.Store,
		cards:   deps.Cards,
		oracle:  deps.Oracle,
		finder:  deps.Finder,
		history: deps.History,
		schema:  deps.Schema,
		ui:      deps.UI,
		logger:  deps.Logger,
		rng:     deps.Rand,
	}, nil
}

// Run executes one generation request. Connectivity failures before any
// work starts are fatal; per-note failures are recorded on the session
// and surfaced as warnings. A user quit mid-run keeps what was already
// inserted and returns without error.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Session, error) {
	sess := &Session{}

	var probes errgroup.Group
	probes.Go(func() error {
		if err := p.store.Ping(ctx); err != nil {
			return fmt.Errorf("pipeline: note store unreachable: %w", err)
		}
		return nil
	})
	probes.Go(func() error {
		if err := p.cards.Ping(ctx); err != nil {
			return fmt.Errorf("pipeline: flashcard store unreachable: %w", err)
		}
		return nil
	})
	if err := probes.Wait(); err != nil {
		return sess, err
	}
	if err := p.cards.EnsureDeck(ctx, p.cfg.Deck); err != nil {
		return sess, fmt.Errorf("pipeline: ensure deck %q: %w", p.cfg.Deck, err)
	}

	err := p.run(ctx, req, sess)
	if errors.Is(err, apperr.ErrCancelled) {
		p.ui.Printf("\nCancelled. %d cards were added before stopping.\n", sess.CardsInserted)
		return sess, nil
	}
	return sess, err
}

func (p *Pipeline) run(ctx context.Context, req Request, sess *Session) error {
	if req.Query != "" && req.Agent == "" && len(req.Notes) == 0 {
		return p.runTopic(ctx, req.Query, sess)
	}

	// An explicit card count without explicit notes scales the sample
	// size to half the requested cards.
	sampleSize := p.cfg.NotesToSample
	if p.cfg.CardsSet && len(req.Notes) == 0 {
		sampleSize = max(1, p.cfg.MaxCards/2)
	}

	notes, err := p.resolveNotes(ctx, req, sampleSize, sess)
	if err != nil {
		return err
	}

	budget := p.cfg.MaxCards
	if !p.cfg.CardsSet && (req.Agent != "" || len(req.Notes) > 0) {
		// Caller named the notes, so the budget follows the notes.
		budget = len(notes) * 2
	}

	if req.Query != "" {
		p.ui.Printf("TARGETED MODE: Extracting '%s' from %d note(s)\n", req.Query, len(notes))
	} else {
		p.ui.Printf("INFO: Processing %d note(s)\n", len(notes))
	}
	p.ui.Printf("TARGET: %d flashcards maximum\n", budget)

	gen := genParams{budget: budget, topic: req.Query}
	if p.cfg.CardsSet {
		gen.target = max(1, budget/len(notes))
		if gen.target > 5 {
			p.ui.Printf("WARNING: Requesting more than 5 cards per note can decrease quality\n")
		}
	}
	if p.cfg.UseDeckSchema {
		gen.examples = p.deckExamples(ctx, sess)
	}

	batch := p.cfg.Batching && len(notes) > 1
	if batch {
		switch {
		case len(notes) > p.cfg.BatchSizeLimit:
			p.ui.Printf("WARNING: Batch mode disabled, too many notes (%d > %d)\n", len(notes), p.cfg.BatchSizeLimit)
			batch = false
		case budget > p.cfg.BatchCardLimit:
			p.ui.Printf("WARNING: Batch mode disabled, too many target cards (%d > %d)\n", budget, p.cfg.BatchCardLimit)
			batch = false
		default:
			p.ui.Printf("BATCH MODE: Processing %d notes in parallel\n", len(notes))
		}
	}

	p.logger.Info("pipeline: run starting",
		slog.String("deck", p.cfg.Deck),
		slog.Int("notes", len(notes)),
		slog.Int("budget", budget),
		slog.Bool("batch", batch))

	if batch {
		err = p.runBatched(ctx, notes, gen, sess)
	} else {
		err = p.runSequential(ctx, notes, gen, sess)
	}
	if err != nil {
		return err
	}

	p.ui.Printf("\nCOMPLETE: Added %d/%d flashcards to deck '%s'\n", sess.CardsInserted, budget, p.cfg.Deck)
	return nil
}

// runTopic generates cards from a standalone query with no source note.
// Nothing is written to the ledger because there is no note to record.
func (p *Pipeline) runTopic(ctx context.Context, topic string, sess *Session) error {
	p.ui.Printf("QUERY MODE: %s\n", topic)

	var previous []string
	if p.cfg.DedupDeck {
		p.ui.Printf("WARNING: Deck deduplication is experimental and may be expensive for large decks\n")
		fronts, err := p.cards.CardFronts(ctx, p.cfg.Deck)
		if err != nil {
			p.fail(sess, "deck deduplication unavailable: %v", err)
		} else if len(fronts) > 0 {
			previous = fronts
			p.ui.Printf("Found %d existing cards in deck '%s' for deduplication\n", len(fronts), p.cfg.Deck)
		}
	}

	var examples []oracle.CardExample
	if p.cfg.UseDeckSchema {
		examples = p.deckExamples(ctx, sess)
	}

	target := 0
	if p.cfg.CardsSet {
		target = p.cfg.MaxCards
	}

	resp, err := p.oracle.Complete(ctx, oracle.Request{
		System: oracle.TopicSystem(),
		Prompt: oracle.BuildTopicPrompt(oracle.TopicPrompt{
			Topic:    topic,
			Target:   target,
			Previous: previous,
			Examples: examples,
		}),
		Tools: []oracle.ToolDef{oracle.FlashcardTool()},
		Force: oracle.ToolCreateFlashcards,
	})
	if err != nil {
		return fmt.Errorf("pipeline: query generation: %w", err)
	}
	candidates, err := oracle.ParseFlashcards(resp)
	if err != nil {
		return fmt.Errorf("pipeline: query generation: %w", err)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("pipeline: no flashcards generated from query: %w", apperr.ErrNotFound)
	}

	cards := p.render(candidates, nil)
	sess.CardsGenerated += len(cards)
	p.ui.Printf("Generated %d flashcards\n", len(cards))

	if _, err := p.insertCards(ctx, nil, cards, sess); err != nil {
		return err
	}
	p.ui.Printf("\nCOMPLETE: Added %d flashcards from query\n", sess.CardsInserted)
	return nil
}

// resolveNotes turns the request into concrete notes to process.
func (p *Pipeline) resolveNotes(ctx context.Context, req Request, sampleSize int, sess *Session) ([]models.Note, error) {
	switch {
	case req.Agent != "":
		p.ui.Printf("WARNING: Agent mode is experimental and may produce unexpected results\n")
		p.ui.Printf("AGENT MODE: %s\n", req.Agent)
		found, err := p.finder.FindNotes(ctx, req.Agent)
		if err != nil {
			return nil, fmt.Errorf("pipeline: find notes: %w", err)
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("pipeline: agent found no matching notes: %w", apperr.ErrNotFound)
		}
		if len(found) > sampleSize {
			found = p.sample(found, sampleSize)
		}
		return found, nil

	case len(req.Notes) > 0:
		notes, err := p.lookupNotes(ctx, req.Notes, sess)
		if err != nil {
			return nil, err
		}
		if len(notes) == 0 {
			return nil, fmt.Errorf("pipeline: no notes found: %w", apperr.ErrNotFound)
		}
		return notes, nil

	default:
		candidates, err := p.store.SampleCandidates(ctx, p.cfg.DaysOld, p.cfg.MinNoteSize, p.cfg.Folders, p.cfg.ExcludedTags)
		if err != nil {
			return nil, fmt.Errorf("pipeline: sample notes: %w", err)
		}
		notes := p.sample(candidates, sampleSize)
		if len(notes) == 0 {
			return nil, fmt.Errorf("pipeline: no old notes found: %w", apperr.ErrNotFound)
		}
		return notes, nil
	}
}

// lookupNotes resolves explicit note arguments: a bare count samples
// from the vault, patterns expand with an optional ":n" sample suffix,
// anything else is a name lookup. Failed lookups warn and continue.
func (p *Pipeline) lookupNotes(ctx context.Context, args []string, sess *Session) ([]models.Note, error) {
	if len(args) == 1 && isDigits(args[0]) {
		count, _ := strconv.Atoi(args[0])
		p.ui.Printf("INFO: Sampling %d random notes\n", count)
		candidates, err := p.store.SampleCandidates(ctx, p.cfg.DaysOld, p.cfg.MinNoteSize, p.cfg.Folders, p.cfg.ExcludedTags)
		if err != nil {
			return nil, fmt.Errorf("pipeline: sample notes: %w", err)
		}
		return p.sample(candidates, count), nil
	}

	var notes []models.Note
	for _, arg := range args {
		if strings.ContainsAny(arg, "*/") {
			pattern, size := splitSampleSuffix(arg)
			found, err := p.store.FindByPattern(ctx, pattern, p.cfg.Folders, p.cfg.ExcludedTags)
			if err != nil {
				return nil, fmt.Errorf("pipeline: pattern %q: %w", pattern, err)
			}
			if len(found) == 0 {
				p.fail(sess, "no notes found for pattern '%s'", pattern)
				continue
			}
			if size > 0 && len(found) > size {
				found = p.sample(found, size)
				p.ui.Printf("INFO: Sampled %d notes from pattern: '%s'\n", len(found), pattern)
			} else {
				p.ui.Printf("INFO: Found %d notes from pattern: '%s'\n", len(found), pattern)
			}
			notes = append(notes, found...)
			continue
		}

		found, err := p.store.FindByName(ctx, arg, p.cfg.Folders, p.cfg.ExcludedTags)
		if err != nil {
			return nil, fmt.Errorf("pipeline: lookup %q: %w", arg, err)
		}
		if len(found) == 0 {
			p.fail(sess, "not found: '%s'", arg)
			continue
		}
		if len(found) > 1 {
			p.ui.Printf("INFO: %d notes match '%s', using %s\n", len(found), arg, found[0].Path)
		}
		notes = append(notes, found[0])
	}
	return notes, nil
}

// runSequential processes notes one at a time. The budget is checked
// between notes only, so the last note may overshoot it.
func (p *Pipeline) runSequential(ctx context.Context, notes []models.Note, gen genParams, sess *Session) error {
	for i := range notes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if sess.CardsInserted >= gen.budget {
			p.ui.Printf("\nReached limit of %d cards, stopping\n", gen.budget)
			break
		}
		note := &notes[i]
		p.ui.Printf("\nProcessing note %d/%d: %s\n", i+1, len(notes), note.Title())
		if err := p.processNote(ctx, note, gen, sess); err != nil {
			return err
		}
	}
	return nil
}

// runBatched loads and approves every note upfront, generates cards for
// all of them in parallel, then funnels results through the same
// approval and insertion path as sequential mode. Results are consumed
// in completion order, so run output can vary between invocations.
func (p *Pipeline) runBatched(ctx context.Context, notes []models.Note, gen genParams, sess *Session) error {
	approved := make([]*models.Note, 0, len(notes))
	for i := range notes {
		note := &notes[i]
		if err := p.loadContent(ctx, note); err != nil {
			p.skip(sess, "note %s is unreadable: %v", note.Path, err)
			continue
		}
		if !note.Loaded() {
			p.skip(sess, "note %s is empty", note.Path)
			continue
		}
		if p.cfg.ApproveNotes {
			ok, err := p.approveNote(note)
			if err != nil {
				return err
			}
			if !ok {
				sess.NotesSkipped++
				continue
			}
		}
		approved = append(approved, note)
	}
	if len(approved) == 0 {
		p.ui.Printf("No notes left to process\n")
		return nil
	}

	p.ui.Printf("Generating flashcards for %d notes in parallel...\n", len(approved))

	type outcome struct {
		note  *models.Note
		cards []models.Flashcard
		err   error
	}

	gctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered to the number of producers, so every worker can deliver
	// even if the consumer bails out early.
	results := make(chan outcome, len(approved))

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for _, note := range approved {
		g.Go(func() error {
			cards, err := p.generate(gctx, note, gen)
			results <- outcome{note: note, cards: cards, err: err}
			return nil
		})
	}
	go func() {
		g.Wait()
		close(results)
	}()

	announced := false
	for out := range results {
		if out.err != nil {
			p.skip(sess, "generation failed for %s: %v", out.note.Title(), out.err)
			continue
		}
		if len(out.cards) == 0 {
			p.skip(sess, "no flashcards generated for %s", out.note.Title())
			continue
		}
		if sess.CardsInserted >= gen.budget {
			if !announced {
				p.ui.Printf("\nReached limit of %d cards, skipping remaining notes\n", gen.budget)
				announced = true
			}
			sess.NotesSkipped++
			continue
		}
		sess.NotesProcessed++
		sess.CardsGenerated += len(out.cards)
		p.ui.Printf("\n%s: generated %d flashcards\n", out.note.Title(), len(out.cards))
		if _, err := p.insertCards(ctx, out.note, out.cards, sess); err != nil {
			return err
		}
	}
	return nil
}

// processNote runs the full per-note path: load, approve, generate,
// insert. Failures skip the note; only a user quit aborts the run.
func (p *Pipeline) processNote(ctx context.Context, note *models.Note, gen genParams, sess *Session) error {
	if err := p.loadContent(ctx, note); err != nil {
		p.skip(sess, "note %s is unreadable: %v", note.Path, err)
		return nil
	}
	if !note.Loaded() {
		p.skip(sess, "note %s is empty", note.Path)
		return nil
	}

	if p.cfg.ApproveNotes {
		ok, err := p.approveNote(note)
		if err != nil {
			return err
		}
		if !ok {
			sess.NotesSkipped++
			p.ui.Printf("Skipped.\n")
			return nil
		}
	}

	cards, err := p.generate(ctx, note, gen)
	if err != nil {
		p.skip(sess, "generation failed for %s: %v", note.Title(), err)
		return nil
	}
	if len(cards) == 0 {
		p.skip(sess, "no flashcards generated for %s", note.Title())
		return nil
	}

	sess.NotesProcessed++
	sess.CardsGenerated += len(cards)
	p.ui.Printf("Generated %d flashcards\n", len(cards))

	_, err = p.insertCards(ctx, note, cards, sess)
	return err
}

// generate asks the oracle for cards from one note and renders them.
func (p *Pipeline) generate(ctx context.Context, note *models.Note, gen genParams) ([]models.Flashcard, error) {
	var previous []string
	if p.cfg.DedupHistory && p.history != nil {
		previous = p.history.PreviousFronts(note.Path)
	}

	resp, err := p.oracle.Complete(ctx, oracle.Request{
		System: oracle.NoteSystem(gen.topic),
		Prompt: oracle.BuildNotePrompt(oracle.NotePrompt{
			Title:    note.Title(),
			Content:  note.Content,
			Topic:    gen.topic,
			Target:   gen.target,
			Previous: previous,
			Examples: gen.examples,
		}),
		Tools: []oracle.ToolDef{oracle.FlashcardTool()},
		Force: oracle.ToolCreateFlashcards,
	})
	if err != nil {
		return nil, err
	}
	candidates, err := oracle.ParseFlashcards(resp)
	if err != nil {
		return nil, err
	}
	return p.render(candidates, note), nil
}

// render converts oracle candidates into store-ready cards. Raw text is
// kept for terminal display, the rendered sides go to Anki. note may be
// nil for query mode cards.
func (p *Pipeline) render(candidates []oracle.Candidate, note *models.Note) []models.Flashcard {
	cards := make([]models.Flashcard, 0, len(candidates))
	for _, c := range candidates {
		card := models.NewFlashcard(c.Front, c.Back, note)
		card.Front = markup.Render(c.Front, p.cfg.Highlight)
		card.Back = markup.Render(c.Back, p.cfg.Highlight)
		cards = append(cards, card)
	}
	return cards
}

// insertCards runs card approval, inserts into the store and records
// the insertion in the ledger. note is nil for query mode, which has no
// source to record. Returns the number of cards actually added.
func (p *Pipeline) insertCards(ctx context.Context, note *models.Note, cards []models.Flashcard, sess *Session) (int, error) {
	toAdd := cards
	if p.cfg.ApproveCards {
		approved := make([]models.Flashcard, 0, len(cards))
		for i, card := range cards {
			p.ui.Card(i+1, len(cards), card)
			ok, err := p.ui.Confirm("Add this card to Anki?")
			if err != nil {
				return 0, err
			}
			if ok {
				approved = append(approved, card)
			}
		}
		if len(approved) == 0 {
			p.ui.Printf("WARNING: No flashcards approved\n")
			return 0, nil
		}
		if len(approved) < len(cards) {
			p.ui.Printf("Approved %d/%d flashcards\n", len(approved), len(cards))
		}
		toAdd = approved
	}

	added, failed, err := p.cards.AddCards(ctx, p.cfg.Deck, p.cfg.CardType, toAdd)
	if err != nil {
		p.fail(sess, "failed to add cards to Anki: %v", err)
		return 0, nil
	}
	if failed > 0 {
		p.fail(sess, "%d cards were rejected by Anki", failed)
	}
	if len(added) == 0 {
		return 0, nil
	}

	p.ui.Printf("Added %d cards to Anki\n", len(added))
	sess.CardsInserted += len(added)

	if note != nil && p.history != nil {
		fronts := make([]string, len(added))
		for i, card := range added {
			fronts[i] = card.FrontRaw
		}
		if err := p.history.RecordInsertion(note.Path, note.Size, len(added), fronts); err != nil {
			p.fail(sess, "history update failed: %v", err)
		}
	}
	return len(added), nil
}

// deckExamples fetches sample cards for schema enforcement, best effort.
func (p *Pipeline) deckExamples(ctx context.Context, sess *Session) []oracle.CardExample {
	samples, err := p.cards.CardSamples(ctx, p.cfg.Deck, p.cfg.ExampleCards)
	if err != nil {
		p.fail(sess, "deck examples unavailable: %v", err)
		return nil
	}
	if len(samples) == 0 {
		return nil
	}
	examples := make([]oracle.CardExample, len(samples))
	for i, s := range samples {
		examples[i] = oracle.CardExample{Front: s.Front, Back: s.Back}
	}
	p.ui.Printf("Using %d example cards from deck '%s'\n", len(examples), p.cfg.Deck)
	return examples
}

// sample filters excluded notes and draws n by weight.
func (p *Pipeline) sample(notes []models.Note, n int) []models.Note {
	eligible := make([]models.Note, 0, len(notes))
	for _, note := range notes {
		if p.schema.IsExcluded(note.Tags) {
			continue
		}
		eligible = append(eligible, note)
	}
	var history sampling.HistorySource
	if p.history != nil {
		history = p.history
	}
	weigher := sampling.NewWeigher(p.schema, history, p.cfg.BiasStrength)
	return sampling.Sample(p.rng, eligible, n, weigher.SamplingWeight)
}

func (p *Pipeline) loadContent(ctx context.Context, note *models.Note) error {
	if note.Loaded() {
		return nil
	}
	content, err := p.store.NoteContent(ctx, note.Path)
	if err != nil {
		return err
	}
	note.SetContent(content)
	return nil
}

func (p *Pipeline) approveNote(note *models.Note) (bool, error) {
	p.ui.Printf("Review note: %s\n  Path: %s\n", note.Title(), note.Path)
	return p.ui.Confirm("Process this note?")
}

// fail records a recovered failure and surfaces it as a warning.
func (p *Pipeline) fail(sess *Session, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	sess.Errors = append(sess.Errors, msg)
	p.logger.Warn("pipeline: " + msg)
	p.ui.Printf("WARNING: %s\n", msg)
}

// skip records a skipped note with its reason.
func (p *Pipeline) skip(sess *Session, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	sess.NotesSkipped++
	sess.Errors = append(sess.Errors, "skipped: "+msg)
	p.logger.Warn("pipeline: skipping note", slog.String("reason", msg))
	p.ui.Printf("WARNING: %s, skipping\n", msg)
}

// splitSampleSuffix peels a ":n" sample count off a pattern argument.
// A trailing slash means the colon belongs to the path, not a count.
func splitSampleSuffix(pattern string) (string, int) {
	if strings.HasSuffix(pattern, "/") {
		return pattern, 0
	}
	idx := strings.LastIndex(pattern, ":")
	if idx < 0 {
		return pattern, 0
	}
	if suffix := pattern[idx+1:]; isDigits(suffix) {
		n, _ := strconv.Atoi(suffix)
		return pattern[:idx], n
	}
	return pattern, 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
