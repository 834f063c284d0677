package internal

import (
	"io"
	"os"

	"github.com/starford/jera/internal/oracle"
	"github.com/starford/jera/internal/pipeline"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	request pipeline.Request

	cards         int
	cardsSet      bool
	deck          string
	bias          float64
	biasSet       bool
	folders       []string
	deckSchema    bool
	deckSchemaSet bool
	verbose       bool

	stdin  io.Reader
	stdout io.Writer

	oracle oracle.Oracle
}

func newApplication(opts ...Option) *application {
	app := &application{
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRequest sets what the run should process.
func WithRequest(req pipeline.Request) Option {
	return func(a *application) {
		a.request = req
	}
}

// WithCards sets an explicit card budget for the run.
func WithCards(n int) Option {
	return func(a *application) {
		a.cards = n
		a.cardsSet = true
	}
}

// WithDeck overrides the target deck for the run.
func WithDeck(name string) Option {
	return func(a *application) {
		a.deck = name
	}
}

// WithBias overrides the sampling bias strength for the run.
func WithBias(strength float64) Option {
	return func(a *application) {
		a.bias = strength
		a.biasSet = true
	}
}

// WithFolders restricts vault lookups to the given folders.
func WithFolders(folders []string) Option {
	return func(a *application) {
		a.folders = folders
	}
}

// WithDeckSchema toggles sampling existing deck cards as prompt examples.
func WithDeckSchema(enabled bool) Option {
	return func(a *application) {
		a.deckSchema = enabled
		a.deckSchemaSet = true
	}
}

// WithVerbose lowers the log level to debug for the run.
func WithVerbose(enabled bool) Option {
	return func(a *application) {
		a.verbose = enabled
	}
}

// WithIO redirects interactive prompts and run output, mainly for tests.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *application) {
		a.stdin = in
		a.stdout = out
	}
}

// WithOracle injects a pre-built oracle instead of constructing one
// from the configuration, mainly for tests.
func WithOracle(o oracle.Oracle) Option {
	return func(a *application) {
		a.oracle = o
	}
}
