// Package console handles terminal interaction: card previews and the
// approval prompt that gates every insertion.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/models"
)

// Console reads answers from in and writes prompts and previews to out.
type Console struct {
	in  *bufio.Scanner
	out io.Writer
}

// New builds a Console over the given streams.
func New(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewScanner(in), out: out}
}

// Printf writes formatted output.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// Card renders a card preview using the raw text sides, not the HTML
// sent to the Flashcard Store.
func (c *Console) Card(idx, total int, card models.Flashcard) {
	fmt.Fprintf(c.out, "\nCard %d/%d\n", idx, total)
	fmt.Fprintf(c.out, "  Front: %s\n", card.FrontRaw)
	fmt.Fprintf(c.out, "  Back:  %s\n", card.BackRaw)
}

// Confirm asks a yes/no question and re-asks until it gets an answer.
// Quitting, and EOF on stdin, surface ErrCancelled so callers can stop
// the whole run cleanly.
func (c *Console) Confirm(prompt string) (bool, error) {
	for {
		fmt.Fprintf(c.out, "%s [y/n/q]: ", prompt)
		if !c.in.Scan() {
			if err := c.in.Err(); err != nil {
				return false, err
			}
			return false, apperr.ErrCancelled
		}
		switch strings.ToLower(strings.TrimSpace(c.in.Text())) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "q", "quit":
			return false, apperr.ErrCancelled
		}
		fmt.Fprintln(c.out, `Please answer "y", "n", or "q".`)
	}
}
