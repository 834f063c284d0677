package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/models"
)

func TestConfirmAnswers(t *testing.T) {
	cases := []struct {
		input string
		want  bool
		err   error
	}{
		{"y\n", true, nil},
		{"YES\n", true, nil},
		{"n\n", false, nil},
		{"  no \n", false, nil},
		{"q\n", false, apperr.ErrCancelled},
		{"quit\n", false, apperr.ErrCancelled},
		{"", false, apperr.ErrCancelled},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		got, err := New(strings.NewReader(tc.input), &out).Confirm("Add cards?")
		if got != tc.want || !errors.Is(err, tc.err) {
			t.Errorf("Confirm(%q) = %v, %v", tc.input, got, err)
		}
	}
}

func TestConfirmReprompts(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader("banana\nyes\n"), &out)

	got, err := c.Confirm("Add cards?")
	if !got || err != nil {
		t.Fatalf("Confirm = %v, %v", got, err)
	}
	if strings.Count(out.String(), "[y/n/q]") != 2 {
		t.Errorf("expected a re-prompt, got output %q", out.String())
	}
	if !strings.Contains(out.String(), "Please answer") {
		t.Error("missing usage hint on bad input")
	}
}

func TestCardPreviewUsesRawText(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader(""), &out)

	card := models.Flashcard{Front: "<b>html</b>", Back: "<i>html</i>", FrontRaw: "plain front", BackRaw: "plain back"}
	c.Card(2, 5, card)

	s := out.String()
	if !strings.Contains(s, "Card 2/5") {
		t.Errorf("missing header: %q", s)
	}
	if !strings.Contains(s, "plain front") || !strings.Contains(s, "plain back") {
		t.Errorf("raw sides missing: %q", s)
	}
	if strings.Contains(s, "<b>") {
		t.Error("rendered HTML leaked into the preview")
	}
}
