package internal

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/starford/jera/internal/ledger"
	"github.com/starford/jera/internal/sampling"
	"github.com/starford/jera/internal/testutil"
	"github.com/starford/jera/pkg/config"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.App.StateDir = t.TempDir()
	return cfg
}

func TestConfigWhere_NotCreated(t *testing.T) {
	cfg := testConfig(t)
	var buf bytes.Buffer
	ConfigWhere(cfg, &buf)
	if !strings.Contains(buf.String(), "(not created yet)") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestConfigSet_RoundTrip(t *testing.T) {
	cfg := testConfig(t)
	var buf bytes.Buffer

	if err := ConfigSet(cfg, "anki.deck", "Inbox", &buf); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if cfg.Anki.Deck != "Inbox" {
		t.Errorf("in-memory deck = %q, want Inbox", cfg.Anki.Deck)
	}
	if !strings.Contains(buf.String(), "Set anki.deck = Inbox") {
		t.Errorf("output = %q", buf.String())
	}

	reloaded := NewDefaultConfig()
	reloaded.App.StateDir = cfg.App.StateDir
	found, err := config.LoadIfPresent(reloaded.ConfigPath(), reloaded)
	if err != nil || !found {
		t.Fatalf("reload: found=%v err=%v", found, err)
	}
	if reloaded.Anki.Deck != "Inbox" {
		t.Errorf("persisted deck = %q, want Inbox", reloaded.Anki.Deck)
	}
}

func TestConfigSet_TypeCoercion(t *testing.T) {
	cfg := testConfig(t)
	var buf bytes.Buffer

	if err := ConfigSet(cfg, "behavior.approve_cards", "true", &buf); err != nil {
		t.Fatalf("bool set failed: %v", err)
	}
	if !cfg.Behavior.ApproveCards {
		t.Error("approve_cards should be true")
	}

	if err := ConfigSet(cfg, "sampling.bias_strength", "0.8", &buf); err != nil {
		t.Fatalf("float set failed: %v", err)
	}
	if cfg.Sampling.BiasStrength != 0.8 {
		t.Errorf("bias = %v, want 0.8", cfg.Sampling.BiasStrength)
	}

	err := ConfigSet(cfg, "batch.workers", "nope", &buf)
	if err == nil {
		t.Fatal("non-integer workers should fail")
	}
	if !strings.Contains(err.Error(), "not an integer") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfigSet_RejectsInvalidValue(t *testing.T) {
	cfg := testConfig(t)
	var buf bytes.Buffer

	err := ConfigSet(cfg, "oracle.provider", "openai", &buf)
	if err == nil {
		t.Fatal("unknown provider should fail validation")
	}
	if _, statErr := os.Stat(cfg.ConfigPath()); !os.IsNotExist(statErr) {
		t.Error("config file should not be written on validation failure")
	}
}

func TestConfigSet_UnknownKey(t *testing.T) {
	cfg := testConfig(t)
	var buf bytes.Buffer
	err := ConfigSet(cfg, "anki.color", "red", &buf)
	if err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfigGet(t *testing.T) {
	cfg := testConfig(t)

	var buf bytes.Buffer
	if err := ConfigGet(cfg, "anki.deck", &buf); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "Obsidian" {
		t.Errorf("value = %q, want Obsidian", got)
	}

	buf.Reset()
	if err := ConfigGet(cfg, "sampling", &buf); err != nil {
		t.Fatalf("section get failed: %v", err)
	}
	if !strings.Contains(buf.String(), "notes_to_sample: 3") {
		t.Errorf("section output = %q", buf.String())
	}

	if err := ConfigGet(cfg, "sampling.missing", &buf); err == nil {
		t.Error("unknown key should fail")
	}
}

func TestConfigReset(t *testing.T) {
	cfg := testConfig(t)
	if err := config.Save(cfg.ConfigPath(), cfg); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := ConfigReset(cfg, strings.NewReader("n\n"), &buf); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.ConfigPath()); err != nil {
		t.Error("declined reset should keep the file")
	}
	if !strings.Contains(buf.String(), "Reset cancelled.") {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	if err := ConfigReset(cfg, strings.NewReader("y\n"), &buf); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.ConfigPath()); !os.IsNotExist(err) {
		t.Error("confirmed reset should delete the file")
	}
}

func TestTagAddRemove(t *testing.T) {
	cfg := testConfig(t)
	var buf bytes.Buffer

	if err := TagAdd(cfg, "#go", 2.5, &buf); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	schema := sampling.LoadSchema(cfg.SchemaPath())
	if schema.Weights["go"] != 2.5 {
		t.Errorf("weight = %v, want 2.5", schema.Weights["go"])
	}

	if err := TagAdd(cfg, "go", -1, &buf); err == nil {
		t.Error("negative weight should fail")
	}

	if err := TagRemove(cfg, "go", &buf); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	schema = sampling.LoadSchema(cfg.SchemaPath())
	if _, ok := schema.Weights["go"]; ok {
		t.Error("tag should be removed from the schema")
	}

	if err := TagRemove(cfg, "_default", &buf); err == nil {
		t.Error("removing the default weight should fail")
	}

	buf.Reset()
	if err := TagRemove(cfg, "absent", &buf); err != nil {
		t.Fatalf("removing a missing tag should not error: %v", err)
	}
	if !strings.Contains(buf.String(), "not in the schema") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestTagExcludeInclude(t *testing.T) {
	cfg := testConfig(t)
	var buf bytes.Buffer

	if err := TagExclude(cfg, "daily", &buf); err != nil {
		t.Fatalf("exclude failed: %v", err)
	}
	schema := sampling.LoadSchema(cfg.SchemaPath())
	if !schema.IsExcluded([]string{"#daily"}) {
		t.Error("daily should be excluded")
	}

	if err := TagInclude(cfg, "daily", &buf); err != nil {
		t.Fatalf("include failed: %v", err)
	}
	schema = sampling.LoadSchema(cfg.SchemaPath())
	if schema.IsExcluded([]string{"#daily"}) {
		t.Error("daily should be sampled again")
	}

	buf.Reset()
	if err := TagInclude(cfg, "daily", &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "not excluded") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestHistoryStats(t *testing.T) {
	cfg := testConfig(t)

	var buf bytes.Buffer
	if err := HistoryStats(cfg, &buf); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Notes processed: 0") {
		t.Errorf("empty stats = %q", buf.String())
	}
	if !strings.Contains(buf.String(), "never") {
		t.Errorf("empty stats should report never, got %q", buf.String())
	}

	led, err := ledger.Load(cfg.HistoryPath())
	if err != nil {
		t.Fatal(err)
	}
	if err := led.RecordInsertion("notes/a.md", 500, 3, []string{"Q1", "Q2", "Q3"}); err != nil {
		t.Fatal(err)
	}

	buf.Reset()
	if err := HistoryStats(cfg, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Cards recorded:  3") {
		t.Errorf("stats = %q", buf.String())
	}
}

func TestHistoryClear(t *testing.T) {
	cfg := testConfig(t)
	led, err := ledger.Load(cfg.HistoryPath())
	if err != nil {
		t.Fatal(err)
	}
	if err := led.RecordInsertion("notes/a.md", 500, 2, []string{"Q1", "Q2"}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := HistoryClear(cfg, strings.NewReader("n\n"), &buf); err != nil {
		t.Fatal(err)
	}
	led, _ = ledger.Load(cfg.HistoryPath())
	if led.Summary().Cards != 2 {
		t.Error("declined clear should keep history")
	}

	if err := HistoryClear(cfg, strings.NewReader("y\n"), &buf); err != nil {
		t.Fatal(err)
	}
	led, _ = ledger.Load(cfg.HistoryPath())
	if led.Summary().Cards != 0 {
		t.Error("confirmed clear should wipe history")
	}
}

func TestDeckList(t *testing.T) {
	fake := testutil.NewFakeAnki(t, "Alpha", "Beta")
	fake.Seed("Alpha", testutil.AnkiCard{Front: "Q1", Back: "A1"})

	cfg := testConfig(t)
	cfg.Anki.URL = fake.URL()

	var buf bytes.Buffer
	if err := DeckList(context.Background(), cfg, false, &buf); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, want := range []string{"Alpha", "Beta", "Default"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("list missing %q: %q", want, buf.String())
		}
	}

	buf.Reset()
	if err := DeckList(context.Background(), cfg, true, &buf); err != nil {
		t.Fatalf("detailed list failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Alpha: 1 cards") {
		t.Errorf("detailed output = %q", buf.String())
	}
}

func TestDeckRename(t *testing.T) {
	fake := testutil.NewFakeAnki(t, "Old")
	fake.Seed("Old", testutil.AnkiCard{Front: "Q1", Back: "A1"})

	cfg := testConfig(t)
	cfg.Anki.URL = fake.URL()

	var buf bytes.Buffer
	if err := DeckRename(context.Background(), cfg, "Old", "New", &buf); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if got := len(fake.Cards("New")); got != 1 {
		t.Errorf("cards in New = %d, want 1", got)
	}
	for _, d := range fake.Decks() {
		if d == "Old" {
			t.Error("Old deck should be gone")
		}
	}
	if err := DeckRename(context.Background(), cfg, "Missing", "X", &buf); err == nil {
		t.Error("renaming a missing deck should fail")
	}
}
