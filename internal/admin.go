package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/jera/internal/anki"
	"github.com/starford/jera/internal/console"
	"github.com/starford/jera/internal/ledger"
	"github.com/starford/jera/internal/sampling"
	"github.com/starford/jera/pkg/config"
)

// ConfigWhere prints the config file location.
func ConfigWhere(cfg *Config, out io.Writer) {
	path := cfg.ConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(out, "%s (not created yet)\n", path)
		return
	}
	fmt.Fprintln(out, path)
}

// ConfigList prints the effective configuration as YAML.
func ConfigList(cfg *Config, out io.Writer) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// ConfigGet prints one value by dotted key, e.g. anki.deck.
func ConfigGet(cfg *Config, key string, out io.Writer) error {
	m, err := configMap(cfg)
	if err != nil {
		return err
	}
	value, err := lookupKey(m, key)
	if err != nil {
		return err
	}
	if section, ok := value.(map[string]any); ok {
		data, err := yaml.Marshal(section)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}
	fmt.Fprintf(out, "%v\n", value)
	return nil
}

// ConfigSet updates one value by dotted key, validates the result and
// writes the config file. The raw value is coerced to the type of the
// current value, so booleans and numbers keep their kinds.
func ConfigSet(cfg *Config, key, value string, out io.Writer) error {
	m, err := configMap(cfg)
	if err != nil {
		return err
	}
	current, err := lookupKey(m, key)
	if err != nil {
		return err
	}
	if _, ok := current.(map[string]any); ok {
		return fmt.Errorf("%q is a section, not a value", key)
	}
	coerced, err := coerceValue(value, current)
	if err != nil {
		return fmt.Errorf("config key %q: %w", key, err)
	}
	if err := setKey(m, key, coerced); err != nil {
		return err
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	updated := &Config{}
	if err := yaml.Unmarshal(data, updated); err != nil {
		return fmt.Errorf("config key %q: %w", key, err)
	}
	if err := updated.Validate(); err != nil {
		return fmt.Errorf("invalid value for %q: %w", key, err)
	}
	if err := config.Save(cfg.ConfigPath(), updated); err != nil {
		return err
	}
	*cfg = *updated
	fmt.Fprintf(out, "Set %s = %v\n", key, coerced)
	return nil
}

// ConfigReset deletes the config file after confirmation, restoring
// defaults on the next run.
func ConfigReset(cfg *Config, in io.Reader, out io.Writer) error {
	ui := console.New(in, out)
	ok, err := ui.Confirm("Reset configuration to defaults?")
	if err != nil || !ok {
		fmt.Fprintln(out, "Reset cancelled.")
		return nil
	}
	if err := os.Remove(cfg.ConfigPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	fmt.Fprintln(out, "Configuration reset to defaults.")
	return nil
}

// TagList prints the sampling weights and excluded tags.
func TagList(cfg *Config, out io.Writer) {
	schema := sampling.LoadSchema(cfg.SchemaPath())

	tags := make([]string, 0, len(schema.Weights))
	for tag := range schema.Weights {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	fmt.Fprintln(out, "Tag weights:")
	for _, tag := range tags {
		fmt.Fprintf(out, "  %-24s %.2f\n", tag, schema.Weights[tag])
	}

	if len(schema.Excluded) > 0 {
		excluded := append([]string{}, schema.Excluded...)
		sort.Strings(excluded)
		fmt.Fprintln(out, "Excluded tags:")
		for _, tag := range excluded {
			fmt.Fprintf(out, "  %s\n", tag)
		}
	}
}

// TagAdd sets a tag's sampling weight and saves the schema.
func TagAdd(cfg *Config, tag string, weight float64, out io.Writer) error {
	if weight < 0 {
		return fmt.Errorf("weight must be non-negative, got %v", weight)
	}
	tag = normalizeTag(tag)
	schema := sampling.LoadSchema(cfg.SchemaPath())
	schema.SetWeight(tag, weight)
	if err := schema.Save(cfg.SchemaPath()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Set weight %.2f for tag '%s'\n", weight, tag)
	return nil
}

// TagRemove drops a tag from the weight schema.
func TagRemove(cfg *Config, tag string, out io.Writer) error {
	tag = normalizeTag(tag)
	if tag == sampling.DefaultKey {
		return fmt.Errorf("the %s weight cannot be removed", sampling.DefaultKey)
	}
	schema := sampling.LoadSchema(cfg.SchemaPath())
	if !schema.RemoveWeight(tag) {
		fmt.Fprintf(out, "Tag '%s' is not in the schema\n", tag)
		return nil
	}
	if err := schema.Save(cfg.SchemaPath()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Removed tag '%s'\n", tag)
	return nil
}

// TagExclude marks a tag so notes carrying it are never sampled.
func TagExclude(cfg *Config, tag string, out io.Writer) error {
	tag = normalizeTag(tag)
	schema := sampling.LoadSchema(cfg.SchemaPath())
	schema.Exclude(tag)
	if err := schema.Save(cfg.SchemaPath()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Excluded tag '%s' from sampling\n", tag)
	return nil
}

// TagInclude removes a tag from the exclusion list.
func TagInclude(cfg *Config, tag string, out io.Writer) error {
	tag = normalizeTag(tag)
	schema := sampling.LoadSchema(cfg.SchemaPath())
	if !schema.Include(tag) {
		fmt.Fprintf(out, "Tag '%s' is not excluded\n", tag)
		return nil
	}
	if err := schema.Save(cfg.SchemaPath()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Tag '%s' can be sampled again\n", tag)
	return nil
}

// HistoryStats prints aggregate generation history statistics.
func HistoryStats(cfg *Config, out io.Writer) error {
	led, err := ledger.Load(cfg.HistoryPath())
	if err != nil {
		return err
	}
	st := led.Summary()
	fmt.Fprintf(out, "Notes processed: %d\n", st.Notes)
	fmt.Fprintf(out, "Cards recorded:  %d\n", st.Cards)
	fmt.Fprintf(out, "Sessions:        %d\n", st.Sessions)
	if st.LastSession.IsZero() {
		fmt.Fprintln(out, "Last session:    never")
	} else {
		fmt.Fprintf(out, "Last session:    %s\n", st.LastSession.Format("2006-01-02 15:04"))
	}
	return nil
}

// HistoryClear wipes the generation history after confirmation.
func HistoryClear(cfg *Config, in io.Reader, out io.Writer) error {
	ui := console.New(in, out)
	ok, err := ui.Confirm("Delete all generation history?")
	if err != nil || !ok {
		fmt.Fprintln(out, "Clear cancelled.")
		return nil
	}
	led, err := ledger.Load(cfg.HistoryPath())
	if err != nil {
		return err
	}
	if err := led.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(out, "History cleared.")
	return nil
}

// DeckList prints the deck names known to the flashcard store, with
// per-deck counts when detailed is set.
func DeckList(ctx context.Context, cfg *Config, detailed bool, out io.Writer) error {
	client := anki.NewClient(anki.Config{URL: cfg.Anki.URL, Timeout: cfg.Anki.Timeout()})
	names, err := client.DeckNames(ctx)
	if err != nil {
		return err
	}
	if !detailed {
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return nil
	}
	stats, err := client.DeckStats(ctx, names)
	if err != nil {
		return err
	}
	for _, name := range names {
		st := stats[name]
		fmt.Fprintf(out, "%s: %d cards (%d new, %d learning, %d review)\n",
			name, st.Total, st.NewCnt, st.Learn, st.Review)
	}
	return nil
}

// DeckRename moves all cards from one deck into another name.
func DeckRename(ctx context.Context, cfg *Config, from, to string, out io.Writer) error {
	client := anki.NewClient(anki.Config{URL: cfg.Anki.URL, Timeout: cfg.Anki.Timeout()})
	if err := client.RenameDeck(ctx, from, to); err != nil {
		return err
	}
	fmt.Fprintf(out, "Renamed deck '%s' to '%s'\n", from, to)
	return nil
}

func normalizeTag(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "#")
}

// configMap renders the configuration as nested maps for key lookups.
func configMap(cfg *Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func lookupKey(m map[string]any, key string) (any, error) {
	var current any = m
	for _, part := range strings.Split(key, ".") {
		section, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unknown config key %q", key)
		}
		current, ok = section[part]
		if !ok {
			return nil, fmt.Errorf("unknown config key %q", key)
		}
	}
	return current, nil
}

func setKey(m map[string]any, key string, value any) error {
	parts := strings.Split(key, ".")
	current := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return fmt.Errorf("unknown config key %q", key)
		}
		current = next
	}
	leaf := parts[len(parts)-1]
	if _, ok := current[leaf]; !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	current[leaf] = value
	return nil
}

// coerceValue converts the raw string to the type of the current value.
func coerceValue(raw string, current any) (any, error) {
	switch current.(type) {
	case bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", raw)
		}
		return v, nil
	case int:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		return v, nil
	case float64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return v, nil
	case []any:
		if strings.TrimSpace(raw) == "" {
			return []any{}, nil
		}
		parts := strings.Split(raw, ",")
		list := make([]any, 0, len(parts))
		for _, p := range parts {
			list = append(list, strings.TrimSpace(p))
		}
		return list, nil
	default:
		return raw, nil
	}
}
