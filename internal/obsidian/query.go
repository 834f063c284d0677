package obsidian

import (
	"fmt"
	"strings"
)

// noteProjection is the table shape every query shares; Search relies on
// these column aliases when decoding rows.
const noteProjection = `TABLE file.name AS "filename", file.path AS "path", file.mtime AS "mtime", file.size AS "size", file.tags AS "tags" FROM ""`

// NotesQuery assembles a full DQL query from a WHERE condition and a SORT
// clause. An empty condition selects the whole vault.
func NotesQuery(where, sort string) string {
	q := noteProjection
	if where != "" {
		q += " WHERE " + where
	}
	if sort != "" {
		q += " SORT " + sort
	}
	return q
}

// OlderThanFilter selects notes untouched for days with a minimum size.
// The size floor keeps stubs and empty dailies out of the sampling pool.
func OlderThanFilter(days, minSize int) string {
	return fmt.Sprintf("file.mtime < date(today) - dur(%d days) AND file.size > %d", days, minSize)
}

// FolderFilter restricts results to the allow-listed folders.
func FolderFilter(folders []string) string {
	if len(folders) == 0 {
		return ""
	}
	parts := make([]string, 0, len(folders))
	for _, f := range folders {
		f = strings.TrimSuffix(f, "/")
		parts = append(parts, fmt.Sprintf("startswith(file.path, %q)", f+"/"))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// ExcludedTagFilter drops notes carrying any excluded tag.
func ExcludedTagFilter(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, fmt.Sprintf("!contains(file.tags, %q)", "#"+strings.TrimPrefix(t, "#")))
	}
	return strings.Join(parts, " AND ")
}

// PatternFilter translates a glob-style name pattern into DQL predicates.
func PatternFilter(pattern string) string {
	switch {
	case !strings.Contains(pattern, "*"):
		return NameFilter(pattern)
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*"):
		inner := strings.Trim(pattern, "*")
		return fmt.Sprintf("contains(file.name, %q)", inner)
	case strings.HasSuffix(pattern, "*"):
		return fmt.Sprintf("startswith(file.name, %q)", strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*"):
		return fmt.Sprintf("endswith(file.name, %q)", strings.TrimPrefix(pattern, "*"))
	default:
		// Interior wildcard: require every literal part in order-insensitive form.
		parts := strings.Split(pattern, "*")
		var conds []string
		for _, p := range parts {
			if p == "" {
				continue
			}
			conds = append(conds, fmt.Sprintf("contains(file.name, %q)", p))
		}
		return strings.Join(conds, " AND ")
	}
}

// NameFilter matches a note name exactly.
func NameFilter(name string) string {
	return fmt.Sprintf("file.name = %q", name)
}

// NameContainsFilter matches a note name case-insensitively by substring.
func NameContainsFilter(name string) string {
	return fmt.Sprintf("contains(lower(file.name), lower(%q))", name)
}

func combineAnd(conds ...string) string {
	var nonEmpty []string
	for _, c := range conds {
		if c != "" {
			nonEmpty = append(nonEmpty, c)
		}
	}
	return strings.Join(nonEmpty, " AND ")
}
