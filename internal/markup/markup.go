// Package markup converts oracle card text into HTML the flashcard
// application renders: fenced code blocks become <pre><code> elements,
// inline code becomes <code>, and plain newlines become <br>.
package markup

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	fenceRe  = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\\n?(.*?)```")
	inlineRe = regexp.MustCompile("`([^`\n]+)`")
)

// Render produces flashcard-ready HTML. With highlight enabled, fenced
// blocks carry a language-<lang> class for syntax highlighters.
func Render(text string, highlight bool) string {
	if text == "" {
		return ""
	}

	// Pull fenced blocks out first so their contents escape the
	// inline-code and newline passes untouched.
	var blocks []string
	text = fenceRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := fenceRe.FindStringSubmatch(m)
		lang, code := sub[1], strings.TrimRight(sub[2], "\n")
		var b string
		if highlight && lang != "" {
			b = fmt.Sprintf(`<pre><code class="language-%s">%s</code></pre>`, lang, html.EscapeString(code))
		} else {
			b = fmt.Sprintf("<pre><code>%s</code></pre>", html.EscapeString(code))
		}
		blocks = append(blocks, b)
		return placeholder(len(blocks) - 1)
	})

	text = inlineRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := inlineRe.FindStringSubmatch(m)
		return "<code>" + html.EscapeString(sub[1]) + "</code>"
	})

	text = strings.ReplaceAll(text, "\n", "<br>")

	for i, b := range blocks {
		text = strings.Replace(text, placeholder(i), b, 1)
	}
	return text
}

func placeholder(i int) string {
	return fmt.Sprintf("\x00block%d\x00", i)
}
