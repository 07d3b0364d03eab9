package feed

import (
	"strings"

	"golang.org/x/net/html"
)

// htmlToMarkdown converts the feed's HTML description into Discord markdown.
// The feed prefixes every description with a table of affected trains ending
// in a double line break; that leading block is dropped. Bold, italic and
// strikethrough carry over, <br> becomes a newline, every other tag is
// removed and its text kept.
func htmlToMarkdown(input string) string {
	tok := html.NewTokenizer(strings.NewReader(input))

	var b strings.Builder
	brRun := 0 // consecutive <br> tags, ignoring whitespace between them
	cut := -1  // output offset just past the first <br><br>

	for {
		switch tok.Next() {
		case html.ErrorToken:
			out := b.String()
			if cut >= 0 {
				out = out[cut:]
			}
			return strings.TrimSpace(out)

		case html.TextToken:
			text := string(tok.Text())
			if strings.TrimSpace(text) != "" {
				brRun = 0
			}
			b.WriteString(text)

		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := tok.TagName()
			switch string(name) {
			case "br":
				b.WriteString("\n")
				brRun++
				if brRun == 2 && cut < 0 {
					cut = b.Len()
				}
			case "b":
				b.WriteString("**")
				brRun = 0
			case "i":
				b.WriteString("*")
				brRun = 0
			case "s":
				b.WriteString("~~")
				brRun = 0
			default:
				brRun = 0
			}
		}
	}
}
