// Package textnorm turns email and page markup into the plain text handed to
// the extraction engine.
package textnorm

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const bullet = "• "

var (
	excessNewlines = regexp.MustCompile(`\n{3,}`)
	trailingSpace  = regexp.MustCompile(`[ \t]+\n`)
	forwardMarker  = regexp.MustCompile(`(?i)-{2,}\s*forwarded message\s*-{2,}`)
	subjectLine    = regexp.MustCompile(`(?im)^[ \t]*subject:.*(\r?\n|$)`)
)

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Div: true, atom.Dl: true, atom.Dt: true, atom.Dd: true, atom.Fieldset: true,
	atom.Figure: true, atom.Footer: true, atom.Form: true, atom.H1: true, atom.H2: true,
	atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true, atom.Header: true,
	atom.Hr: true, atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true,
	atom.Pre: true, atom.Section: true, atom.Table: true, atom.Tr: true, atom.Ul: true,
	atom.Li: true,
}

var skippedElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Head: true, atom.Title: true,
}

// ToPlainText converts markup to plain text. It never fails: markup the parser
// cannot make sense of degrades to its text content.
func ToPlainText(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return finish(markup)
	}

	w := &textWriter{}
	for _, n := range doc.Nodes {
		w.walk(n)
	}
	return finish(w.sb.String())
}

// StripQuotedHeader drops the mail-client preamble in front of a forwarded
// message along with the first Subject line that follows it.
func StripQuotedHeader(text string) string {
	loc := forwardMarker.FindStringIndex(text)
	if loc == nil {
		return text
	}

	rest := text[loc[1]:]
	if m := subjectLine.FindStringIndex(rest); m != nil {
		rest = rest[:m[0]] + rest[m[1]:]
	}
	return strings.TrimSpace(rest)
}

type textWriter struct {
	sb strings.Builder
	// afterBlock is set when the last emitted break came from a block boundary,
	// so a <br> immediately following it does not double the break.
	afterBlock bool
}

func (w *textWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		text := strings.ReplaceAll(n.Data, "\u00a0", " ")
		if strings.TrimSpace(text) == "" && w.atLineStart() {
			return
		}
		w.sb.WriteString(text)
		w.afterBlock = false
		return
	case html.ElementNode:
		if skippedElements[n.DataAtom] {
			return
		}
		if n.DataAtom == atom.Br {
			if !w.afterBlock {
				w.sb.WriteString("\n")
			}
			w.afterBlock = false
			return
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.DataAtom]
	if block {
		w.blockBreak()
		if n.DataAtom == atom.Li {
			w.sb.WriteString(bullet)
			w.afterBlock = false
		}
	}
	if n.Type == html.ElementNode && (n.DataAtom == atom.Td || n.DataAtom == atom.Th) && !w.atLineStart() {
		w.sb.WriteString(" ")
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}

	if block {
		w.blockBreak()
	}
}

func (w *textWriter) blockBreak() {
	if !w.atLineStart() {
		w.sb.WriteString("\n")
	}
	w.afterBlock = true
}

func (w *textWriter) atLineStart() bool {
	s := w.sb.String()
	return s == "" || strings.HasSuffix(s, "\n")
}

func finish(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = trailingSpace.ReplaceAllString(text, "\n")
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
