package browserengine

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// TrimDOMSnippet trims raw HTML to at most maxChars, preserving document
// order and dropping script/style/noscript subtrees. It is the concrete
// mechanism behind the trim_dom downgrade action: when a Budget Guard asks
// for a cheaper retry, the caller re-trims with a smaller maxChars before
// handing the snippet to observe_refresh or authoring_patch.
func TrimDOMSnippet(raw string, maxChars int) string {
	if maxChars <= 0 || len(raw) <= maxChars {
		return raw
	}

	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return raw[:maxChars]
	}

	var buf bytes.Buffer
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && isNoiseTag(n.Data) {
			return true
		}
		if n.Type == html.ElementNode {
			buf.WriteByte('<')
			buf.WriteString(n.Data)
			for _, a := range n.Attr {
				buf.WriteByte(' ')
				buf.WriteString(a.Key)
				buf.WriteString(`="`)
				buf.WriteString(a.Val)
				buf.WriteByte('"')
			}
			buf.WriteByte('>')
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				buf.WriteString(text)
				buf.WriteByte(' ')
			}
		}
		if buf.Len() >= maxChars {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(doc)

	out := buf.String()
	if len(out) > maxChars {
		out = out[:maxChars]
	}
	return out
}

func isNoiseTag(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "svg":
		return true
	}
	return false
}
