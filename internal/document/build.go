package document

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// elem creates an element node with the given attributes and children.
func elem(tag string, attrs []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
	for _, c := range children {
		if c != nil {
			n.AppendChild(c)
		}
	}
	return n
}

// attrs builds an attribute list from key/value pairs.
func attrs(kv ...string) []html.Attribute {
	out := make([]html.Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return out
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func div(a []html.Attribute, children ...*html.Node) *html.Node {
	return elem("div", a, children...)
}

func br() *html.Node {
	return elem("br", nil)
}

// script creates an inline script. "</" is rewritten so the body can
// never close its own element.
func script(body string) *html.Node {
	return elem("script", nil, text(strings.ReplaceAll(body, "</", `<\/`)))
}

// style creates an inline stylesheet with the same closing-tag guard.
func style(css string) *html.Node {
	return elem("style", nil, text(strings.ReplaceAll(css, "</", `<\/`)))
}

// fragment parses trusted markup into children of parent.
func fragment(parent *html.Node, markup string) *html.Node {
	if markup == "" {
		return parent
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		// ParseFragment only fails on reader errors.
		parent.AppendChild(text(markup))
		return parent
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	return parent
}

// render serializes a document tree.
func render(root *html.Node) string {
	var b strings.Builder
	// Rendering into a strings.Builder cannot fail.
	_ = html.Render(&b, root)
	return b.String()
}

// page assembles the doctype, head and body into a document tree.
func page(head, body []*html.Node) *html.Node {
	root := &html.Node{Type: html.DocumentNode}
	root.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	root.AppendChild(elem("html", attrs("lang", "en"),
		elem("head", nil, head...),
		elem("body", nil, body...),
	))
	return root
}
