package document

import (
	"golang.org/x/net/html"
)

const simpleListExample = `
x = [1,2,3]
y = [num*2 for num in x]
print(y)
`

const webCallExample = `
import requests
import datetime as dt

r = requests.get("https://api.github.com")

#$save
# #$save saves state so request is not re-executed when modifying below

now = dt.datetime.now()
if r.status_code == 200:
    print("API up at " + str(now))
`

// Landing renders the help document shown before the first evaluation.
func Landing(label string, opts Options, marker string) Document {
	title := opts.Title
	if label != "" {
		title += " - " + label
	}

	head := []*html.Node{elem("title", nil, text(title))}
	if opts.StylesheetHref != "" {
		head = append(head, elem("link", attrs("rel", "stylesheet", "type", "text/css", "href", opts.StylesheetHref)))
	}
	for _, src := range opts.ExtraScripts {
		head = append(head, elem("script", attrs("src", src)))
	}

	para := func(children ...*html.Node) *html.Node {
		return elem("p", attrs("style", "font-size:14px"), children...)
	}
	code := func(src string) *html.Node {
		return elem("code", attrs("style", "white-space:pre-wrap"), text(src))
	}

	body := []*html.Node{
		br(),
		para(text("Start typing or make a change and your code will be evaluated.")),
		para(
			text("⚠ "),
			elem("b", attrs("style", "color:red"), text("WARNING:")),
			text(" code is evaluated WHILE YOU TYPE - don't try deleting files/folders! ⚠"),
		),
		elem("p", nil, text("evaluation while you type can be turned off or adjusted in the settings")),
		br(),
		elem("h3", nil, text("Examples")),
		elem("h4", nil, text("Simple List")),
		code(simpleListExample),
		elem("h4", nil, text("Web call")),
		code(webCallExample),
	}
	body = append(body, markers(marker)...)

	return Document{
		ID:     documentID(opts),
		HTML:   render(page(head, body)),
		Marker: marker,
	}
}
