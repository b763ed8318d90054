// Package document composes panel render state into a self-contained
// HTML document.
//
// Compose is a pure function: the same State, Options and marker always
// produce the same bytes. The marker is the only intentionally unique part
// of a document; hosts use it to recognise a re-render whose content is
// otherwise unchanged.
package document

import (
	"fmt"
	"strconv"

	"golang.org/x/net/html"
)

// PreviewURI identifies the live panel document to content observers.
const PreviewURI = "livecode://authority/preview"

// stableMarkerID is a second hidden marker present in every document.
// Hosts that diff by element id misrender without it.
const stableMarkerID = "739177969589762537283729281"

// spacerHeightPx is the height of the trailing spacer that lets the last
// lines of the source scroll into alignment.
const spacerHeightPx = 960

// Placement controls where print output goes relative to the variables.
type Placement string

const (
	// PlacementTop renders print output, then errors, then variables.
	PlacementTop Placement = "top"
	// PlacementBottom renders variables, then errors, then print output.
	PlacementBottom Placement = "bottom"
)

// Options configures document composition.
type Options struct {
	// ID identifies the document to content observers.
	ID string

	// Title is the document title.
	Title string

	// StylesheetHref is the base stylesheet URL.
	StylesheetHref string

	// RendererScriptSrc is the URL of the JSON tree renderer script.
	RendererScriptSrc string

	// ExtraScripts are additional script URLs a host needs in the head.
	ExtraScripts []string

	// PrintPlacement orders the print and variables regions.
	PrintPlacement Placement

	// ShowFooter is accepted for compatibility; no footer is rendered.
	ShowFooter bool

	// ShowToLevel is the depth the variables tree starts expanded to.
	ShowToLevel int

	// MaxStringLength truncates long strings in the variables tree.
	MaxStringLength int

	// SlowerColor and FasterColor colour the timing indicator.
	SlowerColor string
	FasterColor string
}

// DefaultOptions returns the default composition options.
func DefaultOptions() Options {
	return Options{
		ID:                PreviewURI,
		Title:             "LiveCode",
		StylesheetHref:    "media/livecode.css",
		RendererScriptSrc: "media/jsonRenderer.js",
		PrintPlacement:    PlacementTop,
		ShowToLevel:       2,
		MaxStringLength:   70,
		SlowerColor:       "#ff0000",
		FasterColor:       "#008000",
	}
}

// Document is one materialized panel document.
type Document struct {
	// ID identifies the document to content observers.
	ID string

	// HTML is the complete markup.
	HTML string

	// Marker is the per-render unique id embedded in HTML.
	Marker string

	// ScrollOffset is the vertical offset the document scrolls to on load.
	ScrollOffset int
}

// String returns the document markup.
func (d Document) String() string {
	return d.HTML
}

// Compose renders s into a document. It does not modify s.
func Compose(s *State, opts Options, marker string) Document {
	offset := s.Scroll.Offset()

	head := headNodes(s, opts, offset)

	body := regions(s, opts)
	body = append(body,
		div(attrs("class", "spacer", "style", "height:"+strconv.Itoa(spacerHeightPx)+"px")),
		timing(s, opts),
	)
	body = append(body, markers(marker)...)

	return Document{
		ID:           documentID(opts),
		HTML:         render(page(head, body)),
		Marker:       marker,
		ScrollOffset: offset,
	}
}

func documentID(opts Options) string {
	if opts.ID == "" {
		return PreviewURI
	}
	return opts.ID
}

func headNodes(s *State, opts Options, offset int) []*html.Node {
	head := []*html.Node{elem("title", nil, text(opts.Title))}
	if opts.StylesheetHref != "" {
		head = append(head, elem("link", attrs("rel", "stylesheet", "type", "text/css", "href", opts.StylesheetHref)))
	}
	head = append(head, style(s.CustomStyle))
	if opts.RendererScriptSrc != "" {
		head = append(head, elem("script", attrs("src", opts.RendererScriptSrc)))
	}
	for _, src := range opts.ExtraScripts {
		head = append(head, elem("script", attrs("src", src)))
	}
	head = append(head, script(directive(s, opts, offset)))
	return head
}

// directive is the inline script that renders the variables tree, scrolls
// to the target offset once, then follows inbound line messages.
func directive(s *State, opts Options, offset int) string {
	vars := "null"
	if len(s.Variables) > 0 {
		vars = string(s.Variables)
	}
	return fmt.Sprintf(`
window.onload = function(){
    var userVars = %s;
    if (userVars !== null) {
        var jsonRenderer = renderjson.set_icons('+', '-')
            .set_show_to_level(%d)
            .set_max_string_length(%d);
        document.getElementById("results").appendChild(jsonRenderer(userVars));
    }
    window.scrollTo(0, %d);
    window.addEventListener("message", function(event){
        window.scrollTo(0, %d * event.data.line);
    });
};
`, vars, opts.ShowToLevel, opts.MaxStringLength, offset, s.Scroll.OffsetFor(1))
}

// regions returns the print, error and variables regions in configured order.
// Print and error are always adjacent.
func regions(s *State, opts Options) []*html.Node {
	printRegion := printNodes(s)
	errorRegion := fragment(div(attrs("id", "error")), s.Error)
	variables := []*html.Node{
		div(attrs("id", "break"), br()),
		div(attrs("id", "results")),
	}

	var out []*html.Node
	if opts.PrintPlacement == PlacementBottom {
		out = append(out, variables...)
		out = append(out, errorRegion)
		out = append(out, printRegion...)
		return out
	}
	out = append(out, printRegion...)
	out = append(out, errorRegion)
	out = append(out, variables...)
	return out
}

func printNodes(s *State) []*html.Node {
	heading := []*html.Node{br(), elem("h3", nil, text("Print Output:"))}
	if s.Print == "" {
		return append(heading, div(attrs("id", "print")))
	}
	return append(heading, fragment(div(attrs("class", "print")), s.Print))
}

func timing(s *State, opts Options) *html.Node {
	if !s.HasTiming {
		return nil
	}
	color := opts.FasterColor
	if s.Trend() == TrendSlower {
		color = opts.SlowerColor
	}
	return elem("p",
		attrs("style", "position:fixed;left:93%;top:96%;color:"+color+";"),
		text(strconv.FormatInt(s.ElapsedMillis, 10)+" ms"),
	)
}

func markers(marker string) []*html.Node {
	return []*html.Node{
		div(attrs("id", marker, "style", "display:none")),
		div(attrs("id", stableMarkerID, "style", "display:none")),
	}
}
