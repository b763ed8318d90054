// Package scroll keeps the rendered panel aligned with the evaluated source line.
//
// A Link maps a target line to a vertical pixel offset. A Relay carries
// scroll messages in both directions: outbound line updates are posted to
// the live surface, inbound line events from the surface are queued on a
// single-consumer channel and applied to the Link before the next document
// is composed.
package scroll

import (
	"sync/atomic"
)

// DefaultLineHeightPx is the editor line height the panel aligns to.
const DefaultLineHeightPx = 19

// Link maps a source line to a vertical offset in the rendered document.
// The zero value uses DefaultLineHeightPx and targets line 0.
type Link struct {
	LineHeightPx int
	target       int
}

// NewLink creates a Link with the given line height.
func NewLink(lineHeightPx int) Link {
	return Link{LineHeightPx: lineHeightPx}
}

// Target returns the current target line.
func (l *Link) Target() int {
	return l.target
}

// SetTarget sets the target line. Negative lines clamp to 0.
func (l *Link) SetTarget(line int) {
	if line < 0 {
		line = 0
	}
	l.target = line
}

// Offset returns the pixel offset for the current target.
func (l *Link) Offset() int {
	return l.OffsetFor(l.target)
}

// OffsetFor returns the pixel offset for an arbitrary line.
func (l *Link) OffsetFor(line int) int {
	return l.lineHeight() * line
}

func (l *Link) lineHeight() int {
	if l.LineHeightPx <= 0 {
		return DefaultLineHeightPx
	}
	return l.LineHeightPx
}

// Message is a fire-and-forget scroll instruction carrying a line number.
type Message struct {
	Line int `json:"line"`
}

// Poster delivers outbound messages to a live surface.
type Poster interface {
	PostMessage(msg Message) error
}

// defaultInboxSize bounds queued inbound events. Only the newest event
// matters, so overflow evicts the oldest queued one.
const defaultInboxSize = 64

// Relay moves scroll messages between the composer and its surface.
//
// Inbound events may be delivered from any goroutine. Sync, SetTarget and
// Dispose belong to the composer's logical thread.
type Relay struct {
	link     *Link
	poster   Poster
	inbox    chan Message
	disposed atomic.Bool
}

// NewRelay creates a relay over link. poster may be nil until a surface
// is attached with Attach.
func NewRelay(link *Link, poster Poster) *Relay {
	return &Relay{
		link:   link,
		poster: poster,
		inbox:  make(chan Message, defaultInboxSize),
	}
}

// Attach sets the surface that receives outbound messages.
func (r *Relay) Attach(poster Poster) {
	r.poster = poster
}

// Deliver queues an inbound line event without blocking. It reports
// whether the event was accepted; events after Dispose are dropped.
func (r *Relay) Deliver(msg Message) bool {
	if r.disposed.Load() {
		return false
	}
	for {
		select {
		case r.inbox <- msg:
			return true
		default:
		}
		select {
		case <-r.inbox:
		default:
		}
	}
}

// Sync drains queued inbound events and applies the newest one to the
// link. It returns true if the target changed. The change affects the
// next composed document, never one already composed.
func (r *Relay) Sync() bool {
	before := r.link.Target()
	for {
		select {
		case msg := <-r.inbox:
			r.link.SetTarget(msg.Line)
		default:
			return r.link.Target() != before
		}
	}
}

// SetTarget records line as the target for the next document and tells
// the live surface to scroll there now. Inbound events queued before the
// call are applied first, so line wins over them. A disposed or detached
// surface is skipped silently.
func (r *Relay) SetTarget(line int) error {
	r.Sync()
	r.link.SetTarget(line)
	if r.disposed.Load() || r.poster == nil {
		return nil
	}
	return r.poster.PostMessage(Message{Line: r.link.Target()})
}

// Dispose stops outbound delivery and rejects further inbound events.
func (r *Relay) Dispose() {
	r.disposed.Store(true)
}

// Disposed reports whether Dispose has been called.
func (r *Relay) Disposed() bool {
	return r.disposed.Load()
}
