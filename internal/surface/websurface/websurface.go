// Package websurface serves the panel to a browser.
//
// The current document is served at "/". A websocket at "/ws" pushes a
// reload message after each content assignment and forwards outbound
// scroll messages; the embedded bridge script turns those into
// window.postMessage calls the document already listens for. Inbound line
// events arrive over the websocket or as POST /line?n=N.
package websurface

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dshills/livecode/internal/document"
	"github.com/dshills/livecode/internal/scroll"
	"github.com/dshills/livecode/internal/surface"
)

//go:embed media
var mediaFS embed.FS

// Media paths referenced by panel documents served from this surface.
const (
	StylesheetHref    = "media/livecode.css"
	RendererScriptSrc = "media/jsonRenderer.js"
	BridgeScriptSrc   = "media/bridge.js"
)

// Media returns the stylesheet and scripts documents reference, rooted so
// that StylesheetHref is "media/" + a path in the returned FS.
func Media() fs.FS {
	media, err := fs.Sub(mediaFS, "media")
	if err != nil {
		// The embedded directory always exists.
		panic(err)
	}
	return media
}

// sendBuffer bounds queued outbound messages per client. A client that
// falls this far behind misses messages; the next reload resynchronises it.
const sendBuffer = 16

const writeTimeout = 5 * time.Second

// Message types on the websocket.
const (
	typeReload = "reload"
	typeScroll = "scroll"
	typeLine   = "line"
)

// wireMessage is the JSON envelope exchanged with the bridge script.
type wireMessage struct {
	Type string `json:"type"`
	Line int    `json:"line,omitempty"`
}

// Option configures a Surface.
type Option func(*Surface)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Surface) {
		s.logger = logger
	}
}

// Surface is a browser-hosted panel surface. It implements http.Handler.
type Surface struct {
	surface.Callbacks

	logger   *slog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu      sync.Mutex
	label   string
	doc     document.Document
	clients map[*client]struct{}
	server  *http.Server
}

type client struct {
	conn *websocket.Conn
	send chan wireMessage
	done chan struct{}
}

// New creates a surface. It serves nothing until mounted on an
// http.Server or passed to a Host.
func New(label string, opts ...Option) *Surface {
	s := &Surface{
		logger:  slog.New(slog.DiscardHandler),
		label:   label,
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /{$}", s.handleDocument)
	s.mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.FS(Media()))))
	s.mux.HandleFunc("GET /ws", s.handleWebsocket)
	s.mux.HandleFunc("POST /line", s.handleLine)
	s.mux.HandleFunc("POST /close", s.handleClose)
	return s
}

// Label returns the label the surface was opened with.
func (s *Surface) Label() string {
	return s.label
}

// ServeHTTP implements http.Handler.
func (s *Surface) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Document returns the current document.
func (s *Surface) Document() document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Clients returns the number of connected websocket clients.
func (s *Surface) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// SetContent stores doc and tells connected clients to reload.
func (s *Surface) SetContent(doc document.Document) error {
	if s.Disposed() {
		return surface.ErrDisposed
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()

	s.broadcast(wireMessage{Type: typeReload})
	return nil
}

// PostMessage forwards a scroll message to connected clients.
func (s *Surface) PostMessage(msg scroll.Message) error {
	if s.Disposed() {
		return nil
	}
	s.broadcast(wireMessage{Type: typeScroll, Line: msg.Line})
	return nil
}

// Dispose closes client connections, stops the server if the surface owns
// one, and runs dispose handlers.
func (s *Surface) Dispose() error {
	if !s.FireDispose() {
		return nil
	}

	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*client]struct{})
	server := s.server
	s.server = nil
	s.mu.Unlock()

	for c := range clients {
		close(c.done)
	}

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// broadcast queues msg for every client without blocking.
func (s *Surface) broadcast(msg wireMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.logger.Warn("websurface client lagging, message dropped", "type", msg.Type)
		}
	}
}

func (s *Surface) handleDocument(w http.ResponseWriter, r *http.Request) {
	if s.Disposed() {
		http.Error(w, "panel closed", http.StatusGone)
		return
	}
	doc := s.Document()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(doc.HTML))
}

func (s *Surface) handleLine(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil {
		http.Error(w, "invalid line", http.StatusBadRequest)
		return
	}
	s.lineReceived(n)
	w.WriteHeader(http.StatusNoContent)
}

// lineReceived scrolls the live document to line now and queues the event
// for the composer, which applies it to the next document.
func (s *Surface) lineReceived(line int) {
	if s.Disposed() {
		return
	}
	if line < 0 {
		line = 0
	}
	s.broadcast(wireMessage{Type: typeScroll, Line: line})
	s.FireMessage(scroll.Message{Line: line})
}

func (s *Surface) handleClose(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
	// Dispose may shut down the server serving this request.
	go func() {
		if err := s.Dispose(); err != nil {
			s.logger.Warn("websurface dispose failed", "error", err)
		}
	}()
}

func (s *Surface) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if s.Disposed() {
		http.Error(w, "panel closed", http.StatusGone)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan wireMessage, sendBuffer),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug("websurface client connected", "remote", r.RemoteAddr)

	go s.writeLoop(c)
	s.readLoop(c)
}

func (s *Surface) writeLoop(c *client) {
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				s.logger.Debug("websurface write failed", "error", err)
				s.remove(c)
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		}
	}
}

func (s *Surface) readLoop(c *client) {
	for {
		var msg wireMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websurface read failed", "error", err)
			}
			s.remove(c)
			return
		}
		if msg.Type == typeLine {
			s.lineReceived(msg.Line)
		}
	}
}

// remove unregisters c and stops its writer.
func (s *Surface) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.done)
	}
}

// Host opens surfaces served on a TCP address, one server per surface.
type Host struct {
	Addr   string
	Logger *slog.Logger

	mu   sync.Mutex
	last *Surface
	url  string
}

// NewHost creates a host listening on addr.
func NewHost(addr string, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Host{Addr: addr, Logger: logger}
}

// URL returns the address of the most recently opened surface.
func (h *Host) URL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.url
}

// Open starts serving a new surface. A previously opened surface is
// disposed first so the address can be reused.
func (h *Host) Open(label string) (surface.Surface, error) {
	h.mu.Lock()
	prev := h.last
	h.mu.Unlock()
	if prev != nil {
		_ = prev.Dispose()
	}

	ln, err := net.Listen("tcp", h.Addr)
	if err != nil {
		return nil, err
	}

	s := New(label, WithLogger(h.Logger))
	server := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.Logger.Error("websurface server stopped", "error", err)
		}
	}()

	h.mu.Lock()
	h.last = s
	h.url = "http://" + ln.Addr().String() + "/"
	h.mu.Unlock()

	h.Logger.Info("panel available", "url", "http://"+ln.Addr().String()+"/", "label", label)
	return s, nil
}
