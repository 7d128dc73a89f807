// Package wsenv hosts an urlobserver.Observer for a remote browser tab
// connected over a WebSocket.
//
// The tab suppresses its own link clicks and reports them, together with
// popstate and hashchange, as protocol frames. Conn turns those frames into
// navenv events and sends history mutations and custom events back.
package wsenv

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/urlobserver/internal/errors"
	"github.com/vango-dev/urlobserver/pkg/navenv"
	"github.com/vango-dev/urlobserver/pkg/protocol"
)

// writeTimeout bounds a single frame write.
const writeTimeout = 10 * time.Second

type registration struct {
	id int
	fn navenv.Listener
}

// Conn is a navenv.Environment backed by a WebSocket connection. Location
// and history state mirror what the client last reported or was told.
type Conn struct {
	id     string
	ws     *websocket.Conn
	logger *slog.Logger
	start  time.Time

	writeMu sync.Mutex

	mu        sync.Mutex
	location  *url.URL
	base      *url.URL
	top       bool
	listeners map[navenv.EventKind][]registration
	nextID    int
	closed    bool
}

func newConn(id string, ws *websocket.Conn, hello protocol.Hello, logger *slog.Logger) (*Conn, error) {
	loc, err := url.Parse(hello.Href)
	if err != nil || !loc.IsAbs() {
		return nil, errors.New("E302").WithDetail("hello href %q is not an absolute URL", hello.Href)
	}
	c := &Conn{
		id:        id,
		ws:        ws,
		logger:    logger.With("conn", id),
		start:     time.Now(),
		location:  loc,
		top:       hello.Top,
		listeners: make(map[navenv.EventKind][]registration),
	}
	if hello.BaseURI != "" {
		if base, err := url.Parse(hello.BaseURI); err == nil {
			c.base = loc.ResolveReference(base)
		}
	}
	return c, nil
}

// ID returns the connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// Location implements navenv.Environment.
func (c *Conn) Location() *url.URL {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := *c.location
	return &u
}

// BaseURI implements navenv.Environment.
func (c *Conn) BaseURI() *url.URL {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base == nil {
		return nil
	}
	u := *c.base
	return &u
}

// IsTopLevel implements navenv.Environment.
func (c *Conn) IsTopLevel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.top
}

// PushState implements navenv.Environment.
func (c *Conn) PushState(state navenv.State, rawURL string) {
	c.setLocation(rawURL)
	c.send(protocol.FramePush, protocol.Navigate{URL: rawURL, State: state})
}

// ReplaceState implements navenv.Environment.
func (c *Conn) ReplaceState(state navenv.State, rawURL string) {
	c.setLocation(rawURL)
	c.send(protocol.FrameReplace, protocol.Navigate{URL: rawURL, State: state})
}

// AddEventListener implements navenv.Environment.
func (c *Conn) AddEventListener(kind navenv.EventKind, l navenv.Listener) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[kind] = append(c.listeners[kind], registration{id: id, fn: l})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		regs := c.listeners[kind]
		for i, r := range regs {
			if r.id == id {
				c.listeners[kind] = append(regs[:i:i], regs[i+1:]...)
				return
			}
		}
	}
}

// Dispatch implements navenv.Environment by forwarding the event to the
// client.
func (c *Conn) Dispatch(name string, detail any) {
	c.send(protocol.FrameEvent, protocol.Event{Name: name, Detail: detail})
}

// Now implements navenv.Environment.
func (c *Conn) Now() time.Duration {
	return time.Since(c.start)
}

func (c *Conn) setLocation(rawURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	c.location = c.location.ResolveReference(ref)
}

// send writes one frame. Failures are logged; the read loop notices a dead
// socket and ends the connection.
func (c *Conn) send(ft protocol.FrameType, payload any) {
	msg, err := protocol.Encode(ft, payload)
	if err != nil {
		c.logger.Error("encode frame", "type", ft, "error", err)
		return
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		c.logger.Debug("write frame", "type", ft, "error", err)
	}
}

func (c *Conn) sendError(err error, fatal bool) {
	c.send(protocol.FrameError, protocol.ErrorFrame(err, fatal))
}

func (c *Conn) fire(ctx context.Context, ev navenv.Event) {
	c.mu.Lock()
	regs := append([]registration(nil), c.listeners[ev.Kind()]...)
	c.mu.Unlock()

	for _, r := range regs {
		r.fn(ctx, ev)
	}
}

// readLoop pumps client frames into listeners until the socket fails or ctx
// is done.
func (c *Conn) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if stderrors.Is(err, websocket.ErrReadLimit) {
				c.sendError(errors.New("E301").Wrap(err), true)
			} else if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.logger.Error("read error", "error", err)
			}
			return
		}

		frame, err := protocol.Decode(msg)
		if err != nil {
			c.logger.Warn("frame decode error", "error", err)
			c.sendError(err, false)
			continue
		}
		if err := c.handleFrame(ctx, frame); err != nil {
			c.logger.Warn("frame rejected", "type", frame.Type, "error", err)
			c.sendError(err, false)
		}
	}
}

func (c *Conn) handleFrame(ctx context.Context, frame protocol.Frame) error {
	switch frame.Type {
	case protocol.FrameClick:
		var click protocol.Click
		if err := frame.Into(&click); err != nil {
			return err
		}
		c.handleClick(ctx, click)

	case protocol.FramePopState:
		var pop protocol.PopState
		if err := frame.Into(&pop); err != nil {
			return err
		}
		if err := c.moveTo(pop.Href); err != nil {
			return err
		}
		c.fire(ctx, &navenv.PopStateEvent{State: pop.State})

	case protocol.FrameHashChange:
		var hc protocol.HashChange
		if err := frame.Into(&hc); err != nil {
			return err
		}
		if err := c.moveTo(hc.Href); err != nil {
			return err
		}
		c.fire(ctx, &navenv.HashChangeEvent{OldURL: hc.OldURL, NewURL: hc.Href})

	default:
		return errors.New("E300").WithDetail("unexpected %s frame", frame.Type)
	}
	return nil
}

// handleClick fires the click and, when no listener took it over, tells the
// client to follow the anchor natively.
func (c *Conn) handleClick(ctx context.Context, click protocol.Click) {
	ev := click.Event()
	wasPrevented := ev.DefaultPrevented()
	c.fire(ctx, ev)
	if wasPrevented || ev.DefaultPrevented() {
		return
	}

	anchor := ev.Target.Closest()
	if anchor == nil {
		for _, el := range ev.ComposedPath {
			if el.IsAnchor() {
				anchor = el
				break
			}
		}
	}
	href, ok := anchor.Attr("href")
	if !ok {
		return
	}
	ref, err := url.Parse(href)
	if err != nil {
		return
	}
	base := c.BaseURI()
	if base == nil {
		base = c.Location()
	}
	target, _ := anchor.Attr("target")
	c.send(protocol.FrameNative, protocol.Native{
		URL:      base.ResolveReference(ref).String(),
		Target:   target,
		Download: anchor.HasAttr("download"),
	})
}

func (c *Conn) moveTo(href string) error {
	u, err := url.Parse(href)
	if err != nil || !u.IsAbs() {
		return errors.New("E300").WithDetail("href %q is not an absolute URL", href)
	}
	c.mu.Lock()
	c.location = u
	c.mu.Unlock()
	return nil
}

func (c *Conn) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.Close()
}

var _ navenv.Environment = (*Conn)(nil)
