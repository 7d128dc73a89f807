package protocol

import (
	"github.com/vango-dev/urlobserver/pkg/navenv"
)

// Hello is sent by the client once the socket is open.
type Hello struct {
	Href    string `json:"href"`
	BaseURI string `json:"baseURI,omitempty"`
	Top     bool   `json:"top"`
}

// Node is one element of a click's propagation path.
type Node struct {
	Tag   string            `json:"tag"`
	Attrs map[string]string `json:"attrs,omitempty"`
	Props map[string]string `json:"props,omitempty"`
}

// Click reports a click on the document body. Path runs from the target
// outwards and may cross shadow boundaries.
type Click struct {
	Button           int    `json:"button"`
	MetaKey          bool   `json:"metaKey"`
	CtrlKey          bool   `json:"ctrlKey"`
	ShiftKey         bool   `json:"shiftKey"`
	DefaultPrevented bool   `json:"defaultPrevented"`
	Path             []Node `json:"path"`
}

// Event builds the click event seen by listeners. Each node's parent is the
// next node in Path, and Path is also the composed path.
func (c Click) Event() *navenv.ClickEvent {
	elems := make([]*navenv.Element, len(c.Path))
	for i, n := range c.Path {
		elems[i] = &navenv.Element{Tag: n.Tag, Attrs: n.Attrs, Props: n.Props}
	}
	for i := 0; i+1 < len(elems); i++ {
		elems[i].Parent = elems[i+1]
	}

	ev := &navenv.ClickEvent{
		ComposedPath: elems,
		Button:       c.Button,
		MetaKey:      c.MetaKey,
		CtrlKey:      c.CtrlKey,
		ShiftKey:     c.ShiftKey,
	}
	if len(elems) > 0 {
		ev.Target = elems[0]
	}
	if c.DefaultPrevented {
		ev.PreventDefault()
	}
	return ev
}

// PopState reports a history traversal.
type PopState struct {
	Href  string       `json:"href"`
	State navenv.State `json:"state,omitempty"`
}

// HashChange reports a fragment navigation.
type HashChange struct {
	Href   string `json:"href"`
	OldURL string `json:"oldURL,omitempty"`
}

// Navigate is the payload of push and replace.
type Navigate struct {
	URL   string       `json:"url"`
	State navenv.State `json:"state"`
}

// Native tells the client to perform a navigation itself.
type Native struct {
	URL      string `json:"url"`
	Target   string `json:"target,omitempty"`
	Download bool   `json:"download,omitempty"`
}

// Event is a custom event to dispatch on the client window.
type Event struct {
	Name   string `json:"name"`
	Detail any    `json:"detail,omitempty"`
}

// ErrorMessage is sent when the server rejects a frame or a connection.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal,omitempty"`
}
