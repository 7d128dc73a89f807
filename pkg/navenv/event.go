package navenv

import "strings"

// Element is the subset of a DOM element the click interceptor inspects.
//
// Attrs holds HTML attributes. Props holds JavaScript properties that were
// set directly on the element without a matching attribute (the "scope"
// marker may be either).
type Element struct {
	Tag    string
	Attrs  map[string]string
	Props  map[string]string
	Parent *Element
}

// Anchor returns an <a> element with the given href.
func Anchor(href string) *Element {
	return &Element{Tag: "A", Attrs: map[string]string{"href": href}}
}

// IsAnchor reports whether e is an <a> element.
func (e *Element) IsAnchor() bool {
	return e != nil && strings.EqualFold(e.Tag, "a")
}

// Attr returns the attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	if e == nil || e.Attrs == nil {
		return "", false
	}
	v, ok := e.Attrs[name]
	return v, ok
}

// HasAttr reports whether the attribute is present.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// Prop returns the property value and whether it was set.
func (e *Element) Prop(name string) (string, bool) {
	if e == nil || e.Props == nil {
		return "", false
	}
	v, ok := e.Props[name]
	return v, ok
}

// SetAttr sets an attribute and returns e for chaining.
func (e *Element) SetAttr(name, value string) *Element {
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	e.Attrs[name] = value
	return e
}

// SetProp sets a property and returns e for chaining.
func (e *Element) SetProp(name, value string) *Element {
	if e.Props == nil {
		e.Props = make(map[string]string)
	}
	e.Props[name] = value
	return e
}

// Append makes child a child of e and returns child.
func (e *Element) Append(child *Element) *Element {
	child.Parent = e
	return child
}

// Closest returns the nearest anchor among e and its ancestors.
func (e *Element) Closest() *Element {
	for n := e; n != nil; n = n.Parent {
		if n.IsAnchor() {
			return n
		}
	}
	return nil
}

// ClickEvent is a click bubbling to the document body.
type ClickEvent struct {
	Target *Element

	// ComposedPath is the full propagation path including nodes across
	// shadow boundaries, target first. Nil means the normal ancestry.
	ComposedPath []*Element

	Button   int
	MetaKey  bool
	CtrlKey  bool
	ShiftKey bool

	defaultPrevented bool
}

// NewClick returns a primary-button click on target.
func NewClick(target *Element) *ClickEvent {
	return &ClickEvent{Target: target}
}

// Kind implements Event.
func (*ClickEvent) Kind() EventKind { return EventClick }

// PreventDefault suppresses the browser's default navigation.
func (e *ClickEvent) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether PreventDefault was called.
func (e *ClickEvent) DefaultPrevented() bool {
	return e.defaultPrevented
}

// Path returns ComposedPath, or the target's ancestry when unset.
func (e *ClickEvent) Path() []*Element {
	if e.ComposedPath != nil {
		return e.ComposedPath
	}
	var path []*Element
	for n := e.Target; n != nil; n = n.Parent {
		path = append(path, n)
	}
	return path
}

// PopStateEvent fires on history traversal.
type PopStateEvent struct {
	State State
}

// Kind implements Event.
func (*PopStateEvent) Kind() EventKind { return EventPopState }

// HashChangeEvent fires when the location fragment changes.
type HashChangeEvent struct {
	OldURL string
	NewURL string
}

// Kind implements Event.
func (*HashChangeEvent) Kind() EventKind { return EventHashChange }
