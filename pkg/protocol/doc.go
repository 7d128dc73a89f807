// Package protocol defines the JSON frames exchanged between a browser tab
// and a remote urlobserver host.
//
// Every message is one WebSocket text frame holding an envelope:
//
//	{"type": "click", "data": {...}}
//
// # Client Frames
//
//   - hello: first frame after connecting; current href, base URI, top-level flag
//   - click: a primary click the client suppressed, with the element path
//   - popstate: history traversal, with the new href and its state
//   - hashchange: fragment navigation, with the new and old href
//
// # Server Frames
//
//   - push, replace: mutate the client's history
//   - native: perform the default navigation the client suppressed
//   - event: a custom event to dispatch on the window
//   - error: a coded protocol error
//
// Frames larger than MaxFrameSize are rejected. The server waits
// HandshakeTimeout for hello before giving up on a connection.
package protocol
