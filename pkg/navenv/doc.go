// Package navenv defines the navigation environment the URL observer runs
// against.
//
// A browser tab exposes a current location, a session history that can be
// pushed or replaced, click/popstate/hashchange events and a monotonic clock.
// Environment captures exactly that contract so the observer can run against
// a live tab (see pkg/wsenv) or against Memory, an in-process emulation used
// by tests and the replay command.
//
// # Events
//
// Listeners receive one of:
//
//	*ClickEvent      - a click bubbling to the document body
//	*PopStateEvent   - history traversal (back/forward/go, fragment navigation)
//	*HashChangeEvent - the fragment of the location changed
//
// # Memory
//
//	env := navenv.NewMemory("https://app.test/")
//	env.Click(navenv.NewClick(navenv.Anchor("/about")))
//	env.Advance(3 * time.Second)
//	env.Back()
package navenv
