// Package errors provides coded, structured errors for the URL observer.
//
// Every failure the observer reports carries a stable code that maps to a
// short message, a longer explanation and, where useful, a hint:
//   - config: route patterns and configuration values (E100-E199)
//   - navigation: before-route handlers and candidate URLs (E200-E299)
//   - protocol: frames exchanged with the thin client (E300-E399)
//   - archive: audit trail export (E400-E499)
//
// Vetoed navigations and cross-origin clicks are not errors and never
// produce one.
//
// # Usage
//
//	err := errors.New("E100").
//	    WithDetail(`pattern "^/(" is not a valid regular expression`).
//	    Wrap(compileErr)
//
//	fmt.Println(err.Format())
//	// ERROR E100: Invalid route pattern
//	//
//	//   pattern "^/(" is not a valid regular expression
//	//
//	//   Hint: Patterns use Go RE2 syntax; name parameters with (?P<name>...)
package errors
