package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Config (E100-E199)
	"E100": {
		Category:   CategoryConfig,
		Message:    "Invalid route pattern",
		Suggestion: "Patterns use Go RE2 syntax; name parameters with (?P<name>...)",
	},
	"E101": {
		Category:   CategoryConfig,
		Message:    "Config file could not be read",
		Suggestion: "Check the --config path, or run without it to use defaults",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
	},
	"E103": {
		Category:   CategoryConfig,
		Message:    "Invalid scenario",
		Suggestion: "Each step needs exactly one of click, advance, back, forward, go, hash, update",
	},

	// Navigation (E200-E299)
	"E200": {
		Category: CategoryNavigation,
		Message:  "Before-route handler failed",
	},
	"E201": {
		Category: CategoryNavigation,
		Message:  "Before-route handler panicked",
	},
	"E202": {
		Category:   CategoryNavigation,
		Message:    "Invalid navigation URL",
		Suggestion: "Pass a path such as /users/42 or an absolute same-origin URL",
	},

	// Protocol (E300-E399)
	"E300": {
		Category: CategoryProtocol,
		Message:  "Malformed frame",
	},
	"E301": {
		Category: CategoryProtocol,
		Message:  "Frame too large",
	},
	"E302": {
		Category:   CategoryProtocol,
		Message:    "Handshake missing",
		Suggestion: "The client must send a hello frame before any event",
	},

	// Archive (E400-E499)
	"E400": {
		Category: CategoryArchive,
		Message:  "Audit trail upload failed",
	},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for a code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
