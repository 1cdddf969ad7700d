// Package template implements safe substitution of {snake_case} placeholders
// in email subjects and bodies.
//
// Placeholders are matched literally; this is not an expression language.
// Substituted values are HTML-escaped by default so user-controlled data
// (client names, task titles) cannot inject markup into HTML bodies. A
// placeholder whose variable is not in the supplied set is left untouched,
// which makes rendering idempotent: a rendered string contains no tokens
// that a second pass would substitute.
package template

import (
	"fmt"
	"html"
	"regexp"
)

// Variables maps variable names to their values. A nil value means the
// variable exists but has no data (e.g. a task with no due date) and renders
// as the missing-value placeholder.
type Variables map[string]*string

// placeholderPattern matches {lowercase_snake_case} tokens.
var placeholderPattern = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// RenderOptions control substitution behavior.
type RenderOptions struct {
	// EscapeHTML escapes & < > " ' in substituted values. Must stay enabled
	// for HTML bodies; disable only for plain-text bodies.
	EscapeHTML bool
	// MissingValuePlaceholder replaces variables whose value is nil.
	MissingValuePlaceholder string
}

// DefaultRenderOptions returns the options used by Render.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		EscapeHTML:              true,
		MissingValuePlaceholder: "N/A",
	}
}

// Render substitutes variables into tmpl with default options.
func Render(tmpl string, vars Variables) string {
	return RenderWith(tmpl, vars, DefaultRenderOptions())
}

// RenderWith substitutes every {name} token whose name appears in vars.
// Tokens for unknown names are left as-is. Substitution happens in a single
// pass over the template, so values containing brace tokens are never
// re-substituted.
func RenderWith(tmpl string, vars Variables, opts RenderOptions) string {
	if tmpl == "" {
		return tmpl
	}
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := vars[name]
		if !ok {
			return match
		}
		if value == nil {
			return opts.MissingValuePlaceholder
		}
		if opts.EscapeHTML {
			return html.EscapeString(*value)
		}
		return *value
	})
}

// ExtractVariables returns the distinct variable names referenced by tmpl,
// in order of first appearance.
func ExtractVariables(tmpl string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(tmpl, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// ValidationResult reports whether a template references only supported variables.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate flags every referenced variable that is not in the supported list.
// Supported variables that go unused are not an error.
func Validate(tmpl string, supported []string) ValidationResult {
	supportedSet := make(map[string]struct{}, len(supported))
	for _, name := range supported {
		supportedSet[name] = struct{}{}
	}

	result := ValidationResult{Valid: true, Errors: []string{}}
	for _, name := range ExtractVariables(tmpl) {
		if _, ok := supportedSet[name]; !ok {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Unknown variable: %s", name))
		}
	}
	return result
}
