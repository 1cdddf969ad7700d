package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func str(s string) *string { return &s }

func TestRenderSubstitutesVariables(t *testing.T) {
	tmpl := "Hello {client_name}, your task {task_name} is due on {due_date}"
	vars := Variables{
		"client_name": str("ABC Manufacturing"),
		"task_name":   str("VAT Return Q3"),
		"due_date":    str("15 Nov 2025"),
	}

	got := Render(tmpl, vars)

	assert.Equal(t, "Hello ABC Manufacturing, your task VAT Return Q3 is due on 15 Nov 2025", got)
}

func TestRenderRepeatedVariable(t *testing.T) {
	tmpl := "{client_name} has a task. Reminder for {client_name}: complete task."
	vars := Variables{"client_name": str("ABC Manufacturing")}

	got := Render(tmpl, vars)

	assert.Equal(t, "ABC Manufacturing has a task. Reminder for ABC Manufacturing: complete task.", got)
}

func TestRenderLeavesUnknownPlaceholders(t *testing.T) {
	tmpl := "Hello {client_name}, task: {task_name}"
	vars := Variables{"client_name": str("ABC Manufacturing")}

	got := Render(tmpl, vars)

	assert.Equal(t, "Hello ABC Manufacturing, task: {task_name}", got)
}

func TestRenderNilValueUsesDefaultPlaceholder(t *testing.T) {
	got := Render("Hello {client_name}", Variables{"client_name": nil})

	assert.Equal(t, "Hello N/A", got)
}

func TestRenderNilValueCustomPlaceholder(t *testing.T) {
	opts := DefaultRenderOptions()
	opts.MissingValuePlaceholder = "[NOT SET]"

	got := RenderWith("Hello {client_name}", Variables{"client_name": nil}, opts)

	assert.Equal(t, "Hello [NOT SET]", got)
}

func TestRenderEscapesHTMLByDefault(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    string
		notWant string
	}{
		{"script tag", "<script>alert('XSS')</script>", "&lt;script&gt;", "<script>"},
		{"div", "<div>test</div>", "&lt;div&gt;", "<div>"},
		{"double quote", `Test "quoted" text`, "&#34;", `"quoted"`},
		{"single quote", "it's", "&#39;", "it's"},
		{"ampersand", "Smith & Sons", "&amp;", "& Sons"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render("{client_name}", Variables{"client_name": str(tt.value)})
			assert.Contains(t, got, tt.want)
			assert.NotContains(t, got, tt.notWant)
		})
	}
}

func TestRenderAttributeInjectionIsEscaped(t *testing.T) {
	tmpl := "<a href='#'>Click {client_name}</a>"
	vars := Variables{"client_name": str("' onerror='alert(1)' x='")}

	got := Render(tmpl, vars)

	assert.Contains(t, got, "&#39;")
	assert.NotContains(t, got, "onerror='alert")
}

func TestRenderWithoutEscaping(t *testing.T) {
	opts := DefaultRenderOptions()
	opts.EscapeHTML = false

	got := RenderWith("Content: {client_name}", Variables{"client_name": str("<strong>Bold</strong>")}, opts)

	assert.Equal(t, "Content: <strong>Bold</strong>", got)
}

func TestRenderIsIdempotent(t *testing.T) {
	tmpl := "Hello {client_name}, {task_name} ({unknown_var}) from {company_name}"
	vars := Variables{
		"client_name":  str("Smith & Sons <Ltd>"),
		"task_name":    nil,
		"company_name": str("Demo Accounting"),
	}

	once := Render(tmpl, vars)
	twice := Render(once, vars)

	assert.Equal(t, once, twice)
	assert.Contains(t, once, "{unknown_var}")
}

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("Hello {a}, {b}, {a}.")

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestExtractVariablesEmpty(t *testing.T) {
	assert.Empty(t, ExtractVariables("Hello, this is a static template."))
	assert.Empty(t, ExtractVariables(""))
}

func TestExtractVariablesIgnoresNonSnakeCase(t *testing.T) {
	got := ExtractVariables("{client_name} {NotAVar} {2bad} { spaced }")

	assert.Equal(t, []string{"client_name"}, got)
}

func TestValidateFlagsUnknownVariables(t *testing.T) {
	result := Validate("{client_name} / {invalid_var}", []string{"client_name"})

	assert.False(t, result.Valid)
	assert.Equal(t, []string{"Unknown variable: invalid_var"}, result.Errors)
}

func TestValidateAllSupported(t *testing.T) {
	result := Validate("Hello {client_name}, task: {task_name}", []string{"client_name", "task_name", "due_date"})

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateStaticTemplate(t *testing.T) {
	result := Validate("No variables here.", []string{"client_name"})

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateMultipleUnknown(t *testing.T) {
	result := Validate("{client_name}, {invoice_number} and {order_id}", []string{"client_name"})

	assert.False(t, result.Valid)
	assert.Equal(t, []string{"Unknown variable: invoice_number", "Unknown variable: order_id"}, result.Errors)
}
