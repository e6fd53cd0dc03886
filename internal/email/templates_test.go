package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		values   map[string]string
		want     string
	}{
		{
			name:     "simple substitution",
			template: "Hi {{name}}, welcome!",
			values:   map[string]string{"name": "Alice"},
			want:     "Hi Alice, welcome!",
		},
		{
			name:     "multiple tokens",
			template: "{{a}}-{{b}}-{{a}}",
			values:   map[string]string{"a": "1", "b": "2"},
			want:     "1-2-1",
		},
		{
			name:     "html is escaped",
			template: "Hi {{name}}",
			values:   map[string]string{"name": "<script>alert(1)</script>"},
			want:     "Hi &lt;script&gt;alert(1)&lt;/script&gt;",
		},
		{
			name:     "value containing template syntax is not re-expanded",
			template: "Hi {{name}}, ref {{ref}}",
			values:   map[string]string{"name": "{{ref}}", "ref": "AB12"},
			want:     "Hi {{ref}}, ref AB12",
		},
		{
			name:     "unknown token left in place",
			template: "Hi {{name}}, your code is {{code}}",
			values:   map[string]string{"name": "Bob"},
			want:     "Hi Bob, your code is {{code}}",
		},
		{
			name:     "unterminated marker",
			template: "Hi {{name",
			values:   map[string]string{"name": "Bob"},
			want:     "Hi {{name",
		},
		{
			name:     "token with surrounding spaces",
			template: "Hi {{ name }}",
			values:   map[string]string{"name": "Bob"},
			want:     "Hi Bob",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.template, tt.values))
		})
	}
}
