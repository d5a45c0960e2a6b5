package render

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestRenderer_Render(t *testing.T) {
	r := NewRenderer(NewSpinner(rand.New(rand.NewSource(1))))
	lead := LeadFields{FirstName: "Sam"}

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		out := r.Render("{Hi|Hey} {{first_name}}", lead, SenderFields{})
		assert.Contains(t, []string{"Hi Sam", "Hey Sam"}, out)
		seen[out] = true
	}
	assert.Len(t, seen, 2)
}

func TestRenderer_Placeholders(t *testing.T) {
	r := NewRenderer(NewSpinner(rand.New(rand.NewSource(1))))

	tests := []struct {
		name     string
		text     string
		lead     LeadFields
		sender   SenderFields
		expected string
	}{
		{
			name:     "lead and sender",
			text:     "Hi {{first_name}} at {{company}}, {{sender_name}} here",
			lead:     LeadFields{FirstName: "Ana", Company: "Acme"},
			sender:   SenderFields{Name: "Bo"},
			expected: "Hi Ana at Acme, Bo here",
		},
		{
			name:     "unknown placeholder is stripped",
			text:     "Hi {{nickname}}!",
			expected: "Hi !",
		},
		{
			name:     "custom field",
			text:     "Loved {{favorite_book}}",
			lead:     LeadFields{Custom: map[string]string{"favorite_book": "Dune"}},
			expected: "Loved Dune",
		},
		{
			name:     "placeholder with spaces",
			text:     "{{ first_name }}",
			lead:     LeadFields{FirstName: "Ana"},
			expected: "Ana",
		},
		{
			name:     "empty text",
			text:     "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.Render(tt.text, tt.lead, tt.sender))
		})
	}
}

func TestSpinner_Spin(t *testing.T) {
	s := NewSpinner(rand.New(rand.NewSource(7)))

	t.Run("nested groups resolve fully", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			out := s.Spin("{I {really|truly} love|I enjoy} your {product|service}")
			assert.NotContains(t, out, "{")
			assert.NotContains(t, out, "|")
		}
	})

	t.Run("braces without pipe are kept", func(t *testing.T) {
		assert.Equal(t, "price {total} today", s.Spin("price {total} today"))
	})

	t.Run("options are trimmed", func(t *testing.T) {
		out := s.Spin("{ a | a }")
		assert.Equal(t, "a", out)
	})

	t.Run("malformed nesting stops after bounded passes", func(t *testing.T) {
		text := strings.Repeat("{", 20) + "a|b" + strings.Repeat("}", 20)
		out := s.Spin(text)
		assert.NotEmpty(t, out)
	})
}

func TestCountVariants(t *testing.T) {
	assert.Equal(t, 6, CountVariants("{a|b|c} {x|y}"))
	assert.Equal(t, 1, CountVariants("no groups {{first_name}}"))
	assert.Equal(t, 1, CountVariants(""))
}

func TestVars_FromModels(t *testing.T) {
	lead := LeadFieldsOf(&model.Lead{FirstName: "Ana", Email: "ana@x.io", CustomFields: map[string]string{"first_name": "Annie"}})
	sender := SenderFieldsOf(&model.Account{FromName: "Bo", Email: "bo@y.io"})

	vars := Vars(lead, sender)
	assert.Equal(t, "Annie", vars["first_name"])
	assert.Equal(t, "bo@y.io", vars["sender_email"])
	assert.Equal(t, "ana@x.io", vars["email"])
}
