// internal/template/template_test.go
package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/textpulse/textpulse-backend/internal/model"
)

func TestRender(t *testing.T) {
	alice := &model.Customer{FirstName: "Alice", LastName: "Nguyen", Phone: "2025550101", Email: "alice@example.com"}

	cases := []struct {
		name     string
		body     string
		customer *model.Customer
		want     string
	}{
		{"single token", "Hi {{firstName}}!", alice, "Hi Alice!"},
		{"multiple tokens", "{{firstName}} {{lastName}} <{{email}}>", alice, "Alice Nguyen <alice@example.com>"},
		{"repeated token", "{{firstName}}, {{firstName}}!", alice, "Alice, Alice!"},
		{"no tokens", "Flat 20% off today.", alice, "Flat 20% off today."},
		{"unknown token left literal", "Hi {{nickname}}", alice, "Hi {{nickname}}"},
		{"empty value left literal", "Hi {{firstName}}", &model.Customer{Phone: "2025550103"}, "Hi {{firstName}}"},
		{"empty body", "", alice, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Render(tc.body, tc.customer))
		})
	}
}

func TestTokens(t *testing.T) {
	assert.ElementsMatch(t, []string{"firstName", "lastName", "phone", "email"}, Tokens())
}
