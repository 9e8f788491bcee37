// internal/template/template.go
package template

import (
	"strings"

	"github.com/textpulse/textpulse-backend/internal/model"
)

// Render substitutes {{token}} placeholders with the customer's fields.
// Unknown tokens and tokens whose value is empty are left literal so the
// recipient sees the raw placeholder rather than an empty gap.
func Render(body string, c *model.Customer) string {
	fields := map[string]string{
		"firstName": c.FirstName,
		"lastName":  c.LastName,
		"phone":     c.Phone,
		"email":     c.Email,
	}

	out := body
	for token, value := range fields {
		if value == "" {
			continue
		}
		out = strings.ReplaceAll(out, "{{"+token+"}}", value)
	}
	return out
}

// Tokens lists the placeholder names Render understands.
func Tokens() []string {
	return []string{"firstName", "lastName", "phone", "email"}
}
