package scheduler

import (
	"strings"

	"github.com/dhima/followup-engine/internal/models"
)

const defaultGreeting = "there"

// Render substitutes contact placeholders in the step template. Both
// {{token}} and {token} forms are recognized.
func Render(followUpID string, step models.Step, contact models.Contact) models.RenderedMessage {
	r := placeholderReplacer(contact)
	return models.RenderedMessage{
		FollowUpID: followUpID,
		To:         contact.Email,
		Subject:    r.Replace(step.Subject),
		Body:       r.Replace(step.Body),
	}
}

func placeholderReplacer(contact models.Contact) *strings.Replacer {
	name := fallback(contact.Name, defaultGreeting)
	firstName := fallback(contact.FirstName, firstWord(contact.Name))
	firstName = fallback(firstName, defaultGreeting)

	values := map[string]string{
		"name":       name,
		"first_name": firstName,
		"email":      contact.Email,
	}

	pairs := make([]string, 0, len(values)*4)
	// Double-brace forms go first so {{name}} is not consumed as {name} plus braces.
	for token, v := range values {
		pairs = append(pairs, "{{"+token+"}}", v)
	}
	for token, v := range values {
		pairs = append(pairs, "{"+token+"}", v)
	}
	return strings.NewReplacer(pairs...)
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
