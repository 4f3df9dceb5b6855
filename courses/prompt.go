package courses

import (
	"fmt"
	"strings"
)

// BuildPromptWithContext prefixes userMessage with the course catalogue. Without
// courses the message is returned unchanged.
func BuildPromptWithContext(userMessage string, courses []Course) string {
	if len(courses) == 0 {
		return userMessage
	}

	lines := make([]string, 0, len(courses))
	for _, c := range courses {
		description := c.Description
		if description == "" {
			description = "N/A"
		}
		lines = append(lines, fmt.Sprintf("Course: %s, Description: %s", c.Name, description))
	}

	prompt := "Context information:\n" +
		"--- Course Information ---\n" +
		strings.Join(lines, "\n") + "\n" +
		"--- End Course Information ---\n\n" +
		"User message: " + userMessage

	return strings.TrimSpace(prompt)
}
