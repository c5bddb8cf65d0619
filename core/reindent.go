package core

import (
	"strings"
)

// Reindent fits multi-line replacement text to a construct whose first line
// is indented by indent. The text is dedented by its common leading
// whitespace; the first line is left bare because the edit starts after the
// construct's own indentation, and every later non-blank line gets indent.
func Reindent(text, indent string) string {
	if !strings.Contains(text, "\n") {
		return strings.TrimLeft(text, " \t")
	}

	lines := strings.Split(text, "\n")
	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if common < 0 || n < common {
			common = n
		}
	}
	if common < 0 {
		return text
	}

	first := true
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = strings.TrimRight(line, " \t")
			continue
		}
		line = line[common:]
		if first {
			first = false
			lines[i] = strings.TrimLeft(line, " \t")
			continue
		}
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
