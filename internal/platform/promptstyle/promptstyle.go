package promptstyle

import "strings"

const marker = "SYLLABUS_STUDIO_PROMPT_STYLE_V1"

// ApplySystem prepends the shared guidance block to a system prompt. It is
// idempotent; blank prompts are returned unchanged. mode "json" adds the
// schema-only output rule.
func ApplySystem(system string, mode string) string {
	base := strings.TrimSpace(system)
	if base == "" || strings.Contains(base, marker) {
		return base
	}

	task := ""
	for _, line := range strings.Split(base, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			task = trimmed
			break
		}
	}

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\nYou assist instructors building course material in Syllabus Studio.")
	if task != "" {
		b.WriteString("\nTask summary: " + task)
	}
	b.WriteString("\nGround every answer in the course content you are given; do not invent facts or citations.")
	b.WriteString("\nWrite for students at the level the material implies.")
	if strings.EqualFold(strings.TrimSpace(mode), "json") {
		b.WriteString("\nReturn a single JSON object that conforms to the schema and contains no extra keys.")
	} else {
		b.WriteString("\nBe concise.")
	}
	b.WriteString("\n---\n")
	b.WriteString(base)
	return b.String()
}
