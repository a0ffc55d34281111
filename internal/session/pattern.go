package session

import "strings"

// Task text is reduced to a coarse category before storage so that
// recommendations generalize across wording. Categories are tested in
// order; the first match wins.
type patternCategory struct {
	name     string
	keywords []string
}

// PatternGeneral is the fallback category when nothing matches.
const PatternGeneral = "general"

var patternCategories = []patternCategory{
	{"architecture", []string{"architecture", "architectural", "system design"}},
	{"design", []string{"design", "propose", "trade-off"}},
	{"security", []string{"security", "vulnerability", "exploit", "auth"}},
	{"refactor", []string{"refactor", "restructure", "clean up", "migrate"}},
	{"implementation", []string{"implement", "integrate", "add support"}},
	{"creation", []string{"create", "build", "write a", "new feature"}},
	{"bugfix", []string{"fix", "bug", "debug", "broken", "error"}},
	{"exploration", []string{"explore", "investigate", "research", "understand", "explain"}},
	{"testing", []string{"test", "coverage", "assert"}},
	{"documentation", []string{"document", "readme", "docs", "changelog"}},
}

// ClassifyPattern derives the task's coarse category from its text.
func ClassifyPattern(task string) string {
	taskLower := strings.ToLower(task)
	for _, cat := range patternCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(taskLower, kw) {
				return cat.name
			}
		}
	}
	return PatternGeneral
}

// PatternNames returns the known categories in match order, excluding the
// general fallback.
func PatternNames() []string {
	names := make([]string, 0, len(patternCategories))
	for _, cat := range patternCategories {
		names = append(names, cat.name)
	}
	return names
}
