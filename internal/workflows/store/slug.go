package store

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// slugRegex matches characters that should be replaced with hyphens
	slugRegex = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	// multiHyphenRegex matches multiple consecutive hyphens
	multiHyphenRegex = regexp.MustCompile(`-+`)

	lower = cases.Lower(language.Und)
)

// maxSlugRunes bounds the length of a slug.
const maxSlugRunes = 64

// Slugify converts a workflow name into a file-name-safe slug.
// Rules:
// - Lowercase (Unicode aware)
// - Keep letters, digits, and underscores in any script
// - Replace everything else with hyphens, collapsing runs
// - Trim leading/trailing hyphens
// - Max length: 64 runes
//
// Examples:
//
//	"Login Flow" -> "login-flow"
//	"workflow_20250102_030405" -> "workflow_20250102_030405"
//	"朝の作業 #2" -> "朝の作業-2"
func Slugify(name string) string {
	if name == "" {
		return ""
	}

	result := lower.String(strings.TrimSpace(name))
	result = slugRegex.ReplaceAllString(result, "-")
	result = multiHyphenRegex.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")

	if runes := []rune(result); len(runes) > maxSlugRunes {
		result = strings.TrimRight(string(runes[:maxSlugRunes]), "-")
	}

	return result
}
