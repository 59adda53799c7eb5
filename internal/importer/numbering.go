package importer

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// "15", "15.", "15)", "15:", "15-", "15 -"; \p{Zs} covers no-break spaces
	importNumberRE = regexp.MustCompile(`(?s)^[\s\p{Zs}]*(\d+)[\s\p{Zs}]*(?:[.):\-][\s\p{Zs}]*)?(.*)$`)
	// "15. text", "15) text"
	editNumberRE = regexp.MustCompile(`(?s)^[\s\p{Zs}]*(\d+)[.)][\s\p{Zs}]+(.*)$`)
)

// ImportNumbering splits a leading question number from an imported prompt.
// Any of . ) : - is accepted as separator, and the separator is optional.
// origNo is 0 when the prompt carries no number.
func ImportNumbering(prompt string) (origNo int, clean string) {
	return splitNumber(importNumberRE, prompt)
}

// EditNumbering is the stricter rule applied when an admin retypes a prompt:
// the number must be followed by . or ) and at least one space, so prompts
// that merely start with a figure ("2024 was...") keep their text intact.
func EditNumbering(prompt string) (origNo int, clean string) {
	return splitNumber(editNumberRE, prompt)
}

func splitNumber(re *regexp.Regexp, prompt string) (int, string) {
	s := strings.TrimSpace(prompt)
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, s
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, s
	}
	return n, strings.TrimSpace(m[2])
}
