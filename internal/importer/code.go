package importer

import "strings"

const (
	correctMark   = '2'
	incorrectMark = '1'
)

// DecodeCorrect turns a positional correctness code into option indices.
// The code is right-padded with the incorrect mark or truncated so that it is
// exactly optionCount characters wide; position i is correct when it holds '2'.
func DecodeCorrect(code string, optionCount int) []int {
	c := strings.TrimSpace(code)
	if c == "" || optionCount <= 0 {
		return []int{}
	}
	marks := []rune(c)
	if len(marks) > optionCount {
		marks = marks[:optionCount]
	}
	for len(marks) < optionCount {
		marks = append(marks, incorrectMark)
	}

	out := []int{}
	for i, m := range marks {
		if m == correctMark {
			out = append(out, i)
		}
	}
	return out
}
