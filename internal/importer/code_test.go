package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeCorrect(t *testing.T) {
	assert.Equal(t, []int{0}, DecodeCorrect("21", 3))
	assert.Equal(t, []int{}, DecodeCorrect("", 4))
	assert.Equal(t, []int{0, 1}, DecodeCorrect("2222", 2))
	assert.Equal(t, []int{2}, DecodeCorrect(" 112 ", 3))
	assert.Equal(t, []int{}, DecodeCorrect("111", 3))
	assert.Equal(t, []int{1}, DecodeCorrect("x2", 2))
}

func TestDecodeCorrectAlignsByPosition(t *testing.T) {
	// a marker beyond the option count is cut off, not shifted in
	assert.Equal(t, []int{}, DecodeCorrect("112", 2))
	assert.Equal(t, []int{1, 3}, DecodeCorrect("1212", 4))
}
