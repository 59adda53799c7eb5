// Package sampling selects the questions presented for a quiz session.
//
// Random selection is seeded from the quiz id and the requested limit, so the
// same settings always yield the same subset in the same order. The generator
// is a plain LCG: reproducibility is the requirement, not unpredictability.
package sampling

import (
	"slices"
	"strconv"
)

const (
	lcgMultiplier = 1103515245
	lcgIncrement  = 12345
	fallbackSeed  = 123456789
)

// Pick returns the questions to present. A nil limit returns items unchanged.
// Otherwise the limit is clamped to at least 1 and at most len(items); without
// randomize the leading items are kept in order, with randomize a seeded
// Fisher-Yates shuffle is truncated to the limit.
func Pick[T any](items []T, quizID int64, limit *int, randomize bool) []T {
	if limit == nil {
		return items
	}
	n := max(*limit, 1)
	take := min(n, len(items))
	if !randomize {
		return slices.Clone(items[:take])
	}
	return Shuffle(items, take, Seed(quizID, &n, true))
}

// Seed hashes "{quizID}:{limit|all}:{1|0}" with a 31-multiplier polynomial
// hash wrapped to 32 bits.
func Seed(quizID int64, limit *int, randomize bool) uint32 {
	key := strconv.FormatInt(quizID, 10) + ":"
	if limit == nil {
		key += "all"
	} else {
		key += strconv.Itoa(*limit)
	}
	if randomize {
		key += ":1"
	} else {
		key += ":0"
	}

	var h uint32
	for _, c := range []byte(key) {
		h = h*31 + uint32(c)
	}
	return h
}

// Shuffle returns the first n items of a seeded Fisher-Yates permutation of
// items. The input slice is not modified.
func Shuffle[T any](items []T, n int, seed uint32) []T {
	out := slices.Clone(items)
	rnd := newLCG(seed)
	for i := len(out) - 1; i > 0; i-- {
		j := int(rnd.next() * float64(i+1))
		if j > i {
			// next() reaches 1.0 only for x == 2^32-1
			j = i
		}
		out[i], out[j] = out[j], out[i]
	}
	if n < 0 {
		n = 0
	}
	if n > len(out) {
		n = len(out)
	}
	return out[:n]
}

type lcg struct {
	x uint32
}

func newLCG(seed uint32) *lcg {
	if seed == 0 {
		seed = fallbackSeed
	}
	return &lcg{x: seed}
}

// next advances x' = (1103515245*x + 12345) mod 2^32 and returns x'/(2^32-1).
func (g *lcg) next() float64 {
	g.x = lcgMultiplier*g.x + lcgIncrement
	return float64(g.x) / float64(0xFFFFFFFF)
}
