package source

import (
	"math/rand/v2"
)

// Pick returns an index chosen with probability proportional to its weight,
// or -1 when no weight is positive.
func Pick(weights []int, rnd *rand.Rand) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return -1
	}

	n := rnd.IntN(total)
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if n < w {
			return i
		}
		n -= w
	}
	return -1
}

// Order returns the indexes with positive weight, drawn one by one without
// replacement so that heavier entries tend to come first.
func Order(weights []int, rnd *rand.Rand) []int {
	remaining := make([]int, len(weights))
	copy(remaining, weights)

	var order []int
	for {
		i := Pick(remaining, rnd)
		if i < 0 {
			return order
		}
		order = append(order, i)
		remaining[i] = 0
	}
}

// pickString returns a uniformly random element of items.
func pickString(items []string, rnd *rand.Rand) string {
	return items[rnd.IntN(len(items))]
}
