// Package xrand supplies the simulator's random primitives: uniform ints,
// exponential inter-arrival sampling, and uniform subset selection, all
// deterministic under a single seed.
//
// It deliberately wraps math/rand rather than math/rand/v2: v2 dropped the
// ability to fork an independent, seeded *rand.Rand per simulation
// instance, and a private reproducible stream is what makes two runs with
// the same seed produce identical timestamps.
package xrand

import "math/rand"

// Source wraps a private seeded generator. It is not safe for concurrent
// use; the simulator is single-threaded.
type Source struct {
	r *rand.Rand
}

// New returns a Source seeded deterministically.
func New(seed int64) *Source {
	return &Source{r: rand.New(rand.NewSource(seed))}
}

// UniformInt returns an integer uniformly distributed in [min, max], inclusive.
func (s *Source) UniformInt(min, max int) int {
	if max < min {
		min, max = max, min
	}
	return min + s.r.Intn(max-min+1)
}

// Exponential samples an exponential distribution with the given mean,
// returning an integer number of milliseconds.
func (s *Source) Exponential(mean float64) int64 {
	if mean <= 0 {
		return 0
	}
	return int64(s.r.ExpFloat64() * mean)
}

// ChoosePercent selects int(n * percent/100) distinct ids from [0, n)
// without replacement.
func (s *Source) ChoosePercent(n int, percent int) []int {
	count := n * percent / 100
	return s.chooseK(n, count, nil)
}

// ChooseNeighbours selects k distinct ids from universe, excluding any id
// present in excluded, without replacement. If fewer than k candidates
// remain, all remaining candidates are returned.
func (s *Source) ChooseNeighbours(universe []int, k int, excluded map[int]bool) []int {
	candidates := make([]int, 0, len(universe))
	for _, id := range universe {
		if excluded == nil || !excluded[id] {
			candidates = append(candidates, id)
		}
	}
	if k > len(candidates) {
		k = len(candidates)
	}
	s.shuffle(candidates)
	return candidates[:k]
}

func (s *Source) chooseK(n, k int, excluded map[int]bool) []int {
	universe := make([]int, n)
	for i := range universe {
		universe[i] = i
	}
	return s.ChooseNeighbours(universe, k, excluded)
}

func (s *Source) shuffle(xs []int) {
	s.r.Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
}
