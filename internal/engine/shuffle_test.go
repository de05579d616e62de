package engine

import (
	"math/rand"
	"sort"
	"testing"
)

func TestShufflePreservesElements(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	in := []int{1, 2, 3, 4, 5, 6, 7, 8}
	out := Shuffle(r, in)
	if len(out) != len(in) {
		t.Fatalf("length changed: got %d want %d", len(out), len(in))
	}
	sorted := append([]int(nil), out...)
	sort.Ints(sorted)
	for i, v := range sorted {
		if v != i+1 {
			t.Fatalf("element set changed: %v", out)
		}
	}
}

func TestShuffleLeavesInputUntouched(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	in := []string{"a", "b", "c", "d"}
	for i := 0; i < 50; i++ {
		Shuffle(r, in)
	}
	want := []string{"a", "b", "c", "d"}
	for i := range want {
		if in[i] != want[i] {
			t.Fatalf("input mutated: %v", in)
		}
	}
}

func TestShuffleReachesAllPositions(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	const runs = 2000
	// seen[element][position]
	seen := make(map[int]map[int]int)
	for i := 0; i < 4; i++ {
		seen[i] = make(map[int]int)
	}
	for i := 0; i < runs; i++ {
		out := Shuffle(r, []int{0, 1, 2, 3})
		for pos, v := range out {
			seen[v][pos]++
		}
	}
	// Uniform would put each element at each position runs/4 = 500
	// times. Allow a wide band; a biased or broken shuffle lands far
	// outside it.
	for v, positions := range seen {
		for pos := 0; pos < 4; pos++ {
			n := positions[pos]
			if n < 350 || n > 650 {
				t.Errorf("element %d at position %d seen %d times, expected near 500", v, pos, n)
			}
		}
	}
}

func TestShuffleEmptyAndSingle(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	if out := Shuffle(r, []int{}); len(out) != 0 {
		t.Fatalf("empty shuffle returned %v", out)
	}
	if out := Shuffle(r, []int{42}); len(out) != 1 || out[0] != 42 {
		t.Fatalf("single shuffle returned %v", out)
	}
}
