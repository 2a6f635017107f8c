// rand/rand_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package rand

import "testing"

func TestSeededSequence(t *testing.T) {
	a, b := MakeSeeded(42), MakeSeeded(42)
	for i := range 100 {
		if x, y := a.Uint32(), b.Uint32(); x != y {
			t.Fatalf("iteration %d: same seed gave %d and %d", i, x, y)
		}
	}
}

func TestIntnBounds(t *testing.T) {
	r := MakeSeeded(7)
	for range 1000 {
		if v := r.Intn(5); v < 0 || v >= 5 {
			t.Fatalf("Intn(5) returned %d", v)
		}
	}
	if r.Intn(0) != 0 {
		t.Errorf("Intn(0) should be 0")
	}
}

func TestUniformAndChance(t *testing.T) {
	r := MakeSeeded(3)
	for range 1000 {
		if v := r.Uniform(10, 20); v < 10 || v > 20 {
			t.Fatalf("Uniform(10, 20) returned %f", v)
		}
		if r.Chance(0) {
			t.Fatalf("Chance(0) returned true")
		}
	}
	if !r.Chance(1.5) {
		t.Errorf("Chance above 1 should always be true")
	}
}

func TestSample(t *testing.T) {
	r := MakeSeeded(1)
	if _, ok := Sample(r, []string{}); ok {
		t.Errorf("expected no sample from empty slice")
	}
	v, ok := Sample(r, []string{"only"})
	if !ok || v != "only" {
		t.Errorf("got %q %v", v, ok)
	}
}
