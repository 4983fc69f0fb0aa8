package random

import "testing"

func TestNewSourceDeterministic(t *testing.T) {
	a := NewSource(42)
	b := NewSource(42)

	for i := 0; i < 100; i++ {
		if got, want := a.Roll(), b.Roll(); got != want {
			t.Fatalf("draw %d diverged: %d vs %d", i, got, want)
		}
	}
}

func TestRollRange(t *testing.T) {
	src := NewSource(7)
	for i := 0; i < 1000; i++ {
		roll := src.Roll()
		if roll < 1 || roll > 100 {
			t.Fatalf("roll %d out of [1,100]", roll)
		}
	}
}

func TestPercentRange(t *testing.T) {
	src := NewSource(7)
	for i := 0; i < 1000; i++ {
		pct := src.Percent(5, 20)
		if pct < 5 || pct > 20 {
			t.Fatalf("percent %d out of [5,20]", pct)
		}
	}
	if got := src.Percent(10, 10); got != 10 {
		t.Fatalf("degenerate range should return lo, got %d", got)
	}
}

func TestNewSeed(t *testing.T) {
	first, err := NewSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	second, err := NewSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct seeds across calls")
	}
}

func TestScriptReplaysDraws(t *testing.T) {
	script := &Script{
		Rolls:    []int{55, 96},
		Percents: []int{12},
		Coins:    []bool{true},
	}

	if got := script.Roll(); got != 55 {
		t.Fatalf("expected scripted roll 55, got %d", got)
	}
	if got := script.Percent(5, 20); got != 12 {
		t.Fatalf("expected scripted percent 12, got %d", got)
	}
	if !script.Coin() {
		t.Fatal("expected scripted coin true")
	}
	if got := script.Percent(5, 20); got != 5 {
		t.Fatalf("expected exhausted percent to clamp to lo, got %d", got)
	}
}
