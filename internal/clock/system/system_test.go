// Package system exercises the clock adapters.
package system

import (
	"testing"
	"time"
)

// TestClockNowLocal ensures the clock reports local wall time.
func TestClockNowLocal(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().Add(-time.Second)
	got := clk.Now()
	after := time.Now().Add(time.Second)

	if got.Location() != time.Local {
		t.Fatalf("expected local location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

// TestFixedClockKeepsZone checks the fixed clock never moves and keeps the
// zone it was given, so the year is the local one.
func TestFixedClockKeepsZone(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("ATH", 2*60*60)
	at := time.Date(2024, 1, 1, 1, 30, 0, 0, loc)
	clk := NewFixed(at)

	first := clk.Now()
	second := clk.Now()
	if !first.Equal(second) {
		t.Fatalf("expected fixed clock, got %v then %v", first, second)
	}
	if first.Location() != loc {
		t.Fatalf("expected %v location, got %v", loc, first.Location())
	}
	if first.Year() != 2024 {
		t.Fatalf("expected local year 2024, got %d", first.Year())
	}
	if first.UTC().Year() != 2023 {
		t.Fatalf("expected UTC year 2023, got %d", first.UTC().Year())
	}
}
