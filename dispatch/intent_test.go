package dispatch

import (
	"math/rand/v2"
	"testing"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

func TestPlanSingleBot(t *testing.T) {
	rng := testRNG()
	sel := Plan(rng, Intent{Kind: SingleBot, Index: 2}, []int{0, 2, 4}, "hi", nil)
	if len(sel) != 1 || sel[0].BotIndex != 2 || sel[0].Message != "hi" {
		t.Fatalf("Plan = %+v, want single selection of bot 2", sel)
	}
	if sel := Plan(rng, Intent{Kind: SingleBot, Index: 1}, []int{0, 2, 4}, "hi", nil); sel != nil {
		t.Errorf("ineligible index must be a no-op, got %+v", sel)
	}
}

func TestPlanRandomBot(t *testing.T) {
	rng := testRNG()
	eligible := []int{3, 5, 9}
	for i := 0; i < 50; i++ {
		sel := Plan(rng, Intent{Kind: RandomBot}, eligible, "", []string{"a", "b"})
		if len(sel) != 1 {
			t.Fatalf("Plan = %+v, want one selection", sel)
		}
		if sel[0].BotIndex != 3 && sel[0].BotIndex != 5 && sel[0].BotIndex != 9 {
			t.Fatalf("selected bot %d not in eligible set", sel[0].BotIndex)
		}
		if sel[0].Message != "a" && sel[0].Message != "b" {
			t.Fatalf("message %q not from pool", sel[0].Message)
		}
	}
}

func TestPlanAllBotsSharedMessage(t *testing.T) {
	rng := testRNG()
	sel := Plan(rng, Intent{Kind: AllBots}, []int{1, 2, 3}, "", []string{"only"})
	if len(sel) != 3 {
		t.Fatalf("Plan = %+v, want 3 selections", sel)
	}
	for _, s := range sel {
		if s.Message != "only" {
			t.Errorf("bot %d message = %q, want shared %q", s.BotIndex, s.Message, "only")
		}
	}
}

func TestPlanSubsetTruncatesToEligible(t *testing.T) {
	rng := testRNG()
	eligible := []int{0, 1, 2}
	sel := Plan(rng, Intent{Kind: SubsetBots, Count: 10}, eligible, "msg", nil)
	if len(sel) != len(eligible) {
		t.Fatalf("Plan selected %d targets, want %d (truncated, no error)", len(sel), len(eligible))
	}
	seen := map[int]bool{}
	for _, s := range sel {
		if seen[s.BotIndex] {
			t.Errorf("bot %d targeted twice", s.BotIndex)
		}
		seen[s.BotIndex] = true
	}
}

func TestPlanSubsetDistinctMessages(t *testing.T) {
	rng := testRNG()
	pool := []string{"m1", "m2", "m3", "m4"}
	sel := Plan(rng, Intent{Kind: SubsetBots, Count: 3}, []int{0, 1, 2, 3, 4}, "", pool)
	if len(sel) != 3 {
		t.Fatalf("Plan = %+v, want 3 selections", sel)
	}
	seen := map[string]bool{}
	for _, s := range sel {
		seen[s.Message] = true
	}
	// Pool has >= Count distinct messages, so every target gets its own.
	if len(seen) != 3 {
		t.Errorf("got %d distinct messages %v, want 3", len(seen), seen)
	}
}

func TestPlanSubsetCyclesWhenTargetsOutnumberPool(t *testing.T) {
	rng := testRNG()
	pool := []string{"m1", "m2"}
	sel := Plan(rng, Intent{Kind: SubsetBots, Count: 4}, []int{0, 1, 2, 3}, "", pool)
	if len(sel) != 4 {
		t.Fatalf("Plan = %+v, want 4 selections", sel)
	}
	counts := map[string]int{}
	for _, s := range sel {
		counts[s.Message]++
	}
	if counts["m1"] != 2 || counts["m2"] != 2 {
		t.Errorf("message cycling gave %v, want m1 and m2 twice each", counts)
	}
}

func TestPlanNoOps(t *testing.T) {
	rng := testRNG()
	if sel := Plan(rng, Intent{Kind: AllBots}, nil, "hi", nil); sel != nil {
		t.Errorf("empty eligible set must be a no-op, got %+v", sel)
	}
	if sel := Plan(rng, Intent{Kind: RandomBot}, []int{0}, "", nil); sel != nil {
		t.Errorf("no message and empty pool must be a no-op, got %+v", sel)
	}
	if sel := Plan(rng, Intent{Kind: SubsetBots, Count: 0}, []int{0, 1}, "hi", nil); sel != nil {
		t.Errorf("zero-count subset must be a no-op, got %+v", sel)
	}
}
