package bots

import (
	"testing"
)

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	if n := r.LoadCredentials("t1|Alice\nt2|Bob\nt3"); n != 3 {
		t.Fatalf("LoadCredentials = %d, want 3", n)
	}
	return r
}

func TestRegistryDefaults(t *testing.T) {
	r := loadTestRegistry(t)
	for i := 0; i < r.Len(); i++ {
		b := r.Get(i)
		if b.Available {
			t.Errorf("bot %d available before any probe", i)
		}
		if !b.Enabled {
			t.Errorf("bot %d not enabled by default", i)
		}
	}
	if r.Get(-1) != nil || r.Get(3) != nil {
		t.Error("out-of-range Get should return nil")
	}
}

func TestRegistryEligible(t *testing.T) {
	r := loadTestRegistry(t)
	if got := r.Eligible(); len(got) != 0 {
		t.Fatalf("eligible before probe = %v, want none", got)
	}
	r.SetAvailable(0, true)
	r.SetAvailable(1, true)
	r.SetAvailable(2, true)
	r.SetEnabled(1, false)
	got := r.Eligible()
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("Eligible = %v, want [0 2]", got)
	}
	if r.AvailableCount() != 3 {
		t.Errorf("AvailableCount = %d, want 3", r.AvailableCount())
	}
}

func TestRegistryHistory(t *testing.T) {
	r := loadTestRegistry(t)
	r.AppendHistory(0, "[Alice] hi")
	r.AppendHistory(0, "[Alice] again")
	r.AppendHistory(1, "[Bob] yo")
	if got := len(r.Get(0).History); got != 2 {
		t.Errorf("bot 0 history len = %d, want 2", got)
	}
	r.ClearHistory(0)
	if got := len(r.Get(0).History); got != 0 {
		t.Errorf("bot 0 history len after clear = %d, want 0", got)
	}
	if got := len(r.Get(1).History); got != 1 {
		t.Errorf("bot 1 history must survive other clears, len = %d", got)
	}
	r.ClearAllHistories()
	if got := len(r.Get(1).History); got != 0 {
		t.Errorf("bot 1 history len after clear-all = %d, want 0", got)
	}
	// out-of-range appends are ignored
	r.AppendHistory(99, "nope")
}

func TestRegistryReplaceDiscardsState(t *testing.T) {
	r := loadTestRegistry(t)
	r.SetAvailable(0, true)
	r.AppendHistory(0, "entry")

	if n := r.LoadCredentials("newtok"); n != 1 {
		t.Fatalf("reload = %d bots, want 1", n)
	}
	b := r.Get(0)
	if b.Available || len(b.History) != 0 {
		t.Error("reload must discard prior runtime state")
	}
	// bot_1 was consumed by the first load ("t3" line), so the reload
	// continues the sequence rather than reusing it.
	if b.Name != "bot_2" {
		t.Errorf("reloaded bot name = %q, want bot_2", b.Name)
	}
}

func TestRegistryFilter(t *testing.T) {
	r := loadTestRegistry(t)
	got := r.Filter("ali")
	if len(got) != 1 || got[0].Index != 0 || got[0].Bot.Name != "Alice" {
		t.Fatalf("Filter(ali) = %+v, want Alice at index 0", got)
	}
	if got := r.Filter("BOB"); len(got) != 1 || got[0].Index != 1 {
		t.Errorf("Filter is not case-insensitive: %+v", got)
	}
	if got := r.Filter(""); len(got) != 3 {
		t.Errorf("empty filter returned %d bots, want 3", len(got))
	}
	if got := r.Filter("zzz"); len(got) != 0 {
		t.Errorf("no-match filter returned %d bots, want 0", len(got))
	}
}

func TestFindByNameFirstMatchWins(t *testing.T) {
	r := NewRegistry()
	r.LoadCredentials("t1|dup\nt2|dup\nt3|other")
	i, ok := r.FindByName("dup")
	if !ok || i != 0 {
		t.Errorf("FindByName(dup) = %d,%v, want 0,true (first match wins)", i, ok)
	}
	if _, ok := r.FindByName("missing"); ok {
		t.Error("FindByName(missing) should report not found")
	}
}
