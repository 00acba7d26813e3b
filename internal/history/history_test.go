package history

import (
	"encoding/hex"
	"testing"
	"time"
)

func TestAppendAndLoadRoundTrip(t *testing.T) {
	prefix := t.TempDir()
	h := &History{Prefix: prefix}

	ts := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	entry := Entry{
		Timestamp: ts,
		Comment:   "gonda install numpy",
		Specs:     []string{"numpy>=1.20"},
		Actions: []Action{
			{Verb: "install", Spec: "numpy-1.22.0-py310h1234_0"},
		},
	}
	if err := h.Append(entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := Load(prefix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(loaded.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(loaded.Entries))
	}
	got := loaded.Entries[0]
	if !got.Timestamp.Equal(ts) {
		t.Errorf("got timestamp %v, want %v", got.Timestamp, ts)
	}
	if got.Comment != entry.Comment {
		t.Errorf("got comment %q, want %q", got.Comment, entry.Comment)
	}
	if len(got.Actions) != 1 || got.Actions[0].Spec != "numpy-1.22.0-py310h1234_0" {
		t.Errorf("got actions %+v", got.Actions)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	h, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.Entries) != 0 {
		t.Errorf("expected no entries for a prefix with no history")
	}
}

func TestAppendDistinguishesInstallAndRemove(t *testing.T) {
	prefix := t.TempDir()
	h := &History{Prefix: prefix}
	if err := h.Append(Entry{
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Actions: []Action{
			{Verb: "install", Spec: "numpy-1.22.0-0"},
			{Verb: "remove", Spec: "scipy-1.9.0-0"},
		},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded, err := Load(prefix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	actions := loaded.Entries[0].Actions
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(actions))
	}
	if actions[0].Verb != "install" || actions[1].Verb != "remove" {
		t.Errorf("got verbs %q, %q", actions[0].Verb, actions[1].Verb)
	}
}

func TestRequestedSpecsLaterEntryOverrides(t *testing.T) {
	h := &History{Entries: []Entry{
		{Specs: []string{"numpy>=1.20"}},
		{Specs: []string{"numpy==1.22.0"}},
	}}
	specs := h.RequestedSpecs()
	if len(specs) != 1 || specs[0] != "numpy==1.22.0" {
		t.Errorf("got %v, want the later spec to win", specs)
	}
}

func TestInputHashStableForSameSpecs(t *testing.T) {
	a := &History{Entries: []Entry{{Specs: []string{"numpy>=1.20", "scipy"}}}}
	b := &History{Entries: []Entry{{Specs: []string{"scipy", "numpy>=1.20"}}}}
	ha, hb := a.InputHash(), b.InputHash()
	if hex.EncodeToString(ha) != hex.EncodeToString(hb) {
		t.Errorf("expected the same requested-spec set to hash identically regardless of entry order")
	}
}

func TestInputHashChangesWithSpecs(t *testing.T) {
	a := &History{Entries: []Entry{{Specs: []string{"numpy>=1.20"}}}}
	b := &History{Entries: []Entry{{Specs: []string{"numpy>=1.21"}}}}
	if hex.EncodeToString(a.InputHash()) == hex.EncodeToString(b.InputHash()) {
		t.Errorf("expected different requested specs to produce different hashes")
	}
}
