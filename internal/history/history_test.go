package history

import (
	"os"
	"testing"
	"time"

	"github.com/tiergate/tiergate/pkg/entitlements"
)

func TestRecordAssignsEventID(t *testing.T) {
	h, err := New(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id, err := h.Record(Entry{
		Trigger: TriggerResolve,
		Tier:    entitlements.TierPro,
		Source:  entitlements.SourceRemoteAuthority,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id == "" {
		t.Fatal("Record returned empty event id")
	}

	entries := h.List(0)
	if len(entries) != 1 {
		t.Fatalf("List returned %d entries, want 1", len(entries))
	}
	if entries[0].EventID != id {
		t.Errorf("event id = %q, want %q", entries[0].EventID, id)
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("timestamp was not assigned")
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	h, err := New(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tiers := []entitlements.Tier{entitlements.TierFree, entitlements.TierProTrial, entitlements.TierPro}
	for i, tier := range tiers {
		if _, err := h.Record(Entry{
			Timestamp: time.Date(2025, 6, 1, 12, i, 0, 0, time.UTC),
			Trigger:   TriggerResolve,
			Tier:      tier,
			Source:    entitlements.SourceRemoteAuthority,
		}); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	entries := h.List(2)
	if len(entries) != 2 {
		t.Fatalf("List(2) returned %d entries", len(entries))
	}
	if entries[0].Tier != entitlements.TierPro || entries[1].Tier != entitlements.TierProTrial {
		t.Errorf("unexpected order: %q then %q", entries[0].Tier, entries[1].Tier)
	}
}

func TestNewHonorsConfiguredCacheLimit(t *testing.T) {
	dir := t.TempDir()

	h, err := New(dir, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := h.Record(Entry{
			Timestamp: time.Date(2025, 6, 1, 12, i, 0, 0, time.UTC),
			Trigger:   TriggerResolve,
			Tier:      entitlements.TierFree,
			Source:    entitlements.SourceNone,
		}); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	entries := h.List(0)
	if len(entries) != 3 {
		t.Fatalf("List returned %d entries, want the 3 newest", len(entries))
	}
	if got := entries[0].Timestamp.Minute(); got != 4 {
		t.Errorf("newest entry minute = %d, want 4", got)
	}

	// Reopening re-trims the loaded tail to the configured limit.
	h2, err := New(dir, 2)
	if err != nil {
		t.Fatalf("New reopen: %v", err)
	}
	if got := len(h2.List(0)); got != 2 {
		t.Fatalf("List after reopen returned %d entries, want 2", got)
	}
}

func TestCacheSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	h1, err := New(dir, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := h1.Record(Entry{Trigger: TriggerForce, Tier: entitlements.TierPro, Source: entitlements.SourcePlatformBilling}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	h2, err := New(dir, 0)
	if err != nil {
		t.Fatalf("New reopen: %v", err)
	}
	entries := h2.List(0)
	if len(entries) != 1 {
		t.Fatalf("List after reopen returned %d entries, want 1", len(entries))
	}
	if entries[0].Trigger != TriggerForce {
		t.Errorf("trigger = %q, want %q", entries[0].Trigger, TriggerForce)
	}
}

func TestLoadSkipsUnparseableLines(t *testing.T) {
	dir := t.TempDir()

	h1, err := New(dir, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := h1.Record(Entry{Trigger: TriggerResolve, Tier: entitlements.TierFree, Source: entitlements.SourceNone}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// Simulate a torn write.
	if err := appendRaw(h1.logPath, "{this is not json\n"); err != nil {
		t.Fatalf("appendRaw: %v", err)
	}
	if _, err := h1.Record(Entry{Trigger: TriggerResolve, Tier: entitlements.TierPro, Source: entitlements.SourceRemoteAuthority}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	h2, err := New(dir, 0)
	if err != nil {
		t.Fatalf("New reopen: %v", err)
	}
	if got := len(h2.List(0)); got != 2 {
		t.Fatalf("List returned %d entries, want 2 (bad line skipped)", got)
	}
}

func appendRaw(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}
