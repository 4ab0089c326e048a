package cli

import "testing"

func TestClampSnapshotAfterDefaultsWhenUnset(t *testing.T) {
	if got := clampSnapshotAfter(0, false); got != 10_000 {
		t.Errorf("clampSnapshotAfter(0, false) = %d, want 10000", got)
	}
	if got := clampSnapshotAfter(10_000, false); got != 10_000 {
		t.Errorf("clampSnapshotAfter(10000, false) = %d, want 10000", got)
	}
}

func TestClampSnapshotAfterExplicitZeroPassesThrough(t *testing.T) {
	if got := clampSnapshotAfter(0, true); got != 0 {
		t.Errorf("clampSnapshotAfter(0, true) = %d, want 0 (spec's snapshot_after=0 boundary case)", got)
	}
}

func TestClampSnapshotAfterCapsAtTenSeconds(t *testing.T) {
	if got := clampSnapshotAfter(60_000, true); got != 10_000 {
		t.Errorf("clampSnapshotAfter(60000, true) = %d, want 10000", got)
	}
}

func TestClampSnapshotAfterNegativeFloorsAtZero(t *testing.T) {
	if got := clampSnapshotAfter(-5, true); got != 0 {
		t.Errorf("clampSnapshotAfter(-5, true) = %d, want 0", got)
	}
}

func TestClampSnapshotAfterPassesThroughValidValue(t *testing.T) {
	if got := clampSnapshotAfter(3_000, true); got != 3_000 {
		t.Errorf("clampSnapshotAfter(3000, true) = %d, want 3000", got)
	}
}
