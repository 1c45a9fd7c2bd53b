package domain

import "testing"

func TestNewCheckpoint(t *testing.T) {
	cp := NewCheckpoint("inst-1", "gmail:user@example.com", "cursor-abc")

	if cp.InstanceID != "inst-1" {
		t.Errorf("expected InstanceID inst-1, got %s", cp.InstanceID)
	}
	if cp.Resource != "gmail:user@example.com" {
		t.Errorf("expected resource, got %s", cp.Resource)
	}
	if cp.Cursor != "cursor-abc" {
		t.Errorf("expected cursor cursor-abc, got %s", cp.Cursor)
	}
	if cp.Metadata == nil {
		t.Error("expected metadata bag allocated")
	}
	if cp.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt set")
	}
}

func TestCheckpointMeta(t *testing.T) {
	cp := &SyncCheckpoint{InstanceID: "inst-1", Resource: "delta"}

	if got := cp.Meta(MetaHistoryID); got != "" {
		t.Errorf("expected empty meta on nil bag, got %q", got)
	}

	cp.SetMeta(MetaHistoryID, "12345")
	if got := cp.Meta(MetaHistoryID); got != "12345" {
		t.Errorf("expected history_id 12345, got %q", got)
	}
}

func TestCheckpointClone(t *testing.T) {
	cp := NewCheckpoint("inst-1", "delta", "cursor-1")
	cp.SetMeta(MetaDeltaLink, "https://graph.example.com/delta?token=x")
	cp.ProcessedCount = 7

	clone := cp.Clone()
	if clone == cp {
		t.Fatal("expected distinct pointer")
	}
	if clone.Cursor != cp.Cursor || clone.ProcessedCount != 7 {
		t.Error("expected field values copied")
	}

	// Mutating the clone's metadata must not leak into the original
	clone.SetMeta(MetaDeltaLink, "changed")
	if cp.Meta(MetaDeltaLink) == "changed" {
		t.Error("clone shares metadata map with original")
	}
}
