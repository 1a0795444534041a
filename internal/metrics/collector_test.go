package metrics

import (
	"testing"
	"time"
)

func TestRecordAggregates(t *testing.T) {
	c := NewCollector()
	c.Record("send_message", 10*time.Millisecond, false)
	c.Record("send_message", 30*time.Millisecond, true)
	c.Record("list_chats", 5*time.Millisecond, false)

	byOp := map[string]RequestSnapshot{}
	for _, snap := range c.Snapshot() {
		byOp[snap.Operation] = snap
	}
	if len(byOp) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(byOp))
	}

	send := byOp["send_message"]
	if send.Count != 2 {
		t.Errorf("count = %d, want 2", send.Count)
	}
	if send.Failures != 1 {
		t.Errorf("failures = %d, want 1", send.Failures)
	}
	if send.TotalTimeMs != 40 {
		t.Errorf("total = %dms, want 40", send.TotalTimeMs)
	}
	if send.AvgTimeMs != 20 {
		t.Errorf("avg = %.1fms, want 20", send.AvgTimeMs)
	}
	if send.MinTimeMs != 10 || send.MaxTimeMs != 30 {
		t.Errorf("min/max = %d/%d, want 10/30", send.MinTimeMs, send.MaxTimeMs)
	}
}

func TestSnapshotOfEmptyCollector(t *testing.T) {
	c := NewCollector()
	if snaps := c.Snapshot(); len(snaps) != 0 {
		t.Errorf("expected no snapshots, got %d", len(snaps))
	}
}

func TestUptime(t *testing.T) {
	c := NewCollector()
	if c.Uptime() < 0 {
		t.Error("uptime went backwards")
	}
}
