package stats

import (
	"fmt"
	"testing"
	"time"
)

func TestDomainFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://x.com/janedoe/status/1", "x.com"},
		{"https://WWW.X.COM/post", "www.x.com"},
		{"not a url at all ::", "unknown"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		if got := DomainFromURL(tt.in); got != tt.want {
			t.Errorf("DomainFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTrackerRecordsOutcomes(t *testing.T) {
	tr := NewTracker()

	tr.RecordSuccess("https://x.com/a/status/1", 100*time.Millisecond)
	tr.RecordSuccess("https://x.com/a/status/2", 300*time.Millisecond)
	tr.RecordFailure("https://x.com/a/status/3", "content_not_found", 200*time.Millisecond)
	tr.RecordFailure("https://twitter.com/b/status/4", "pool_timeout", 0)

	snap := tr.Snapshot()

	xcom, ok := snap["x.com"]
	if !ok {
		t.Fatal("x.com not tracked")
	}
	if xcom.RequestCount != 3 || xcom.SuccessCount != 2 || xcom.ErrorCount != 1 {
		t.Errorf("x.com counts = %+v", xcom)
	}
	if xcom.AvgLatencyMs != 200 {
		t.Errorf("AvgLatencyMs = %d, want 200", xcom.AvgLatencyMs)
	}
	if xcom.ErrorsByKind["content_not_found"] != 1 {
		t.Errorf("ErrorsByKind = %v", xcom.ErrorsByKind)
	}
	if xcom.SuccessRate < 0.66 || xcom.SuccessRate > 0.67 {
		t.Errorf("SuccessRate = %f, want 2/3", xcom.SuccessRate)
	}

	tw, ok := snap["twitter.com"]
	if !ok {
		t.Fatal("twitter.com not tracked")
	}
	if tw.ErrorsByKind["pool_timeout"] != 1 {
		t.Errorf("twitter.com ErrorsByKind = %v", tw.ErrorsByKind)
	}
}

func TestTrackerSnapshotIsolation(t *testing.T) {
	tr := NewTracker()
	tr.RecordFailure("https://x.com/a/status/1", "navigation_failed", 0)

	snap := tr.Snapshot()
	snap["x.com"].ErrorsByKind["navigation_failed"] = 999

	if tr.Snapshot()["x.com"].ErrorsByKind["navigation_failed"] != 1 {
		t.Error("snapshot mutation leaked into tracker state")
	}
}

func TestTrackerEviction(t *testing.T) {
	tr := NewTracker()

	for i := 0; i < maxDomains+10; i++ {
		tr.RecordSuccess(fmt.Sprintf("https://host%d.example/p", i), time.Millisecond)
	}

	if got := len(tr.Snapshot()); got > maxDomains {
		t.Errorf("tracked domains = %d, want at most %d", got, maxDomains)
	}
}
