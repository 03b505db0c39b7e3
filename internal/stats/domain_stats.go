// Package stats tracks per-domain extraction outcomes. The numbers
// feed the /stats endpoint so operators can see which host variants
// are healthy and which are timing out or rejecting sessions.
package stats

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// maxDomains is the maximum number of domains to track before eviction.
// The allow-list keeps the real count tiny, this is a safety cap.
const maxDomains = 100

// DomainStats tracks extraction statistics for a single domain.
type DomainStats struct {
	RequestCount int64 `json:"requestCount"`
	SuccessCount int64 `json:"successCount"`
	ErrorCount   int64 `json:"errorCount"`

	// Failure counts by machine-readable kind.
	ErrorsByKind map[string]int64 `json:"errorsByKind,omitempty"`

	totalLatencyMs int64

	LastRequestTime time.Time `json:"lastRequestTime,omitempty"`
	LastSuccessTime time.Time `json:"lastSuccessTime,omitempty"`
	lastAccess      time.Time
}

// DomainStatsJSON is the serializable snapshot of DomainStats.
type DomainStatsJSON struct {
	RequestCount    int64            `json:"requestCount"`
	SuccessCount    int64            `json:"successCount"`
	ErrorCount      int64            `json:"errorCount"`
	ErrorsByKind    map[string]int64 `json:"errorsByKind,omitempty"`
	AvgLatencyMs    int64            `json:"avgLatencyMs"`
	SuccessRate     float64          `json:"successRate"`
	LastRequestTime time.Time        `json:"lastRequestTime,omitempty"`
	LastSuccessTime time.Time        `json:"lastSuccessTime,omitempty"`
}

func (s *DomainStats) toJSON() DomainStatsJSON {
	var avgLatency int64
	var successRate float64
	if s.RequestCount > 0 {
		avgLatency = s.totalLatencyMs / s.RequestCount
		successRate = float64(s.SuccessCount) / float64(s.RequestCount)
	}

	kinds := make(map[string]int64, len(s.ErrorsByKind))
	for k, v := range s.ErrorsByKind {
		kinds[k] = v
	}
	if len(kinds) == 0 {
		kinds = nil
	}

	return DomainStatsJSON{
		RequestCount:    s.RequestCount,
		SuccessCount:    s.SuccessCount,
		ErrorCount:      s.ErrorCount,
		ErrorsByKind:    kinds,
		AvgLatencyMs:    avgLatency,
		SuccessRate:     successRate,
		LastRequestTime: s.LastRequestTime,
		LastSuccessTime: s.LastSuccessTime,
	}
}

// Tracker aggregates extraction outcomes keyed by domain.
type Tracker struct {
	mu      sync.Mutex
	domains map[string]*DomainStats
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		domains: make(map[string]*DomainStats),
	}
}

// DomainFromURL extracts the lowercase hostname from a raw URL.
// Returns "unknown" when the URL cannot be parsed.
func DomainFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(parsed.Hostname())
}

// RecordSuccess records one successful extraction against the URL's domain.
func (t *Tracker) RecordSuccess(rawURL string, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.get(DomainFromURL(rawURL))
	now := time.Now()
	s.RequestCount++
	s.SuccessCount++
	s.totalLatencyMs += latency.Milliseconds()
	s.LastRequestTime = now
	s.LastSuccessTime = now
	s.lastAccess = now
}

// RecordFailure records one failed extraction with its error kind.
func (t *Tracker) RecordFailure(rawURL, kind string, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.get(DomainFromURL(rawURL))
	now := time.Now()
	s.RequestCount++
	s.ErrorCount++
	s.totalLatencyMs += latency.Milliseconds()
	if s.ErrorsByKind == nil {
		s.ErrorsByKind = make(map[string]int64)
	}
	s.ErrorsByKind[kind]++
	s.LastRequestTime = now
	s.lastAccess = now
}

// get returns the stats record for domain, creating it if needed.
// Must be called with t.mu held.
func (t *Tracker) get(domain string) *DomainStats {
	s, ok := t.domains[domain]
	if !ok {
		if len(t.domains) >= maxDomains {
			t.evictOldest()
		}
		s = &DomainStats{}
		t.domains[domain] = s
	}
	return s
}

// evictOldest drops the least recently touched domain.
// Must be called with t.mu held.
func (t *Tracker) evictOldest() {
	var oldest string
	var oldestTime time.Time
	first := true

	for domain, s := range t.domains {
		if first || s.lastAccess.Before(oldestTime) {
			oldest = domain
			oldestTime = s.lastAccess
			first = false
		}
	}
	if oldest != "" {
		delete(t.domains, oldest)
	}
}

// Snapshot returns a serializable copy of all tracked domains.
func (t *Tracker) Snapshot() map[string]DomainStatsJSON {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]DomainStatsJSON, len(t.domains))
	for domain, s := range t.domains {
		out[domain] = s.toJSON()
	}
	return out
}
