package signer

import "testing"

type fakeClock struct{ ms int64 }

func (f *fakeClock) NowMs() int64 { return f.ms }

func TestNextIsStrictlyIncreasing(t *testing.T) {
	clock := &fakeClock{ms: 1000}
	m := NewManager(clock)

	var last int64 = -1
	for i := 0; i < 100; i++ {
		n := m.Next()
		if n <= last {
			t.Fatalf("nonce did not increase: last=%d got=%d", last, n)
		}
		last = n
	}
}

func TestNextTracksAdvancingClock(t *testing.T) {
	clock := &fakeClock{ms: 1000}
	m := NewManager(clock)
	m.Next()

	clock.ms = 5000
	n := m.Next()
	if n < 5000 {
		t.Fatalf("expected nonce to track clock advance, got %d", n)
	}
}

func TestSyncReportsDriftSeverity(t *testing.T) {
	clock := &fakeClock{ms: 1000}
	m := NewManager(clock)

	if lvl := m.Sync(1000); lvl != DriftNone {
		t.Fatalf("expected no drift, got %v", lvl)
	}
	if lvl := m.Sync(1000 + 3000); lvl != DriftWarn {
		t.Fatalf("expected warn-level drift, got %v", lvl)
	}
	if lvl := m.Sync(1000 + 6000); lvl != DriftError {
		t.Fatalf("expected error-level drift, got %v", lvl)
	}
}

func TestNextReflectsSyncedOffset(t *testing.T) {
	clock := &fakeClock{ms: 1000}
	m := NewManager(clock)
	m.Sync(1000 + 10000) // server is 10s ahead

	n := m.Next()
	if n < 11000 {
		t.Fatalf("expected nonce to incorporate server offset, got %d", n)
	}
}
