package bus

import (
	"testing"
	"time"
)

func TestDedupeCacheSeen(t *testing.T) {
	c := NewDedupeCache(time.Minute, 100)

	if c.Seen("a") {
		t.Error("first Seen(a) = true, want false")
	}
	if !c.Seen("a") {
		t.Error("second Seen(a) = false, want true")
	}
	if c.Seen("b") {
		t.Error("Seen(b) = true, want false for distinct key")
	}
}

func TestDedupeCacheExpiry(t *testing.T) {
	c := NewDedupeCache(50*time.Millisecond, 100)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Seen("a")

	now = now.Add(30 * time.Millisecond)
	if !c.Seen("a") {
		t.Error("Seen(a) within TTL = false, want true")
	}

	now = now.Add(60 * time.Millisecond)
	if c.Seen("a") {
		t.Error("Seen(a) after TTL = true, want false")
	}
}

func TestDedupeCacheEmptyKeyNeverSeen(t *testing.T) {
	c := NewDedupeCache(time.Minute, 100)
	if c.Seen("") || c.Seen("") {
		t.Error("empty key must never dedupe")
	}
}

func TestDedupeCacheCapEvictsExpired(t *testing.T) {
	c := NewDedupeCache(50*time.Millisecond, 2)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Seen("a")
	c.Seen("b")

	// Cache full of live entries: new keys pass through undeduped.
	if c.Seen("c") {
		t.Error("Seen(c) on full cache = true, want false")
	}

	// Once the old entries expire, new keys are tracked again.
	now = now.Add(100 * time.Millisecond)
	if c.Seen("d") {
		t.Error("first Seen(d) = true, want false")
	}
	if !c.Seen("d") {
		t.Error("second Seen(d) = false, want true after eviction made room")
	}
}
