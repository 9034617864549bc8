// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package cache

import (
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	t.Parallel()

	c := New("test", time.Minute)
	defer c.Stop()

	c.Set("stats", 42)
	v, ok := c.Get("stats")
	if !ok || v.(int) != 42 {
		t.Fatalf("Get() = %v, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) hit")
	}
	stats := c.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.TotalKeys != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if c.HitRate() != 50 {
		t.Errorf("HitRate() = %v, want 50", c.HitRate())
	}
}

func TestCacheExpiry(t *testing.T) {
	t.Parallel()

	c := New("test", time.Minute)
	defer c.Stop()

	c.SetWithTTL("short", "v", -time.Second)
	if _, ok := c.Get("short"); ok {
		t.Error("expired entry returned")
	}
	if c.GetStats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.GetStats().Evictions)
	}
}

func TestCacheClearAndDelete(t *testing.T) {
	t.Parallel()

	c := New("test", time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted key returned")
	}
	c.Clear()
	if _, ok := c.Get("b"); ok {
		t.Error("key survived Clear")
	}
	if c.GetStats().TotalKeys != 0 {
		t.Errorf("TotalKeys = %d", c.GetStats().TotalKeys)
	}
	c.Stop()
	c.Stop()
}

func TestGenerateKey(t *testing.T) {
	t.Parallel()

	type params struct {
		From string
		To   string
	}
	a := GenerateKey("analytics", params{"2024-03-01", "2024-03-08"})
	b := GenerateKey("analytics", params{"2024-03-01", "2024-03-08"})
	c := GenerateKey("analytics", params{"2024-03-01", "2024-03-09"})
	if a != b {
		t.Error("equal params produced different keys")
	}
	if a == c {
		t.Error("different params produced equal keys")
	}
	if GenerateKey("stats", params{}) == GenerateKey("analytics", params{}) {
		t.Error("method is not part of the key")
	}
}
