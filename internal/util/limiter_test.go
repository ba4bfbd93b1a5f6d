package util

import "testing"

func TestLimiter_BurstOfOne(t *testing.T) {
	l := NewPerMinute(30)

	if !l.Allow() {
		t.Fatal("first run should be allowed immediately")
	}
	if l.Allow() {
		t.Fatal("second immediate run should be throttled")
	}
}
