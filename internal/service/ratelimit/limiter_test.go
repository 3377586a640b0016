package ratelimit

import "testing"

func TestBurstThenExhaustion(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("provider", 3, 0) {
			t.Fatalf("call %d should be within burst capacity", i)
		}
	}
	if l.Allow("provider", 3, 0) {
		t.Fatal("fourth call should be rejected with no refill")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0) {
		t.Fatal("first key should start full")
	}
	if l.Allow("a", 1, 0) {
		t.Fatal("first key should be drained")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatal("second key should be unaffected")
	}
}

func TestTokensReporting(t *testing.T) {
	l := New()
	if got := l.Tokens("missing", 5, 1); got != 0 {
		t.Fatalf("unknown key tokens = %v, want 0", got)
	}
	l.Allow("k", 5, 0)
	if got := l.Tokens("k", 5, 0); got < 3.9 || got > 4.1 {
		t.Fatalf("tokens after one draw = %v, want about 4", got)
	}
}
