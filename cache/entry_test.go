package cache

import (
	"testing"
	"time"
)

func TestKey_String(t *testing.T) {
	key := NewKey("event", "42")
	if got := key.String(); got != "event::42" {
		t.Errorf("String() = %q, want %q", got, "event::42")
	}
}

func TestKey_IsZero(t *testing.T) {
	if !(Key{}).IsZero() {
		t.Error("IsZero() = false for zero key, want true")
	}
	if NewKey("event", "1").IsZero() {
		t.Error("IsZero() = true for populated key, want false")
	}
}

func TestEntry_Expired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{name: "zero deadline never expires", expiresAt: time.Time{}, want: false},
		{name: "future deadline", expiresAt: now.Add(time.Minute), want: false},
		{name: "past deadline", expiresAt: now.Add(-time.Minute), want: true},
		{name: "deadline exactly now", expiresAt: now, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := Entry{Key: NewKey("event", "1"), ExpiresAt: tt.expiresAt}
			if got := entry.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}
