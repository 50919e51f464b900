package store

import "testing"

func TestValidTransition(t *testing.T) {
	cases := []struct {
		action string
		from   string
		valid  bool
	}{
		{"call", "waiting", true},
		{"call", "called", false},
		{"call", "served", false},
		{"serve", "called", true},
		{"serve", "waiting", false},
		{"complete", "served", true},
		{"complete", "waiting", false},
		{"complete", "called", false},
		{"skip", "waiting", true},
		{"skip", "called", true},
		{"skip", "served", false},
		{"call", "completed", false},
		{"serve", "completed", false},
		{"skip", "skipped", false},
		{"unknown", "waiting", false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestStatusAfter(t *testing.T) {
	cases := []struct {
		action string
		status string
		ok     bool
	}{
		{"call", "called", true},
		{"serve", "served", true},
		{"complete", "completed", true},
		{"skip", "skipped", true},
		{"recall", "", false},
	}
	for _, tt := range cases {
		status, ok := StatusAfter(tt.action)
		if status != tt.status || ok != tt.ok {
			t.Fatalf("StatusAfter(%q)=(%q,%v), want (%q,%v)", tt.action, status, ok, tt.status, tt.ok)
		}
	}
}
