package dns

import (
	"context"
	"testing"
)

func TestLookup_IPLiteral(t *testing.T) {
	for _, addr := range []string{"127.0.0.1", "::1"} {
		got, err := Lookup(context.Background(), addr)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", addr, err)
		}
		if got != addr {
			t.Fatalf("Lookup(%q)=%q", addr, got)
		}
	}
}

func TestPickIP_PrefersIPv4(t *testing.T) {
	got, err := pickIP([]string{"2001:db8::1", "192.0.2.10"})
	if err != nil {
		t.Fatalf("pickIP: %v", err)
	}
	if got != "192.0.2.10" {
		t.Fatalf("pickIP=%q, want IPv4", got)
	}

	got, err = pickIP([]string{"2001:db8::1"})
	if err != nil || got != "2001:db8::1" {
		t.Fatalf("pickIP v6 only = %q, %v", got, err)
	}

	if _, err := pickIP(nil); err == nil {
		t.Fatalf("expected error for empty answer")
	}
}

func TestRemoteLookupWithRace_NoServers(t *testing.T) {
	if _, err := remoteLookupWithRace(context.Background(), "example.invalid", nil); err == nil {
		t.Fatalf("expected error with no servers")
	}
}
