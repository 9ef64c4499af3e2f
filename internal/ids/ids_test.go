package ids

import (
	"strings"
	"testing"
)

func TestNew_InstanceIDsAreShort(t *testing.T) {
	id := New(PrefixInstance)
	if !strings.HasPrefix(id, "inst-") {
		t.Fatalf("expected inst prefix, got %q", id)
	}
	suffix := strings.TrimPrefix(id, "inst-")
	if got, want := len(suffix), 6; got != want {
		t.Fatalf("expected instance id suffix len %d, got %d (%q)", want, got, suffix)
	}
}

func TestNew_OtherIDsStayStableLength(t *testing.T) {
	id := New(PrefixStyle)
	if !strings.HasPrefix(id, "src-") {
		t.Fatalf("expected src prefix, got %q", id)
	}
	suffix := strings.TrimPrefix(id, "src-")
	if got, want := len(suffix), 8; got != want {
		t.Fatalf("expected style id suffix len %d, got %d (%q)", want, got, suffix)
	}
}

func TestNewUnique_SkipsExisting(t *testing.T) {
	calls := 0
	id := NewUnique(PrefixInstance, func(id string) bool {
		calls++
		return calls < 3
	})
	if calls != 3 {
		t.Fatalf("expected 3 existence checks, got %d", calls)
	}
	if !strings.HasPrefix(id, "inst-") {
		t.Fatalf("unexpected id %q", id)
	}
}
