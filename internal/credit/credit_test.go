package credit

import "testing"

func TestActionKindValid(t *testing.T) {
	for _, kind := range PlayerActionKinds() {
		if !kind.Valid() {
			t.Fatalf("kind %s should be valid", kind)
		}
	}
	if ActionKind("bribe").Valid() {
		t.Fatal("unknown kind should be invalid")
	}
}

func TestNewAccountKeyTrimsAndValidates(t *testing.T) {
	key, err := NewAccountKey("  guild ", " alice ")
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	if key.Community != "guild" || key.Member != "alice" {
		t.Fatalf("expected trimmed key, got %+v", key)
	}

	if _, err := NewAccountKey("", "alice"); err == nil {
		t.Fatal("expected error for empty community")
	}
	if _, err := NewAccountKey("guild", "   "); err == nil {
		t.Fatal("expected error for blank member")
	}
}
