package sem

import (
	"strings"
	"testing"
)

func TestDeriveNameDeterministic(t *testing.T) {
	a, err := DeriveName("_isl_sem_", "ses1_mdl42")
	if err != nil {
		t.Fatalf("DeriveName: %v", err)
	}
	b, err := DeriveName("_isl_sem_", "ses1_mdl42")
	if err != nil {
		t.Fatalf("DeriveName: %v", err)
	}
	if a != b {
		t.Errorf("DeriveName should be deterministic, got %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "_isl_sem_") {
		t.Errorf("expected prefix to be preserved, got %q", a)
	}
}

func TestDeriveNameDiffersByKey(t *testing.T) {
	a, _ := DeriveName("_isl_sem_", "ses1_mdl42")
	b, _ := DeriveName("_isl_sem_", "ses1_mdl43")
	if a == b {
		t.Errorf("expected different keys to derive different names, both %q", a)
	}
}

func TestDeriveNameKeepsOnlyLetters(t *testing.T) {
	name, err := DeriveName("_isl_sem_", "ses1_mdl-42!")
	if err != nil {
		t.Fatalf("DeriveName: %v", err)
	}
	// after the prefix, everything up to the hex digest must be letters only
	rest := strings.TrimPrefix(name, "_isl_sem_")
	letters := rest[:len(rest)-40] // sha1 hex digest is 40 chars
	for _, r := range letters {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			t.Errorf("expected only letters before digest, found %q in %q", r, rest)
		}
	}
}

func TestDeriveNameRejectsShortPrefix(t *testing.T) {
	if _, err := DeriveName("ab", "key"); err == nil {
		t.Error("expected error for prefix shorter than 3 bytes")
	}
}

func TestDeriveNameRejectsEmptyKey(t *testing.T) {
	if _, err := DeriveName("_isl_sem_", ""); err == nil {
		t.Error("expected error for empty key")
	}
}
