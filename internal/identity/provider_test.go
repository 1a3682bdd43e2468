package identity

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsEmailTakenStructured(t *testing.T) {
	if !IsEmailTaken(ErrEmailTaken) {
		t.Fatalf("sentinel must classify as taken")
	}
	if !IsEmailTaken(fmt.Errorf("create member: %w", ErrEmailTaken)) {
		t.Fatalf("wrapped sentinel must classify as taken")
	}
}

func TestIsEmailTakenSubstringFallback(t *testing.T) {
	if !IsEmailTaken(errors.New("upstream says: User already registered")) {
		t.Fatalf("opaque provider message must classify as taken")
	}
	if IsEmailTaken(errors.New("connection refused")) {
		t.Fatalf("unrelated error must not classify as taken")
	}
	if IsEmailTaken(nil) {
		t.Fatalf("nil error must not classify as taken")
	}
}
