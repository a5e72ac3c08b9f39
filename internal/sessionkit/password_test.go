package sessionkit

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	t.Parallel()

	hasher := NewBcryptHasher(bcrypt.MinCost)
	digest, hashErr := hasher.Hash("hunter22")
	if hashErr != nil {
		t.Fatalf("hash error: %v", hashErr)
	}
	if digest == "hunter22" {
		t.Fatalf("digest must not equal the plaintext")
	}
	if !hasher.Compare("hunter22", digest) {
		t.Fatalf("expected matching password to compare true")
	}
	if hasher.Compare("wrong", digest) {
		t.Fatalf("expected mismatched password to compare false")
	}
}

func TestBcryptHasherClampsCost(t *testing.T) {
	t.Parallel()

	hasher := NewBcryptHasher(-1)
	if hasher.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost for out-of-range value, got %d", hasher.cost)
	}
	hasher = NewBcryptHasher(bcrypt.MaxCost + 1)
	if hasher.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost for oversized value, got %d", hasher.cost)
	}
}

func TestBcryptHasherRejectsGarbageDigest(t *testing.T) {
	t.Parallel()

	hasher := NewBcryptHasher(bcrypt.MinCost)
	if hasher.Compare("hunter22", "not-a-bcrypt-digest") {
		t.Fatalf("expected comparison against a garbage digest to fail")
	}
}
