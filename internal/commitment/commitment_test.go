package commitment

import (
	"errors"
	"testing"

	"wagerhouse/internal/fault"
)

func TestCommitVerifyRoundTrip(t *testing.T) {
	h := Commit(1, "s3cret")
	if !Valid(h) {
		t.Fatalf("commit produced invalid hash %q", h)
	}
	if err := Verify(h, 1, "s3cret"); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejectsWrongPair(t *testing.T) {
	h := Commit(0, "alpha")
	cases := []struct {
		choice int
		secret string
	}{
		{1, "alpha"},
		{0, "beta"},
		{1, "beta"},
	}
	for _, c := range cases {
		err := Verify(h, c.choice, c.secret)
		if !errors.Is(err, ErrCommitmentMismatch) {
			t.Fatalf("Verify(%d, %q) = %v, want commitment_mismatch", c.choice, c.secret, err)
		}
		if !errors.Is(err, fault.ErrValidation) {
			t.Fatalf("mismatch must be a validation error")
		}
	}
}

func TestVerifyRejectsEmptySecret(t *testing.T) {
	h := Commit(0, "alpha")
	if err := Verify(h, 0, ""); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected empty_secret, got %v", err)
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	if err := Verify(Hash("deadbeef"), 0, "alpha"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected malformed_commitment, got %v", err)
	}
}

func TestFramingIsUnambiguous(t *testing.T) {
	// ("ab", "c") and ("a", "bc") must not collide.
	if Commit(0, "ab") == Commit(0, "a") {
		t.Fatalf("distinct secrets collided")
	}
	if Commit(0, "x") == Commit(1, "x") {
		t.Fatalf("distinct choices collided")
	}
}
