// Package commitment implements the hash-commit/reveal primitive used
// wherever a party must lock in a hidden choice before its counterparty
// acts. The raw choice and secret never reach shared state until reveal.
package commitment

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"

	"wagerhouse/internal/fault"
)

const commitDomain = "wagerhouse/v1/commit"

var (
	ErrCommitmentMismatch = fault.Wrap(fault.ErrValidation, "commitment_mismatch")
	ErrMalformedHash      = fault.Wrap(fault.ErrValidation, "malformed_commitment")
	ErrEmptySecret        = fault.Wrap(fault.ErrValidation, "empty_secret")
)

// Hash is the hex form of a sha256 commitment digest.
type Hash string

// Commit binds (choice, secret) into a hash. Fields are length-framed under
// a fixed domain string so no two (choice, secret) pairs share an encoding.
func Commit(choice int, secret string) Hash {
	h := sha256.New()
	frame(h.Write, []byte(commitDomain))
	var c8 [8]byte
	binary.BigEndian.PutUint64(c8[:], uint64(int64(choice)))
	frame(h.Write, c8[:])
	frame(h.Write, []byte(secret))
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// Verify recomputes the commitment and compares in constant time.
func Verify(stored Hash, choice int, secret string) error {
	if secret == "" {
		return ErrEmptySecret
	}
	if len(stored) != sha256.Size*2 {
		return ErrMalformedHash
	}
	computed := Commit(choice, secret)
	if subtle.ConstantTimeCompare([]byte(stored), []byte(computed)) != 1 {
		return ErrCommitmentMismatch
	}
	return nil
}

// Valid reports whether h is a well-formed commitment hash.
func Valid(h Hash) bool {
	if len(h) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(string(h))
	return err == nil
}

func frame(write func([]byte) (int, error), b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	_, _ = write(n[:])
	_, _ = write(b)
}
