// Package entropy isolates the engine's randomness behind a pluggable
// Source so a verifiable-random-function can be substituted without
// touching game logic.
//
// The default Env source derives draws from a process seed, the clock and
// a counter. That is deliberately weak: an adversary who can predict the
// environment can bias it. Commit-reveal paths tolerate this because the
// revealed secret is mixed in after commitment; instant-settlement paths
// accept the residual risk in exchange for one-step settlement.
package entropy

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"sync/atomic"
	"time"
)

const drawDomain = "wagerhouse/v1/entropy"

// Source yields 32 bytes of entropy per draw.
type Source interface {
	Draw() [32]byte
}

// Env is the environment-derived default source.
type Env struct {
	seed    [32]byte
	counter atomic.Uint64
}

func NewEnv() *Env {
	e := &Env{}
	if _, err := rand.Read(e.seed[:]); err != nil {
		// Degrade to clock-only seeding rather than refuse to start.
		binary.BigEndian.PutUint64(e.seed[:8], uint64(time.Now().UnixNano()))
	}
	return e
}

func (e *Env) Draw() [32]byte {
	var n8, t8 [8]byte
	binary.BigEndian.PutUint64(n8[:], e.counter.Add(1))
	binary.BigEndian.PutUint64(t8[:], uint64(time.Now().UnixNano()))
	h := sha256.New()
	h.Write([]byte(drawDomain))
	h.Write(e.seed[:])
	h.Write(n8[:])
	h.Write(t8[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Fixed replays a scripted sequence of draws; tests use it to pin outcomes.
type Fixed struct {
	draws []([32]byte)
	next  int
}

func NewFixed(draws ...[32]byte) *Fixed {
	return &Fixed{draws: draws}
}

// Word builds a draw whose first eight bytes encode v big-endian.
func Word(v uint64) [32]byte {
	var d [32]byte
	binary.BigEndian.PutUint64(d[:8], v)
	return d
}

func (f *Fixed) Draw() [32]byte {
	if len(f.draws) == 0 {
		return [32]byte{}
	}
	d := f.draws[f.next%len(f.draws)]
	f.next++
	return d
}

// Bit extracts the fairness bit of a draw.
func Bit(d [32]byte) int {
	return int(d[31] & 1)
}

// Uint64 reads the leading eight bytes of a draw.
func Uint64(d [32]byte) uint64 {
	return binary.BigEndian.Uint64(d[:8])
}

// Mod maps a draw uniformly onto [0, n). The modulo bias over a 64-bit
// range is negligible for the small n the engine uses.
func Mod(d [32]byte, n int) int {
	if n <= 0 {
		return 0
	}
	return int(Uint64(d) % uint64(n))
}

// Mix folds extra material into a draw, keeping the result a pure function
// of its inputs. Settlement paths use it to bind revealed secrets and
// participant identities into the outcome.
func Mix(d [32]byte, parts ...[]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(drawDomain))
	h.Write(d[:])
	for _, p := range parts {
		var n4 [4]byte
		binary.BigEndian.PutUint32(n4[:], uint32(len(p)))
		h.Write(n4[:])
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
