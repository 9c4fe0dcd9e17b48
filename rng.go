package wgobfs

import (
	"crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
)

// newWorkerRand builds a per-worker pseudo-random source seeded from the
// process's cryptographically-random pool, mixed with time, PID, and the
// rule's name so that two workers started in the same instant still diverge.
// Each worker owns its instance; none of this state is shared across
// goroutines (spec.md §5 — "each worker owns its RNG instance").
func newWorkerRand(ruleName string) *rand.Rand {
	var seedBytes [32]byte
	_, _ = rand.Read(seedBytes[:])

	var mix xxhash.Digest
	mix.Reset()
	_, _ = mix.Write(seedBytes[:])
	var t [8]byte
	binary.LittleEndian.PutUint64(t[:], uint64(time.Now().UnixNano()))
	_, _ = mix.Write(t[:])
	var pid [8]byte
	binary.LittleEndian.PutUint64(pid[:], uint64(os.Getpid()))
	_, _ = mix.Write(pid[:])
	_, _ = mix.Write([]byte(ruleName))

	seed1 := mix.Sum64()
	_, _ = mix.Write([]byte{0x01})
	seed2 := mix.Sum64()

	return rand.New(rand.NewChaCha8(splitSeed(seed1, seed2)))
}

// splitSeed expands two 64-bit values into the 32-byte seed ChaCha8 wants.
func splitSeed(a, b uint64) [32]byte {
	var out [32]byte
	binary.LittleEndian.PutUint64(out[0:8], a)
	binary.LittleEndian.PutUint64(out[8:16], b)
	binary.LittleEndian.PutUint64(out[16:24], a^b)
	binary.LittleEndian.PutUint64(out[24:32], a+b)
	return out
}

// fillNonce draws a fresh 12-byte nonce.
func fillNonce(rng *rand.Rand, nonce *[12]byte) {
	for i := 0; i < 12; i += 8 {
		v := rng.Uint64()
		for j := 0; j < 8 && i+j < 12; j++ {
			nonce[i+j] = byte(v >> (8 * j))
		}
	}
}

// fillBallast draws len(buf) random bytes for the obfuscation pad.
func fillBallast(rng *rand.Rand, buf []byte) {
	for i := 0; i < len(buf); i += 8 {
		v := rng.Uint64()
		end := i + 8
		if end > len(buf) {
			end = len(buf)
		}
		for j := i; j < end; j++ {
			buf[j] = byte(v >> (8 * (j - i)))
		}
	}
}
