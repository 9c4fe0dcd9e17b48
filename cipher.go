package wgobfs

import (
	"sync"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/sys/cpu"
)

// CipherMode hints which stream cipher variant a rule should prefer.
type CipherMode int

const (
	// CipherAuto selects the full-round cipher when the host has hardware
	// acceleration, else the fallback — the default for every rule.
	CipherAuto CipherMode = iota
	// CipherPreferFast behaves like CipherAuto (kept distinct so config
	// parsing can round-trip the "F" mode token without losing intent).
	CipherPreferFast
	// CipherForceFallback always uses the reduced-round software cipher,
	// regardless of what the host supports.
	CipherForceFallback
)

var (
	fastAvailableOnce sync.Once
	fastAvailable     bool
)

// hasFastCipher reports whether this host can run the full 20-round
// ChaCha20 path at the speed the fast facade assumes: AVX2 on x86/x86_64,
// NEON (ASIMD) on arm64. The probe runs once per process and is memoized,
// mirroring the original source's cached cpufeatures::new! probe.
func hasFastCipher() bool {
	fastAvailableOnce.Do(func() {
		fastAvailable = cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD
	})
	return fastAvailable
}

// HasFastCipher reports whether this host supports the full-round cipher
// path, for diagnostics (the check-cipher CLI verb).
func HasFastCipher() bool {
	return hasFastCipher()
}

type cipherKind int

const (
	cipherFast cipherKind = iota
	cipherFallback
)

// CipherState is a tagged union over the two stream cipher variants: a
// full-round hardware-accelerated ChaCha20 and a reduced-round software
// fallback. The facade selects the variant once at construction; callers
// never branch on it themselves.
type CipherState struct {
	kind     cipherKind
	fast     *chacha20.Cipher
	fallback *fallbackCipher
}

// NewCipherState constructs a CipherState from a 32-byte key, a 12-byte
// nonce, and a mode hint. ForceFallback always uses the reduced-round
// cipher; Auto and PreferFast use the full cipher when hasFastCipher
// reports true, else fall back.
func NewCipherState(key [32]byte, nonce [12]byte, mode CipherMode) *CipherState {
	if mode != CipherForceFallback && hasFastCipher() {
		c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
		if err == nil {
			return &CipherState{kind: cipherFast, fast: c}
		}
		// Construction only fails on malformed key/nonce lengths, which
		// cannot happen with these fixed-size arrays; fall through to the
		// software cipher defensively rather than panic in a packet path.
	}
	var shortNonce [8]byte
	copy(shortNonce[:], nonce[:8])
	return &CipherState{kind: cipherFallback, fallback: newFallbackCipher(key, shortNonce)}
}

// XOR applies the keystream to data in place. The full-round variant
// continues byte-exactly from wherever the previous XOR call on this
// CipherState left off. The fallback variant continues from the next 64-byte
// block: keystream bytes left unused in a call's last partial block are
// discarded, not carried over to the next call.
func (c *CipherState) XOR(data []byte) {
	switch c.kind {
	case cipherFast:
		c.fast.XORKeyStream(data, data)
	case cipherFallback:
		c.fallback.xor(data)
	}
}
