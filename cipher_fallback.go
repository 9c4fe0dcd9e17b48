package wgobfs

import "encoding/binary"

// fallbackCipher is a 6-round (three double-round) ChaCha stream cipher with
// an 8-byte nonce, used when no AVX2/NEON-accelerated implementation is
// available on the host. It is not intended to resist cryptanalysis — the
// 33-byte block it XORs is single-use keying material for obfuscation
// padding, not confidentiality against an adversary who can attack the
// cipher directly. See doc.go for the overall security posture.
type fallbackCipher struct {
	state [16]uint32
}

// newFallbackCipher initializes state per spec.md §4.4: constants, key,
// zeroed block counter, the low 8 bytes of nonce, zeroed reserved word.
func newFallbackCipher(key [32]byte, nonce [8]byte) *fallbackCipher {
	c := &fallbackCipher{}
	const constants = "expand 32-byte k"
	for i := 0; i < 4; i++ {
		c.state[i] = binary.LittleEndian.Uint32([]byte(constants[i*4 : i*4+4]))
	}
	for i := 0; i < 8; i++ {
		c.state[4+i] = binary.LittleEndian.Uint32(key[i*4 : i*4+4])
	}
	c.state[12] = 0
	for i := 0; i < 2; i++ {
		c.state[13+i] = binary.LittleEndian.Uint32(nonce[i*4 : i*4+4])
	}
	c.state[15] = 0
	return c
}

func quarterRound(s *[16]uint32, a, b, c, d int) {
	s[a] += s[b]
	s[d] ^= s[a]
	s[d] = (s[d] << 16) | (s[d] >> 16)
	s[c] += s[d]
	s[b] ^= s[c]
	s[b] = (s[b] << 12) | (s[b] >> 20)
	s[a] += s[b]
	s[d] ^= s[a]
	s[d] = (s[d] << 8) | (s[d] >> 24)
	s[c] += s[d]
	s[b] ^= s[c]
	s[b] = (s[b] << 7) | (s[b] >> 25)
}

func (c *fallbackCipher) generateBlock() [64]byte {
	working := c.state
	for i := 0; i < 3; i++ {
		quarterRound(&working, 0, 4, 8, 12)
		quarterRound(&working, 1, 5, 9, 13)
		quarterRound(&working, 2, 6, 10, 14)
		quarterRound(&working, 3, 7, 11, 15)
		quarterRound(&working, 0, 5, 10, 15)
		quarterRound(&working, 1, 6, 11, 12)
		quarterRound(&working, 2, 7, 8, 13)
		quarterRound(&working, 3, 4, 9, 14)
	}
	for i := range working {
		working[i] += c.state[i]
	}
	c.state[12]++

	var block [64]byte
	for i, w := range working {
		binary.LittleEndian.PutUint32(block[i*4:i*4+4], w)
	}
	return block
}

// xor applies the keystream to data in 64-byte strides, advancing the
// internal block counter across calls. Each call starts on a fresh block;
// the unused tail of a partial final block is discarded.
func (c *fallbackCipher) xor(data []byte) {
	offset := 0
	for offset < len(data) {
		block := c.generateBlock()
		end := offset + 64
		if end > len(data) {
			end = len(data)
		}
		for i := offset; i < end; i++ {
			data[i] ^= block[i-offset]
		}
		offset = end
	}
}
