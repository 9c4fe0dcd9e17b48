package wgobfs

import (
	"math/rand/v2"
	"time"

	"golang.zx2c4.com/wireguard/device"
)

const (
	nonceLen      = 12
	mac2Len       = 16
	maxBallastLen = 65
	// headerRegionLen is the size of the WireGuard header region that gets
	// encrypted in place. It happens to equal WireGuard's own transport
	// header size (type + receiver + counter), which is where this constant
	// is borrowed from: golang.zx2c4.com/wireguard/device names the same
	// quantity for its own transport framing.
	headerRegionLen = device.MessageTransportHeaderSize
)

// ipVersion returns the IP version from the high nibble of the first byte,
// or 0 if the buffer is empty.
func ipVersion(buf []byte) byte {
	if len(buf) == 0 {
		return 0
	}
	return buf[0] >> 4
}

// wireGuardStart returns the byte offset where the WireGuard payload begins
// for the given IP version, and whether that version is recognized.
func wireGuardStart(buf []byte, version byte) (int, bool) {
	switch version {
	case 4:
		ihl := int(buf[0]&0x0f) * 4
		return ihl + 8, true
	case 6:
		return 48, true
	default:
		return 0, false
	}
}

// Obfuscate implements the egress transform from spec.md §4.1. buf must have
// spare capacity beyond n for the padding and nonce this may append; n is
// the datagram's current length. rule supplies the key, MTU and cipher mode;
// dropper and rng are the worker's owned keepalive state and RNG.
//
// Returns the new valid-prefix length and Allow when the packet should be
// forwarded (possibly unchanged), or Drop when it should be discarded —
// either because the keepalive dropper suppressed it or because cap(buf) is
// too small for the padded packet. When the MTU budget leaves less than 3
// bytes for ballast, the packet is still obfuscated with no ballast.
func Obfuscate(buf []byte, n int, rule *Rule, dropper *Dropper, rng *rand.Rand, now time.Time) (int, Verdict) {
	if n == 0 || n > rule.MTU {
		return n, Allow
	}

	version := ipVersion(buf[:n])
	wgStart, ok := wireGuardStart(buf[:n], version)
	if !ok {
		return n, Allow
	}

	if n < wgStart+32 {
		return n, Allow
	}

	if dropper.Filter(buf[wgStart:n], now) == Drop {
		return n, Drop
	}

	maxInsert := rule.MTU - n
	maxBallast := maxInsert - (1 + nonceLen)
	if maxBallast > maxBallastLen {
		maxBallast = maxBallastLen
	}
	var ballastLen int
	if maxBallast >= 3 {
		ballastLen = 3 + rng.IntN(maxBallast-3+1)
	}

	newLen := n + 1 + ballastLen + nonceLen
	if newLen > cap(buf) {
		return n, Drop
	}

	var nonce [nonceLen]byte
	fillNonce(rng, &nonce)

	var block [headerRegionLen + mac2Len + 1]byte
	copy(block[:headerRegionLen], buf[wgStart:wgStart+headerRegionLen])
	block[headerRegionLen] = byte(ballastLen)
	copy(block[headerRegionLen+1:], buf[n-mac2Len:n])

	cipher := NewCipherState(rule.Key, nonce, rule.Mode)
	cipher.XOR(block[:])

	copy(buf[wgStart:wgStart+headerRegionLen], block[:headerRegionLen])

	offset := n - mac2Len
	fillBallast(rng, buf[offset:offset+ballastLen])
	offset += ballastLen

	buf[offset] = block[headerRegionLen]
	offset++

	copy(buf[offset:offset+mac2Len], block[headerRegionLen+1:])
	offset += mac2Len

	copy(buf[offset:offset+nonceLen], nonce[:])
	offset += nonceLen

	if offset != newLen {
		return n, Drop
	}

	if version == 4 {
		clearDiffServIPv4(buf[:newLen])
	}
	fixUDPHeaders(buf[:newLen], version)

	return newLen, Allow
}

// Deobfuscate implements the ingress transform from spec.md §4.1. buf[:n]
// is the received (possibly obfuscated) datagram. Returns the new
// valid-prefix length and Allow on success; when the packet is too small to
// have been obfuscated, or its declared ballast length is inconsistent with
// the buffer's actual size, it returns n unchanged and Allow, leaving buf
// byte-for-bit untouched (spec.md §9's open question, resolved as option
// (a): validate before mutating, by decoding into a scratch block first).
func Deobfuscate(buf []byte, n int, rule *Rule) (int, Verdict) {
	if n == 0 {
		return n, Allow
	}

	version := ipVersion(buf[:n])
	wgStart, ok := wireGuardStart(buf[:n], version)
	if !ok {
		return n, Allow
	}

	if n <= wgStart+45 {
		return n, Allow
	}

	var nonce [nonceLen]byte
	copy(nonce[:], buf[n-nonceLen:n])

	tailStart := n - 1 - nonceLen - mac2Len
	var block [headerRegionLen + mac2Len + 1]byte
	copy(block[:headerRegionLen], buf[wgStart:wgStart+headerRegionLen])
	copy(block[headerRegionLen:], buf[tailStart:n-nonceLen])

	cipher := NewCipherState(rule.Key, nonce, rule.Mode)
	cipher.XOR(block[:])

	ballastLen := int(block[headerRegionLen])
	if n < ballastLen+45 {
		// Malformed: leave buf entirely untouched, including the header
		// region, which is still encrypted at this point.
		return n, Allow
	}

	copy(buf[wgStart:wgStart+headerRegionLen], block[:headerRegionLen])

	newLen := n - 1 - ballastLen - nonceLen
	copy(buf[newLen-mac2Len:newLen], block[headerRegionLen+1:])

	fixUDPHeaders(buf[:newLen], version)

	return newLen, Allow
}
