// Package wgobfs implements a userspace traffic-analysis countermeasure for
// WireGuard: a per-queue worker that reads datagrams off a Linux NFQUEUE and
// either obfuscates them on egress or deobfuscates them on ingress.
//
// WireGuard's fixed header fields and characteristic packet sizes are
// perturbed by encrypting two small header regions (the first 16 bytes of
// the WireGuard payload and its trailing MAC2), inserting a random-length
// pad, and appending a fresh 12-byte nonce. Keepalive frames are additionally
// dropped in randomized bursts to disrupt periodic-beacon analysis.
//
// Security posture: this package performs no authentication. The
// construction is obfuscation, not AEAD — no integrity tag is verified, and
// an on-path attacker can flip pad or nonce bytes undetected. WireGuard's own
// handshake and transport MACs remain the sole authority on whether a packet
// is accepted; a malformed or tampered obfuscated packet is passed through as
// best-effort and rejected downstream, never authenticated here.
package wgobfs
