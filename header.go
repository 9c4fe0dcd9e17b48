package wgobfs

// clearDiffServIPv4 zeroes the DSCP bits of the ToS byte (IPv4 byte 1),
// preserving the low 2 ECN bits. Only called on egress: removing the DSCP
// fingerprinting channel on ingress would rewrite a header field the remote
// WireGuard peer never sees.
func clearDiffServIPv4(packet []byte) {
	if len(packet) < 20 {
		return
	}
	packet[1] &= 0x03
}

// fixIPv4UDPHeaders rewrites the IPv4 total-length and header checksum, and
// the encapsulated UDP length and checksum, to match the packet's current
// length. Safe to call more than once: every field it writes is a pure
// function of the buffer's current contents, so repeated calls are
// idempotent.
func fixIPv4UDPHeaders(packet []byte) {
	if len(packet) < 20 {
		return
	}
	ihl := int(packet[0]&0x0f) * 4
	if ihl < 20 || ihl+8 > len(packet) {
		return
	}

	totalLen := uint16(len(packet))
	packet[2] = byte(totalLen >> 8)
	packet[3] = byte(totalLen)

	packet[10] = 0
	packet[11] = 0
	csum := checksum16(packet[:ihl])
	packet[10] = byte(csum >> 8)
	packet[11] = byte(csum)

	udpLen := uint16(len(packet) - ihl)
	packet[ihl+4] = byte(udpLen >> 8)
	packet[ihl+5] = byte(udpLen)

	packet[ihl+6] = 0
	packet[ihl+7] = 0
	sum := udpChecksumIPv4(packet[ihl:], packet[12:16], packet[16:20])
	packet[ihl+6] = byte(sum >> 8)
	packet[ihl+7] = byte(sum)
}

// fixIPv6UDPHeaders rewrites the IPv6 payload-length field, the encapsulated
// UDP length, and the UDP checksum. IPv6 carries no header checksum of its
// own. Idempotent for the same reason as fixIPv4UDPHeaders.
func fixIPv6UDPHeaders(packet []byte) {
	if len(packet) < 48 {
		return
	}
	const udpStart = 40
	payloadLen := uint16(len(packet) - 40)
	packet[4] = byte(payloadLen >> 8)
	packet[5] = byte(payloadLen)

	packet[udpStart+4] = byte(payloadLen >> 8)
	packet[udpStart+5] = byte(payloadLen)

	packet[udpStart+6] = 0
	packet[udpStart+7] = 0
	sum := udpChecksumIPv6(packet[udpStart:], packet[8:24], packet[24:40])
	packet[udpStart+6] = byte(sum >> 8)
	packet[udpStart+7] = byte(sum)
}

// fixUDPHeaders repairs the length and checksum fields for whichever IP
// version the packet carries. ipVersion is the high nibble of byte 0 (4 or
// 6); any other value is a no-op.
func fixUDPHeaders(packet []byte, ipVersion byte) {
	switch ipVersion {
	case 4:
		fixIPv4UDPHeaders(packet)
	case 6:
		fixIPv6UDPHeaders(packet)
	}
}
