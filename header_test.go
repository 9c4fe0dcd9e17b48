package wgobfs

import "testing"

func TestClearDiffServIPv4(t *testing.T) {
	tests := []struct {
		tos  byte
		want byte
	}{
		{0x88, 0x00},
		{0x89, 0x01},
		{0x00, 0x00},
		{0xff, 0x03},
	}

	for _, tt := range tests {
		packet := make([]byte, 20)
		packet[0] = 0x45
		packet[1] = tt.tos
		clearDiffServIPv4(packet)
		if packet[1] != tt.want {
			t.Errorf("clearDiffServIPv4: tos %#02x -> %#02x, want %#02x", tt.tos, packet[1], tt.want)
		}
	}
}

func TestClearDiffServIPv4TooShort(t *testing.T) {
	packet := make([]byte, 10)
	packet[1] = 0xff
	clearDiffServIPv4(packet)
	if packet[1] != 0xff {
		t.Error("clearDiffServIPv4 must not touch a buffer shorter than a minimal IPv4 header")
	}
}

func buildIPv4UDP(payloadLen int) []byte {
	ihl := 20
	total := ihl + 8 + payloadLen
	packet := make([]byte, total)
	packet[0] = 0x45
	packet[2], packet[3] = byte(total>>8), byte(total)
	packet[8] = 64
	packet[9] = 17
	copy(packet[12:16], []byte{10, 0, 0, 1})
	copy(packet[16:20], []byte{10, 0, 0, 2})
	packet[ihl] = 0x13
	packet[ihl+1] = 0x88
	packet[ihl+2] = 0x00
	packet[ihl+3] = 0x50
	udpLen := 8 + payloadLen
	packet[ihl+4], packet[ihl+5] = byte(udpLen>>8), byte(udpLen)
	return packet
}

func TestFixIPv4UDPHeadersRecomputesLengthsAndChecksums(t *testing.T) {
	packet := buildIPv4UDP(5)
	// Simulate the payload having grown without the length/checksum fields
	// having been updated yet.
	grown := append(packet, []byte{1, 2, 3, 4, 5}...)

	fixIPv4UDPHeaders(grown)

	gotTotal := int(grown[2])<<8 | int(grown[3])
	if gotTotal != len(grown) {
		t.Errorf("total length = %d, want %d", gotTotal, len(grown))
	}

	ihl := int(grown[0]&0x0f) * 4
	// A valid header sums to 0xffff; its complement is 0, which checksum16
	// reports as 0xffff.
	if checksum16(grown[:ihl]) != 0xffff {
		t.Error("IPv4 header checksum does not self-validate after fixIPv4UDPHeaders")
	}

	gotUDPLen := int(grown[ihl+4])<<8 | int(grown[ihl+5])
	if gotUDPLen != len(grown)-ihl {
		t.Errorf("UDP length = %d, want %d", gotUDPLen, len(grown)-ihl)
	}
}

func TestFixIPv4UDPHeadersIdempotent(t *testing.T) {
	packet := buildIPv4UDP(5)
	fixIPv4UDPHeaders(packet)
	first := append([]byte{}, packet...)
	fixIPv4UDPHeaders(packet)
	if string(first) != string(packet) {
		t.Error("fixIPv4UDPHeaders is not idempotent")
	}
}

func buildIPv6UDP(payloadLen int) []byte {
	packet := make([]byte, 40+8+payloadLen)
	packet[0] = 0x60
	packet[6] = 17
	packet[7] = 64
	for i := 0; i < 16; i++ {
		packet[8+i] = byte(i + 1)
		packet[24+i] = byte(i + 100)
	}
	payloadLenField := 8 + payloadLen
	packet[4], packet[5] = byte(payloadLenField>>8), byte(payloadLenField)
	const udpStart = 40
	packet[udpStart], packet[udpStart+1] = 0x13, 0x88
	packet[udpStart+2], packet[udpStart+3] = 0x00, 0x50
	packet[udpStart+4], packet[udpStart+5] = byte(payloadLenField>>8), byte(payloadLenField)
	return packet
}

func TestFixIPv6UDPHeadersRecomputesLengths(t *testing.T) {
	packet := buildIPv6UDP(5)
	grown := append(packet, []byte{9, 9, 9, 9, 9}...)

	fixIPv6UDPHeaders(grown)

	gotPayload := int(grown[4])<<8 | int(grown[5])
	if gotPayload != len(grown)-40 {
		t.Errorf("payload length = %d, want %d", gotPayload, len(grown)-40)
	}

	const udpStart = 40
	gotUDPLen := int(grown[udpStart+4])<<8 | int(grown[udpStart+5])
	if gotUDPLen != len(grown)-40 {
		t.Errorf("UDP length = %d, want %d", gotUDPLen, len(grown)-40)
	}
}

func TestFixUDPHeadersDispatchesOnVersion(t *testing.T) {
	v4 := buildIPv4UDP(2)
	fixUDPHeaders(v4, 4)
	if int(v4[2])<<8|int(v4[3]) != len(v4) {
		t.Error("fixUDPHeaders did not dispatch to the IPv4 path")
	}

	v6 := buildIPv6UDP(2)
	fixUDPHeaders(v6, 6)
	if int(v6[4])<<8|int(v6[5]) != len(v6)-40 {
		t.Error("fixUDPHeaders did not dispatch to the IPv6 path")
	}

	other := []byte{0xff, 0, 0, 0}
	cp := append([]byte{}, other...)
	fixUDPHeaders(cp, 5)
	if string(cp) != string(other) {
		t.Error("fixUDPHeaders must be a no-op for unrecognized IP versions")
	}
}
