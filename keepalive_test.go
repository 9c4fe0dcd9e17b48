package wgobfs

import (
	"math/rand/v2"
	"testing"
	"time"
)

func TestIsKeepalive(t *testing.T) {
	tests := []struct {
		name string
		pkt  []byte
		want bool
	}{
		{"minimal keepalive", []byte{0x04}, true},
		{"typical keepalive", []byte{0x04, 0, 0, 0}, true},
		{"max-length keepalive", make32(0x04), true},
		{"wrong tag", []byte{0x01, 0, 0, 0}, false},
		{"one byte too long", make33(0x04), false},
		{"empty", []byte{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKeepalive(tt.pkt); got != tt.want {
				t.Errorf("IsKeepalive(%x) = %v, want %v", tt.pkt, got, tt.want)
			}
		})
	}
}

func make32(b byte) []byte {
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func make33(b byte) []byte {
	buf := make([]byte, 33)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func TestDropperAllowsNonKeepalive(t *testing.T) {
	d := NewDropper(1, 2, rand.New(rand.NewPCG(1, 2)))
	pkt := []byte{0x01, 0, 0, 0}
	if got := d.Filter(pkt, time.Now()); got != Allow {
		t.Errorf("Filter(non-keepalive) = %v, want Allow", got)
	}
}

func TestDropperResetsOnNonKeepalive(t *testing.T) {
	d := NewDropper(1, 2, rand.New(rand.NewPCG(1, 2)))
	keepalive := []byte{0x04, 0, 0, 0}

	d.dropLeft = 2
	d.Filter(keepalive, time.Now())

	nonKeepalive := []byte{0x01, 0, 0, 0}
	if got := d.Filter(nonKeepalive, time.Now()); got != Allow {
		t.Errorf("Filter(non-keepalive after pending) = %v, want Allow", got)
	}
	if d.dropLeft != 0 {
		t.Errorf("dropLeft = %d after non-keepalive reset, want 0", d.dropLeft)
	}
}

func TestDropperFirstKeepaliveAlwaysDrops(t *testing.T) {
	d := NewDropper(1, 1, rand.New(rand.NewPCG(1, 2)))
	keepalive := []byte{0x04, 0, 0, 0}

	if got := d.Filter(keepalive, time.Now()); got != Drop {
		t.Errorf("Filter(first keepalive) = %v, want Drop", got)
	}
}

func TestDropperBurstThenCooldownThenAllow(t *testing.T) {
	d := NewDropper(3, 3, rand.New(rand.NewPCG(7, 11)))
	keepalive := []byte{0x04, 0, 0, 0}
	now := time.Now()

	// First call arms the burst and drops. The burst length itself (3) is
	// consumed by dropLeft, so exactly 3 more Filter calls should Drop
	// before the pending cooldown window is checked.
	drops := 0
	for i := 0; i < 4; i++ {
		if d.Filter(keepalive, now) == Drop {
			drops++
		}
	}
	if drops != 4 {
		t.Fatalf("expected all 4 calls within the burst window to Drop, got %d drops", drops)
	}

	// Still within the cooldown window: must keep dropping.
	if got := d.Filter(keepalive, now.Add(time.Second)); got != Drop {
		t.Errorf("Filter during cooldown = %v, want Drop", got)
	}

	// Once the cooldown has elapsed, the next keepalive is let through and
	// pending state clears.
	later := now.Add(11 * time.Second)
	if got := d.Filter(keepalive, later); got != Allow {
		t.Errorf("Filter after cooldown elapsed = %v, want Allow", got)
	}
	if d.hasPending {
		t.Error("hasPending should be cleared after the cooldown elapses")
	}
}

func TestNewDropperClampsBounds(t *testing.T) {
	d := NewDropper(0, 0, rand.New(rand.NewPCG(1, 2)))
	if d.min != 1 || d.max != 1 {
		t.Errorf("NewDropper(0,0) clamped to min=%d max=%d, want 1,1", d.min, d.max)
	}

	d2 := NewDropper(5, 2, rand.New(rand.NewPCG(1, 2)))
	if d2.max < d2.min {
		t.Errorf("NewDropper(5,2): max=%d is less than min=%d", d2.max, d2.min)
	}
}
