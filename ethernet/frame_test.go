package ethernet

import (
	"testing"

	"github.com/soygw/softgw/wire"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf [64]byte
	frm, err := NewFrame(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	dst := [6]byte{0xaa, 0, 0, 0, 0, 1}
	src := [6]byte{0xbb, 0, 0, 0, 0, 2}
	frm.SetDestinationHardwareAddr(dst)
	frm.SetSourceHardwareAddr(src)
	frm.SetEtherType(TypeIPv4)

	if *frm.DestinationHardwareAddr() != dst {
		t.Errorf("dst mismatch: got %v want %v", *frm.DestinationHardwareAddr(), dst)
	}
	if *frm.SourceHardwareAddr() != src {
		t.Errorf("src mismatch: got %v want %v", *frm.SourceHardwareAddr(), src)
	}
	if frm.EtherTypeOrSize() != TypeIPv4 {
		t.Errorf("ethertype mismatch: got %v", frm.EtherTypeOrSize())
	}
	if frm.IsBroadcast() {
		t.Error("frame should not be broadcast")
	}
}

func TestFrameBroadcast(t *testing.T) {
	var buf [64]byte
	frm, err := NewFrame(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	frm.SetDestinationHardwareAddr(BroadcastAddr())
	if !frm.IsBroadcast() {
		t.Error("expected broadcast destination to be recognized")
	}
}

func TestNewFrameShort(t *testing.T) {
	_, err := NewFrame(make([]byte, 13))
	if err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestValidateSizeShortPayload(t *testing.T) {
	buf := make([]byte, 20)
	frm, err := NewFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	// EtherType field <= 1500 is interpreted as payload size; claim more
	// bytes than are actually present.
	frm.SetEtherType(Type(100))
	var v wire.Validator
	frm.ValidateSize(&v)
	if !v.HasError() {
		t.Fatal("expected short-payload validation error")
	}
}
