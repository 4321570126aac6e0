package ethernet

import (
	"testing"

	"github.com/netembed/tcpip/internal/bufchunk"
	"github.com/netembed/tcpip/linklayer/macfilter"
	"github.com/netembed/tcpip/netiface"
	"github.com/netembed/tcpip/tcpip"
)

type fakeDriver struct {
	sent     []*bufchunk.Buffer
	onEvent  func(*bufchunk.Buffer)
	features netiface.Features
}

func (d *fakeDriver) Init() (netiface.Features, error)        { return d.features, nil }
func (d *fakeDriver) Tick() error                             { return nil }
func (d *fakeDriver) EnableIRQ()                              {}
func (d *fakeDriver) DisableIRQ()                             {}
func (d *fakeDriver) SetEventHandler(f func(*bufchunk.Buffer)) { d.onEvent = f }
func (d *fakeDriver) SendPacket(frame *bufchunk.Buffer) error {
	d.sent = append(d.sent, frame)
	return nil
}
func (d *fakeDriver) UpdateMACAddrFilter(*macfilter.Table) error { return nil }

func newVIF(t *testing.T, feat netiface.Features) (*VirtualInterface, *fakeDriver) {
	t.Helper()
	drv := &fakeDriver{features: feat}
	iface, err := netiface.New(0, "eth0", drv, 8, 8)
	if err != nil {
		t.Fatalf("netiface.New: %v", err)
	}
	iface.MAC = tcpip.MACAddr{0x02, 0, 0, 0, 0, 1}
	vif := Bind(iface)
	iface.BindOnFrame(func(frame *bufchunk.Buffer) {
		Demux(vif, nil, frame.ReadAt(0, frame.TotalLength()))
	})
	return vif, drv
}

func TestDemuxRejectsUnknownFourteenByteHeader(t *testing.T) {
	vif, _ := newVIF(t, netiface.Features{AutoCRCVerif: true, AutoCRCStrip: true})
	// A 13-byte frame is too short even to hold an untagged 14-byte
	// header: spec.md §8's reject-on-RX boundary case.
	short := make([]byte, 13)
	if err := Demux(vif, nil, short); err == nil {
		t.Fatal("expected an error for a too-short frame")
	}
}

func TestDemuxDispatchesToRegisteredHandler(t *testing.T) {
	vif, _ := newVIF(t, netiface.Features{AutoCRCVerif: true, AutoCRCStrip: true})
	var gotSrc tcpip.MACAddr
	var gotPayload []byte
	vif.RegisterHandler(EtherTypeARP, func(v *VirtualInterface, payload *bufchunk.Buffer, src tcpip.MACAddr) {
		gotSrc = src
		gotPayload = payload.ReadAt(0, payload.TotalLength())
	})

	hdr := &Header{Dst: vif.Iface.MAC, Src: tcpip.MACAddr{9, 9, 9, 9, 9, 9}, EtherType: EtherTypeARP}
	frame := append(BuildHeader(hdr), []byte("arp-payload")...)

	if err := Demux(vif, nil, frame); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSrc != hdr.Src {
		t.Fatalf("expected src %v, got %v", hdr.Src, gotSrc)
	}
	if string(gotPayload) != "arp-payload" {
		t.Fatalf("unexpected payload: %q", gotPayload)
	}
}

func TestDemuxDropsUnacceptedDestination(t *testing.T) {
	vif, _ := newVIF(t, netiface.Features{AutoCRCVerif: true, AutoCRCStrip: true})
	called := false
	vif.RegisterHandler(EtherTypeIPv4, func(*VirtualInterface, *bufchunk.Buffer, tcpip.MACAddr) { called = true })

	hdr := &Header{Dst: tcpip.MACAddr{0xAA, 0, 0, 0, 0, 1}, Src: tcpip.MACAddr{1, 1, 1, 1, 1, 1}, EtherType: EtherTypeIPv4}
	frame := append(BuildHeader(hdr), []byte("payload")...)

	if err := Demux(vif, nil, frame); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatal("expected handler not to be invoked for an unaccepted destination")
	}
}

func TestSendPadsShortFrameAndAppendsCRC(t *testing.T) {
	vif, drv := newVIF(t, netiface.Features{})
	payload := bufchunk.FromBytes([]byte("hi"))
	if err := vif.Send(tcpip.MACAddr{1, 2, 3, 4, 5, 6}, EtherTypeIPv4, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drv.sent) != 1 {
		t.Fatalf("expected one frame sent, got %d", len(drv.sent))
	}
	frame := drv.sent[0]
	if frame.TotalLength() != MinFrameLen+CRCLen {
		t.Fatalf("expected padded frame + CRC length %d, got %d", MinFrameLen+CRCLen, frame.TotalLength())
	}
}
