package rawsocket

import (
	"testing"

	"github.com/netembed/tcpip/internal/bufchunk"
	"github.com/netembed/tcpip/linklayer/ethernet"
	"github.com/netembed/tcpip/netiface"
)

func TestSocketQueueDropsOldestOnOverflow(t *testing.T) {
	s := New(KindRawIP, 2)
	s.Protocol = 6

	d := NewDemux()
	d.Open(s)

	d.DeliverIP("eth0", 6, []byte("first"))
	d.DeliverIP("eth0", 6, []byte("second"))
	d.DeliverIP("eth0", 6, []byte("third"))

	if s.Pending() != 2 {
		t.Fatalf("expected queue capped at 2, got %d", s.Pending())
	}
	got, ok := s.Recv()
	if !ok || string(got.Data) != "second" {
		t.Fatalf("expected oldest ('first') dropped, got %q", got.Data)
	}
	got, ok = s.Recv()
	if !ok || string(got.Data) != "third" {
		t.Fatalf("unexpected second datagram: %q", got.Data)
	}
}

func TestDeliverIPMatchesProtocolOnly(t *testing.T) {
	tcp := New(KindRawIP, 4)
	tcp.Protocol = 6
	udp := New(KindRawIP, 4)
	udp.Protocol = 17

	d := NewDemux()
	d.Open(tcp)
	d.Open(udp)

	d.DeliverIP("eth0", 6, []byte("tcp-data"))

	if tcp.Pending() != 1 {
		t.Fatal("expected TCP-protocol socket to receive the datagram")
	}
	if udp.Pending() != 0 {
		t.Fatal("expected UDP-protocol socket to not receive it")
	}
}

func TestDeliverEthernetMatchesEtherTypeOrAll(t *testing.T) {
	specific := New(KindRawEth, 4)
	specific.EtherType = ethernet.EtherTypeARP
	catchAll := New(KindRawEth, 4)
	catchAll.EtherType = ProtoAll

	d := NewDemux()
	d.Open(specific)
	d.Open(catchAll)

	hdr := &ethernet.Header{EtherType: ethernet.EtherTypeARP}
	frame := bufchunk.FromBytes(append(ethernet.BuildHeader(hdr), []byte("payload")...))

	vif := &ethernet.VirtualInterface{Iface: &netiface.Interface{Name: "eth0"}}
	d.DeliverEthernet(vif, frame)

	if specific.Pending() != 1 {
		t.Fatal("expected EtherType-specific socket to receive the frame")
	}
	if catchAll.Pending() != 1 {
		t.Fatal("expected ProtoAll socket to receive every frame")
	}
}

func TestCloseUnregistersSocket(t *testing.T) {
	s := New(KindRawIP, 4)
	s.Protocol = 6
	d := NewDemux()
	d.Open(s)
	d.Close(s)

	d.DeliverIP("eth0", 6, []byte("data"))
	if s.Pending() != 0 {
		t.Fatal("expected closed socket to receive nothing")
	}
}
