package protocol

import (
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("Failed to serialize layers: %v", err)
	}
	return buf.Bytes()
}

func eth() *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
}

func TestParsePacket_TCP(t *testing.T) {
	ip := &layers.IPv4{SrcIP: net.IP{10, 0, 0, 2}, DstIP: net.IP{93, 184, 216, 34}, Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 443, FIN: true, ACK: true, Window: 14600}
	tcp.SetNetworkLayerForChecksum(ip)
	data := serialize(t, eth(), ip, tcp, gopacket.Payload([]byte("hello")))

	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	packet.Metadata().Timestamp = ts
	packet.Metadata().Length = len(data)

	info, err := ParsePacket(packet)
	if err != nil {
		t.Fatalf("ParsePacket() error = %v", err)
	}
	if !info.SrcIP.Equal(net.IP{10, 0, 0, 2}) || !info.DstIP.Equal(net.IP{93, 184, 216, 34}) {
		t.Errorf("unexpected addresses %v -> %v", info.SrcIP, info.DstIP)
	}
	if info.SrcPort != 40000 || info.DstPort != 443 {
		t.Errorf("unexpected ports %d -> %d", info.SrcPort, info.DstPort)
	}
	if info.Protocol != layers.IPProtocolTCP {
		t.Errorf("Protocol = %v, want TCP", info.Protocol)
	}
	if !info.Closing {
		t.Error("FIN segment should be reported as closing")
	}
	if !info.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", info.Timestamp, ts)
	}
	if info.Length != len(data) {
		t.Errorf("Length = %d, want %d", info.Length, len(data))
	}
}

func TestParsePacket_DNSAnswers(t *testing.T) {
	ip := &layers.IPv4{SrcIP: net.IP{192, 168, 1, 1}, DstIP: net.IP{192, 168, 1, 10}, Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP}
	udp := &layers.UDP{SrcPort: 53, DstPort: 40001}
	udp.SetNetworkLayerForChecksum(ip)
	dns := &layers.DNS{
		ID: 7, QR: true, OpCode: layers.DNSOpCodeQuery,
		Questions: []layers.DNSQuestion{{Name: []byte("example.com"), Type: layers.DNSTypeA, Class: layers.DNSClassIN}},
		Answers: []layers.DNSResourceRecord{{
			Name: []byte("example.com"), Type: layers.DNSTypeA, Class: layers.DNSClassIN, TTL: 60, IP: net.IP{93, 184, 216, 34},
		}},
	}
	data := serialize(t, eth(), ip, udp, dns)

	info, err := ParsePacket(gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default))
	if err != nil {
		t.Fatalf("ParsePacket() error = %v", err)
	}
	if len(info.Answers) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(info.Answers))
	}
	if info.Answers[0].Name != "example.com" || !info.Answers[0].IP.Equal(net.IP{93, 184, 216, 34}) {
		t.Errorf("unexpected answer %+v", info.Answers[0])
	}
	if info.Closing {
		t.Error("UDP packets never close")
	}
}

func TestParsePacket_Unsupported(t *testing.T) {
	ip := &layers.IPv4{SrcIP: net.IP{10, 0, 0, 2}, DstIP: net.IP{10, 0, 0, 3}, Version: 4, TTL: 64, Protocol: layers.IPProtocolICMPv4}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}
	data := serialize(t, eth(), ip, icmp)

	if _, err := ParsePacket(gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)); err == nil {
		t.Error("expected an error for ICMP")
	}

	arp := &layers.Ethernet{SrcMAC: eth().SrcMAC, DstMAC: eth().DstMAC, EthernetType: layers.EthernetTypeARP}
	data = serialize(t, arp, &layers.ARP{
		AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4, HwAddressSize: 6, ProtAddressSize: 4,
		Operation: layers.ARPRequest, SourceHwAddress: eth().SrcMAC, SourceProtAddress: []byte{10, 0, 0, 2},
		DstHwAddress: make([]byte, 6), DstProtAddress: []byte{10, 0, 0, 3},
	})
	if _, err := ParsePacket(gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)); err == nil {
		t.Error("expected an error for a non-IPv4 packet")
	}
}
