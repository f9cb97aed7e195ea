package pcap

import (
	"io"
	"math/rand/v2"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// SynthHost is one remote peer of a synthetic capture.
type SynthHost struct {
	Name string
	IP   net.IP
	// Up and Down are payload bytes sent to and received from the host per exchange.
	Up, Down int
	// Exchanges is the number of request/response rounds before the connection closes.
	Exchanges int
}

// SynthOptions describes a synthetic capture.
type SynthOptions struct {
	Client   net.IP
	Resolver net.IP
	Hosts    []SynthHost
	Start    time.Time
	// Step is the gap between consecutive packets.
	Step time.Duration
	Seed uint64
}

var (
	clientMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	routerMAC = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
)

// WriteSynthetic writes a capture in which the client resolves each host over DNS,
// exchanges TCP payloads with it and closes with FIN. It returns the packet count.
func WriteSynthetic(w io.Writer, opts SynthOptions) (int, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return 0, err
	}
	if opts.Step <= 0 {
		opts.Step = 50 * time.Millisecond
	}
	if opts.Resolver == nil {
		opts.Resolver = net.IPv4(192, 168, 1, 1)
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	ts := opts.Start
	count := 0

	write := func(ls ...gopacket.SerializableLayer) error {
		buf := gopacket.NewSerializeBuffer()
		serialize := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
		if err := gopacket.SerializeLayers(buf, serialize, ls...); err != nil {
			return err
		}
		ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(buf.Bytes()), Length: len(buf.Bytes())}
		if err := pw.WritePacket(ci, buf.Bytes()); err != nil {
			return err
		}
		count++
		ts = ts.Add(opts.Step)
		return nil
	}

	for i, h := range opts.Hosts {
		localPort := layers.TCPPort(40000 + i)

		// DNS answer for the host.
		ip := ipv4(opts.Resolver, opts.Client, layers.IPProtocolUDP)
		udp := &layers.UDP{SrcPort: dnsPort, DstPort: layers.UDPPort(localPort)}
		udp.SetNetworkLayerForChecksum(ip)
		dns := &layers.DNS{
			ID: uint16(i + 1), QR: true, OpCode: layers.DNSOpCodeQuery, RD: true, RA: true,
			Questions: []layers.DNSQuestion{{Name: []byte(h.Name), Type: layers.DNSTypeA, Class: layers.DNSClassIN}},
			Answers: []layers.DNSResourceRecord{{
				Name: []byte(h.Name), Type: layers.DNSTypeA, Class: layers.DNSClassIN, TTL: 300, IP: h.IP.To4(),
			}},
		}
		if err := write(ethernet(routerMAC, clientMAC), ip, udp, dns); err != nil {
			return count, err
		}

		exchanges := h.Exchanges
		if exchanges <= 0 {
			exchanges = 1
		}
		seq, ack := rng.Uint32(), rng.Uint32()
		for x := 0; x < exchanges; x++ {
			if err := write(tcpPacket(opts.Client, h.IP, localPort, 443, seq, ack, payload(rng, h.Up), false)...); err != nil {
				return count, err
			}
			seq += uint32(h.Up)
			if err := write(tcpPacket(h.IP, opts.Client, 443, localPort, ack, seq, payload(rng, h.Down), false)...); err != nil {
				return count, err
			}
			ack += uint32(h.Down)
		}
		if err := write(tcpPacket(opts.Client, h.IP, localPort, 443, seq, ack, nil, true)...); err != nil {
			return count, err
		}
	}
	return count, nil
}

func ethernet(src, dst net.HardwareAddr) *layers.Ethernet {
	return &layers.Ethernet{SrcMAC: src, DstMAC: dst, EthernetType: layers.EthernetTypeIPv4}
}

func ipv4(src, dst net.IP, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{SrcIP: src.To4(), DstIP: dst.To4(), Version: 4, TTL: 64, Protocol: proto}
}

func tcpPacket(src, dst net.IP, sport, dport layers.TCPPort, seq, ack uint32, data []byte, fin bool) []gopacket.SerializableLayer {
	ip := ipv4(src, dst, layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: sport, DstPort: dport, Seq: seq, Ack: ack, ACK: true, PSH: len(data) > 0, FIN: fin, Window: 14600}
	tcp.SetNetworkLayerForChecksum(ip)
	eth := ethernet(clientMAC, routerMAC)
	if dport != 443 {
		eth = ethernet(routerMAC, clientMAC)
	}
	return []gopacket.SerializableLayer{eth, ip, tcp, gopacket.Payload(data)}
}

func payload(rng *rand.Rand, n int) []byte {
	if n <= 0 {
		return nil
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rng.IntN(256))
	}
	return b
}
