package protocol

import (
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// DNSAnswer maps a resolved name to one of its addresses.
type DNSAnswer struct {
	Name string
	IP   net.IP
}

// PacketInfo is what the importer needs from one captured packet.
type PacketInfo struct {
	Timestamp time.Time
	SrcIP     net.IP
	DstIP     net.IP
	SrcPort   uint16
	DstPort   uint16
	Protocol  layers.IPProtocol
	Length    int
	// FIN or RST seen on a TCP segment.
	Closing bool
	Answers []DNSAnswer
}

// ParsePacket uses gopacket to decode a packet and extract key information.
func ParsePacket(packet gopacket.Packet) (*PacketInfo, error) {
	info := &PacketInfo{
		Timestamp: time.Now(), // Default to now, will be overwritten by packet metadata if available
		Length:    len(packet.Data()),
	}

	if meta := packet.Metadata(); meta != nil {
		if !meta.Timestamp.IsZero() {
			info.Timestamp = meta.Timestamp
		}
		if meta.Length > 0 {
			info.Length = meta.Length
		}
	}

	// Get IPv4 layer
	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		info.SrcIP = ip.SrcIP
		info.DstIP = ip.DstIP
		info.Protocol = ip.Protocol
	} else {
		// Handle IPv6 if necessary, for now we skip non-IPv4
		return nil, fmt.Errorf("not an IPv4 packet")
	}

	// Get TCP layer
	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		info.SrcPort = uint16(tcp.SrcPort)
		info.DstPort = uint16(tcp.DstPort)
		info.Closing = tcp.FIN || tcp.RST
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		// Get UDP layer
		udp := l.(*layers.UDP)
		info.SrcPort = uint16(udp.SrcPort)
		info.DstPort = uint16(udp.DstPort)
	} else {
		return nil, fmt.Errorf("not a TCP or UDP packet")
	}

	if l := packet.Layer(layers.LayerTypeDNS); l != nil {
		dns := l.(*layers.DNS)
		if dns.QR {
			for _, a := range dns.Answers {
				if a.Type == layers.DNSTypeA && a.IP != nil {
					info.Answers = append(info.Answers, DNSAnswer{Name: string(a.Name), IP: a.IP})
				}
			}
		}
	}

	return info, nil
}
