package pcap

import (
	"fmt"
	"net"
	"time"

	"Go2NetReplay/internal/engine/protocol"
	"Go2NetReplay/internal/geoip"
	"Go2NetReplay/internal/model"

	"github.com/google/gopacket/layers"
	"github.com/google/uuid"
)

const dnsPort = 53

type flowKey struct {
	remote     string
	remotePort uint16
	localPort  uint16
	proto      layers.IPProtocol
}

func (k flowKey) String() string {
	return fmt.Sprintf("%s:%d/%d/%d", k.remote, k.remotePort, k.localPort, k.proto)
}

type flow struct {
	key       flowKey
	remoteIP  net.IP
	created   time.Time
	closed    time.Time
	transfers []model.RawTransfer
}

// AssemblerStats counts what the assembler did with its input.
type AssemblerStats struct {
	Packets   int
	Flows     int
	Unrelated int
	DNS       int
}

// Assembler groups packets into per-connection records seen from a single client.
// It is not safe for concurrent use.
type Assembler struct {
	client  net.IP
	locator geoip.Locator
	names   map[string]string
	flows   map[flowKey]*flow
	order   []flowKey
	stats   AssemblerStats
}

// NewAssembler creates an assembler. A nil client is inferred from the first packet
// sent by a private address. locator may be nil.
func NewAssembler(client net.IP, locator geoip.Locator) *Assembler {
	return &Assembler{
		client:  client,
		locator: locator,
		names:   make(map[string]string),
		flows:   make(map[flowKey]*flow),
	}
}

// Client returns the client address, nil until one is known.
func (a *Assembler) Client() net.IP {
	return a.client
}

// Stats returns the running counters.
func (a *Assembler) Stats() AssemblerStats {
	s := a.stats
	s.Flows = len(a.flows)
	return s
}

// Add folds one packet into the assembler.
func (a *Assembler) Add(info *protocol.PacketInfo) {
	a.stats.Packets++
	for _, ans := range info.Answers {
		a.names[ans.IP.String()] = ans.Name
	}
	if info.SrcPort == dnsPort || info.DstPort == dnsPort {
		a.stats.DNS++
		return
	}

	if a.client == nil {
		switch {
		case info.SrcIP.IsPrivate():
			a.client = info.SrcIP
		case info.DstIP.IsPrivate():
			a.client = info.DstIP
		default:
			a.client = info.SrcIP
		}
	}

	var (
		dir  model.Direction
		key  flowKey
		peer net.IP
	)
	switch {
	case info.SrcIP.Equal(a.client):
		dir, peer = model.DirectionOut, info.DstIP
		key = flowKey{remote: info.DstIP.String(), remotePort: info.DstPort, localPort: info.SrcPort, proto: info.Protocol}
	case info.DstIP.Equal(a.client):
		dir, peer = model.DirectionIn, info.SrcIP
		key = flowKey{remote: info.SrcIP.String(), remotePort: info.SrcPort, localPort: info.DstPort, proto: info.Protocol}
	default:
		a.stats.Unrelated++
		return
	}

	f, ok := a.flows[key]
	if !ok {
		f = &flow{key: key, remoteIP: peer, created: info.Timestamp}
		a.flows[key] = f
		a.order = append(a.order, key)
	}
	f.transfers = append(f.transfers, model.RawTransfer{
		Dir:   string(dir),
		Bytes: model.Bytes(int64(info.Length)),
		TS:    model.At(info.Timestamp),
	})
	if info.Closing && f.closed.IsZero() {
		f.closed = info.Timestamp
	}
}

// Records returns one record per connection in first-seen order.
// Hosts are named from DNS answers seen anywhere in the capture.
func (a *Assembler) Records() []model.RawRecord {
	records := make([]model.RawRecord, 0, len(a.order))
	client := ""
	if a.client != nil {
		client = a.client.String()
	}
	for _, key := range a.order {
		f := a.flows[key]
		rec := model.RawRecord{
			ID:       recordID(key, f.created),
			Host:     key.remote,
			ClientIP: client,
			Data:     append([]model.RawTransfer(nil), f.transfers...),
			Created:  model.At(f.created),
		}
		if name, ok := a.names[key.remote]; ok {
			rec.Host = name
		}
		if !f.closed.IsZero() {
			rec.Closed = model.At(f.closed)
		}
		if a.locator != nil {
			if loc, ok := a.locator.Locate(f.remoteIP); ok {
				rec.Country, rec.City = loc.Country, loc.City
				rec.Lat, rec.Lon = loc.Lat, loc.Lon
			}
		}
		records = append(records, rec)
	}
	return records
}

// recordID is stable across re-imports of the same capture.
func recordID(key flowKey, created time.Time) string {
	name := fmt.Sprintf("%s@%d", key, created.UnixNano())
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// ReadRecords drains r through a new assembler.
func ReadRecords(r *Reader, client net.IP, locator geoip.Locator) ([]model.RawRecord, AssemblerStats) {
	a := NewAssembler(client, locator)
	packets := make(chan *protocol.PacketInfo, 256)
	go r.ReadPackets(packets)
	for info := range packets {
		a.Add(info)
	}
	return a.Records(), a.Stats()
}
