package pcap

import (
	"fmt"
	"io"
	"os"

	"Go2NetReplay/internal/engine/protocol"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
	"github.com/sirupsen/logrus"
)

// Reader reads packets from a pcap file.
type Reader struct {
	file   io.Closer
	source *gopacket.PacketSource
	logger logrus.FieldLogger
}

// NewReader opens a pcap file.
func NewReader(filePath string, logger logrus.FieldLogger) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	r, err := NewStreamReader(f, logger)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// NewStreamReader reads a pcap stream from r.
func NewStreamReader(r io.Reader, logger logrus.FieldLogger) (*Reader, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}
	return &Reader{
		source: gopacket.NewPacketSource(pr, pr.LinkType()),
		logger: logger,
	}, nil
}

// Close closes the underlying file, if any.
func (r *Reader) Close() {
	if r.file != nil {
		r.file.Close()
	}
}

// ReadPackets reads all packets and sends the parsed PacketInfo to out.
// It closes the channel when done.
func (r *Reader) ReadPackets(out chan<- *protocol.PacketInfo) {
	defer close(out)
	for packet := range r.source.Packets() {
		info, err := protocol.ParsePacket(packet)
		if err != nil {
			// Unsupported packet types are expected in real captures.
			r.logger.WithError(err).Debug("Skipping packet")
			continue
		}
		out <- info
	}
}
