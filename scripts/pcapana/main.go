package main

import (
	"flag"
	"fmt"
	"os"

	"Go2NetReplay/internal/engine/protocol"
	"Go2NetReplay/internal/logging"
	"Go2NetReplay/pkg/pcap"
)

func main() {
	limit := flag.Int("n", 5, "Number of packets to print")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./scripts/pcapana/main.go [-n 5] <path_to_pcap_file>")
		os.Exit(1)
	}
	log := logging.NewLogger("info", "text")

	reader, err := pcap.NewReader(flag.Arg(0), log)
	if err != nil {
		log.Fatal(err)
	}
	defer reader.Close()

	packets := make(chan *protocol.PacketInfo)
	go reader.ReadPackets(packets)

	i := 0
	for info := range packets {
		if i >= *limit {
			// keep draining so the reader goroutine can finish
			continue
		}
		i++
		fmt.Printf("[%s] %s:%d -> %s:%d proto=%d len=%d closing=%t\n",
			info.Timestamp.Format("15:04:05.000"),
			info.SrcIP, info.SrcPort,
			info.DstIP, info.DstPort,
			info.Protocol, info.Length, info.Closing,
		)
		for _, a := range info.Answers {
			fmt.Printf("    dns %s -> %s\n", a.Name, a.IP)
		}
	}
}
