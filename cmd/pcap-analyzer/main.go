package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"

	"Go2NetReplay/internal/config"
	"Go2NetReplay/internal/engine/normalizer"
	"Go2NetReplay/internal/geoip"
	"Go2NetReplay/internal/logging"
	"Go2NetReplay/internal/model"
	"Go2NetReplay/internal/session"
	"Go2NetReplay/internal/store"
	"Go2NetReplay/pkg/pcap"

	"github.com/paulmach/orb"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	frame := flag.Int("frame", -1, "Frame to report; the end of the timeline when negative")
	clientAddr := flag.String("client", "", "Client address of the capture; inferred when empty")
	flag.Parse()

	// 1. Get pcap file path from command-line arguments
	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./cmd/pcap-analyzer/main.go [-frame N] <path_to_pcap_file>")
		os.Exit(1)
	}
	pcapFilePath := flag.Arg(0)

	// 2. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logging.NewLogger("info", "text").Fatalf("Failed to load config: %v", err)
	}
	log := logging.NewLoggerWithService("pcap-analyzer", cfg.Log.Level, "text")
	tags, err := cfg.LoadTags()
	if err != nil {
		log.Fatalf("Failed to load tags: %v", err)
	}

	// 3. Initialize modules
	geo, err := geoip.NewReader(cfg.GeoIP.MMDBPath)
	if err != nil {
		log.Fatalf("Failed to open GeoIP database: %v", err)
	}
	defer geo.Close()
	var locator geoip.Locator
	if geo != nil {
		locator = geo
	}

	timing := cfg.Timing()
	client := orb.Point{cfg.Replay.DefaultClient.Lon, cfg.Replay.DefaultClient.Lat}
	st := store.New(normalizer.New(timing, client, log), model.SessionInfo{ID: pcapFilePath})
	controller := session.NewController(timing, st, tags, nil, log)

	pcapReader, err := pcap.NewReader(pcapFilePath, log)
	if err != nil {
		log.Fatalf("Failed to open pcap file: %v", err)
	}
	defer pcapReader.Close()
	log.Infof("Reading packets from '%s'...", pcapFilePath)

	// 4. Assemble records and replay them
	records, stats := pcap.ReadRecords(pcapReader, net.ParseIP(*clientAddr), locator)
	res := controller.Ingest(records)
	log.Infof("Finished reading %d packets: %d flows, %d events, %d dropped.",
		stats.Packets, stats.Flows, res.Added, res.Stats.Dropped())

	at := *frame
	if at < 0 {
		at = controller.TotalFrames()
	}

	// 5. Print the overview
	out, err := json.MarshalIndent(controller.Overview(at, session.Query{}), "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal overview: %v", err)
	}
	fmt.Println(string(out))
}
