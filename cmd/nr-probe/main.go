package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Go2NetReplay/internal/config"
	"Go2NetReplay/internal/database"
	"Go2NetReplay/internal/geoip"
	"Go2NetReplay/internal/logging"
	"Go2NetReplay/internal/model"
	"Go2NetReplay/internal/probe"
	"Go2NetReplay/internal/query"
	"Go2NetReplay/pkg/pcap"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func main() {
	// --- Command-Line Flag Parsing ---
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	mode := flag.String("mode", "sub", "Operating mode: 'pub' to publish a capture, 'sub' to print received batches, 'store' to save a capture to ClickHouse.")
	file := flag.String("file", "", "pcap file to import (required for pub and store modes).")
	sessionID := flag.String("session", "", "Session id of the imported records; random when empty.")
	clientAddr := flag.String("client", "", "Client address of the capture; inferred when empty.")
	pace := flag.Bool("pace", false, "Publish records at the pace they were captured.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logging.NewLogger("info", "json").Fatalf("Failed to load config: %v", err)
	}
	log := logging.NewLoggerWithService("nr-probe", cfg.Log.Level, cfg.Log.Format)

	if *sessionID == "" {
		*sessionID = uuid.NewString()
	}

	// --- Mode Dispatch ---
	switch *mode {
	case "pub":
		runPublisher(cfg, importCapture(cfg, *file, *clientAddr, log), *sessionID, *pace, log)
	case "sub":
		runSubscriber(cfg, log)
	case "store":
		runStore(cfg, importCapture(cfg, *file, *clientAddr, log), *sessionID, log)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
}

// importCapture turns a pcap file into raw records.
func importCapture(cfg *config.Config, path, clientAddr string, log *logrus.Entry) []model.RawRecord {
	if path == "" {
		log.Error("Error: -file flag is required for this mode.")
		flag.Usage()
		os.Exit(1)
	}

	var client net.IP
	if clientAddr != "" {
		if client = net.ParseIP(clientAddr); client == nil {
			log.Fatalf("Invalid client address %q", clientAddr)
		}
	}

	geo, err := geoip.NewReader(cfg.GeoIP.MMDBPath)
	if err != nil {
		log.Fatalf("Failed to open GeoIP database: %v", err)
	}
	defer geo.Close()
	var locator geoip.Locator
	if geo != nil {
		locator = geo
	} else {
		log.Warn("No GeoIP database configured, records will not be located")
	}

	reader, err := pcap.NewReader(path, log)
	if err != nil {
		log.Fatalf("Failed to open pcap file: %v", err)
	}
	defer reader.Close()

	records, stats := pcap.ReadRecords(reader, client, locator)
	log.WithFields(logrus.Fields{
		"file":      path,
		"packets":   stats.Packets,
		"flows":     stats.Flows,
		"dns":       stats.DNS,
		"unrelated": stats.Unrelated,
	}).Info("Capture imported")
	return records
}

// runPublisher publishes the records of a capture to NATS.
func runPublisher(cfg *config.Config, records []model.RawRecord, sessionID string, pace bool, log *logrus.Entry) {
	log.WithField("session", sessionID).Infof("Starting nr-probe in PUBLISH mode with %d records", len(records))

	pub, err := probe.NewPublisher(cfg.Probe, log)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	if !pace {
		if err := pub.Publish(sessionID, records); err != nil {
			log.Fatalf("Failed to publish records: %v", err)
		}
		log.Info("All records published.")
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var origin time.Time
	started := time.Now()
	for i, rec := range records {
		if origin.IsZero() {
			origin = rec.Created.Time
		}
		wait := time.Until(started.Add(rec.Created.Sub(origin)))
		select {
		case <-sigChan:
			log.Info("Shutdown signal received, cleaning up...")
			return
		case <-time.After(wait):
		}
		if err := pub.Publish(sessionID, records[i:i+1]); err != nil {
			log.WithError(err).Warn("Failed to publish record")
		}
	}
	log.Info("All records published.")
}

// runSubscriber prints every batch received on the feed.
func runSubscriber(cfg *config.Config, log *logrus.Entry) {
	log.Info("Starting nr-probe in SUBSCRIBER mode...")

	sub, err := probe.NewSubscriber(cfg.Probe, log)
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}
	defer sub.Close()

	handler := func(sessionID string, records []model.RawRecord) {
		for _, rec := range records {
			log.WithFields(logrus.Fields{
				"session":   sessionID,
				"id":        rec.ID,
				"host":      rec.Host,
				"transfers": len(rec.Data),
			}).Info("Received record")
		}
	}
	if err := sub.Start(handler); err != nil {
		log.Fatalf("Subscriber failed to start: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutdown signal received, cleaning up...")
}

// runStore saves the records of a capture to ClickHouse for batch replay.
func runStore(cfg *config.Config, records []model.RawRecord, sessionID string, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := database.Connect(ctx, cfg.ClickHouse, log)
	if err != nil {
		log.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	defer conn.Close()

	var sink model.RecordSink
	sink, err = query.NewRecordStore(ctx, conn, log)
	if err != nil {
		log.Fatalf("Failed to prepare record store: %v", err)
	}
	if err := sink.SaveRecords(ctx, sessionID, records); err != nil {
		log.Fatalf("Failed to save records: %v", err)
	}
	log.WithField("session", sessionID).Infof("Saved %d records", len(records))
}
