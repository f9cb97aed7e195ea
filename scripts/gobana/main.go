package main

import (
	"fmt"
	"os"

	"Go2NetReplay/internal/engine/aggregate"
	"Go2NetReplay/internal/export"
	"Go2NetReplay/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/gobana/main.go <overview.gob>")
		os.Exit(1)
	}
	log := logging.NewLogger("info", "text")

	snapshot, err := export.ReadGob(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to decode gob data: %v", err)
	}

	ov := snapshot.Overview
	fmt.Printf("Session %s taken at %s (frame %d of %d)\n",
		snapshot.SessionID, snapshot.TakenAt.Format("2006-01-02 15:04:05"), ov.Timeline.Frame, ov.Timeline.TotalFrames)
	fmt.Printf("Events: %d  in: %s  out: %s  avg distance: %.1f km\n",
		ov.Summary.Events, aggregate.DisplayBytes(ov.Summary.IncomingBytes),
		aggregate.DisplayBytes(ov.Summary.OutgoingBytes), ov.Summary.AverageDistanceKm)

	fmt.Println("Hosts:")
	for _, h := range ov.Hosts {
		fmt.Printf("  %-40s %10s %10s\n", h.Host, aggregate.DisplayBytes(h.Incoming), aggregate.DisplayBytes(h.Outgoing))
	}
	fmt.Println("Tags:")
	for _, t := range ov.Tags {
		fmt.Printf("  %-20s %d\n", t.Type, t.Value)
	}
}
