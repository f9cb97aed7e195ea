package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"Go2NetReplay/internal/api"
	"Go2NetReplay/internal/logging"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func main() {
	// Command-line flags
	serverAddr := flag.String("addr", "localhost:50051", "The gRPC server address")
	mode := flag.String("mode", "aggregate", "Query mode: 'view', 'aggregate' or 'interpolate'")
	frame := flag.Int("frame", -1, "Frame to query; the player position when negative")
	kind := flag.String("kind", "", "Aggregate part for aggregate mode (hosts, tags, timeline, summary, clients, frequency)")
	id := flag.String("id", "", "Event id for interpolate mode")
	tags := flag.String("tags", "", "Comma separated tag filter")
	onlyActive := flag.Bool("active", false, "Only events active at the frame")
	flag.Parse()

	log := logging.NewLogger("info", "text")

	// Set up a connection to the server.
	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	defer conn.Close()

	client := api.NewReplayClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	req := map[string]interface{}{"only_active": *onlyActive}
	if *frame >= 0 {
		req["frame"] = *frame
	}
	if *tags != "" {
		var list []interface{}
		for _, t := range strings.Split(*tags, ",") {
			list = append(list, strings.TrimSpace(t))
		}
		req["tags"] = list
	}

	var resp *structpb.Struct
	switch *mode {
	case "view":
		resp, err = client.View(ctx, mustStruct(req))
	case "aggregate":
		if *kind != "" {
			req["kind"] = *kind
		}
		resp, err = client.Aggregate(ctx, mustStruct(req))
	case "interpolate":
		if *id == "" {
			log.Fatal("Error: -id flag is required for interpolate mode")
		}
		req["id"] = *id
		resp, err = client.Interpolate(ctx, mustStruct(req))
	default:
		log.Fatalf("Unknown mode: %s. Use 'view', 'aggregate' or 'interpolate'", *mode)
	}
	if err != nil {
		log.Fatalf("could not query: %v", err)
	}

	out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(resp)
	if err != nil {
		log.Fatalf("failed to format response: %v", err)
	}
	fmt.Println(string(out))
}

func mustStruct(m map[string]interface{}) *structpb.Struct {
	s, err := structpb.NewStruct(m)
	if err != nil {
		panic(err)
	}
	return s
}
