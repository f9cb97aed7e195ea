package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Go2NetReplay/internal/api"
	"Go2NetReplay/internal/config"
	"Go2NetReplay/internal/database"
	"Go2NetReplay/internal/engine/manager"
	"Go2NetReplay/internal/engine/normalizer"
	"Go2NetReplay/internal/factory"
	"Go2NetReplay/internal/logging"
	"Go2NetReplay/internal/metrics"
	"Go2NetReplay/internal/model"
	"Go2NetReplay/internal/probe"
	"Go2NetReplay/internal/query"
	"Go2NetReplay/internal/session"
	"Go2NetReplay/internal/store"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	sessionID := flag.String("session", "", "Session to load from ClickHouse before serving")
	live := flag.Bool("live", false, "Subscribe to the NATS record feed")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logging.NewLogger("info", "json").Fatalf("Failed to load config: %v", err)
	}
	log := logging.NewLoggerWithService("nr-engine", cfg.Log.Level, cfg.Log.Format)
	log.Info("Configuration loaded successfully.")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector("netreplay", reg)

	tags, err := cfg.LoadTags()
	if err != nil {
		log.Fatalf("Failed to load tags: %v", err)
	}

	// 2. Build the session
	info := model.SessionInfo{ID: *sessionID, Active: *live}
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	timing := cfg.Timing()
	client := orb.Point{cfg.Replay.DefaultClient.Lon, cfg.Replay.DefaultClient.Lat}
	st := store.New(normalizer.New(timing, client, log), info)
	controller := session.NewController(timing, st, tags, collector, log)
	log.WithField("session", info.ID).Info("Session created")

	// 3. Load stored records for batch replay
	if *sessionID != "" {
		loadSession(cfg, controller, info.ID, log)
	}

	// 4. Start the manager and its export writers
	writers, err := factory.Create(cfg, log)
	if err != nil {
		log.Fatalf("Failed to create writers: %v", err)
	}
	mgr := manager.NewManager(controller, manager.Options{
		SessionID:     *sessionID,
		FlushInterval: cfg.FlushInterval(),
		ChannelSize:   cfg.Ingest.ChannelSize,
		PlayerTick:    time.Second * time.Duration(timing.SampleStride) / time.Duration(timing.FPS),
		Writers:       writers,
	}, collector, log)
	mgr.Start()

	// 5. Subscribe to the live feed
	var sub *probe.Subscriber
	if *live {
		sub, err = probe.NewSubscriber(cfg.Probe, log)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		if err := sub.Start(mgr.Handle); err != nil {
			log.Fatalf("Subscriber failed to start: %v", err)
		}
	}

	// 6. Serve HTTP and gRPC
	server := &http.Server{
		Addr:    cfg.API.HttpListenAddr,
		Handler: api.NewRouter(api.NewAPIHandler(controller, mgr, log), reg),
	}
	go func() {
		log.Infof("HTTP API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	grpcServer := api.NewGRPCServer(controller, log)
	lis, err := net.Listen("tcp", cfg.API.GrpcListenAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.API.GrpcListenAddr, err)
	}
	go func() {
		log.Infof("gRPC API server starting on %s", cfg.API.GrpcListenAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("Failed to serve gRPC: %v", err)
		}
	}()

	// 7. Wait for a shutdown signal for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutdown signal received, stopping engine...")
	if sub != nil {
		sub.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("HTTP server forced to shutdown")
	}
	grpcServer.GracefulStop()
	mgr.Stop()
	log.Info("Shutdown complete.")
}

func loadSession(cfg *config.Config, controller *session.Controller, id string, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := database.Connect(ctx, cfg.ClickHouse, log)
	if err != nil {
		log.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	defer conn.Close()

	var source model.RecordSource
	source, err = query.NewRecordStore(ctx, conn, log)
	if err != nil {
		log.Fatalf("Failed to prepare record store: %v", err)
	}
	raw, err := source.LoadRecords(ctx, id)
	if err != nil {
		log.Fatalf("Failed to load session %s: %v", id, err)
	}
	res := controller.Ingest(raw)
	log.WithField("session", id).Infof("Loaded %d records, %d events", len(raw), res.Added)
}
