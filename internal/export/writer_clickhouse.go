package export

import (
	"context"
	"fmt"
	"time"

	"Go2NetReplay/internal/config"
	"Go2NetReplay/internal/database"
	"Go2NetReplay/internal/factory"
	"Go2NetReplay/internal/model"
	"Go2NetReplay/internal/session"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

func init() {
	factory.RegisterWriter("clickhouse", func(def config.WriterDef, interval time.Duration, logger logrus.FieldLogger) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse, interval, logger)
	})
}

const createOverviewTables = `
CREATE TABLE IF NOT EXISTS replay_host_totals (
    Timestamp DateTime,
    SessionID String,
    Frame     Int32,
    Host      String,
    Incoming  Int64,
    Outgoing  Int64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (SessionID, Timestamp);
`

const createSummaryTable = `
CREATE TABLE IF NOT EXISTS replay_summary (
    Timestamp         DateTime,
    SessionID         String,
    Frame             Int32,
    Events            UInt32,
    Active            UInt32,
    IncomingBytes     Int64,
    OutgoingBytes     Int64,
    AverageDistanceKm Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (SessionID, Timestamp);
`

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn     driver.Conn
	interval time.Duration
	logger   logrus.FieldLogger
}

// NewClickHouseWriter connects and ensures the overview tables exist.
func NewClickHouseWriter(cfg config.ClickHouseConfig, interval time.Duration, logger logrus.FieldLogger) (model.Writer, error) {
	ctx := context.Background()
	conn, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	for _, stmt := range []string{createOverviewTables, createSummaryTable} {
		if err := conn.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	return &ClickHouseWriter{conn: conn, interval: interval, logger: logger}, nil
}

// GetInterval returns the configured snapshot interval for this writer.
func (w *ClickHouseWriter) GetInterval() time.Duration {
	return w.interval
}

// Write inserts the host totals and the summary of a snapshot.
func (w *ClickHouseWriter) Write(payload interface{}, timestamp string) error {
	snapshot, ok := payload.(session.Snapshot)
	if !ok {
		return fmt.Errorf("invalid payload type for ClickHouse Writer: expected session.Snapshot, got %T", payload)
	}
	ctx := context.Background()
	snapshotTime, err := time.Parse(TimestampLayout, timestamp)
	if err != nil {
		snapshotTime = snapshot.TakenAt
	}
	ov := snapshot.Overview

	if len(ov.Hosts) > 0 {
		batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO replay_host_totals")
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		for _, h := range ov.Hosts {
			if err := batch.Append(snapshotTime, snapshot.SessionID, int32(ov.Timeline.Frame), h.Host, h.Incoming, h.Outgoing); err != nil {
				return fmt.Errorf("failed to append host to batch: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
	}

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO replay_summary")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	s := ov.Summary
	if err := batch.Append(snapshotTime, snapshot.SessionID, int32(ov.Timeline.Frame), uint32(s.Events), uint32(s.Active), s.IncomingBytes, s.OutgoingBytes, s.AverageDistanceKm); err != nil {
		return fmt.Errorf("failed to append summary to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	w.logger.WithFields(logrus.Fields{"hosts": len(ov.Hosts), "session": snapshot.SessionID}).Info("Wrote overview to ClickHouse")
	return nil
}
