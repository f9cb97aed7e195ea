package database

import (
	"context"
	"fmt"

	"Go2NetReplay/internal/config"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

// Options builds the native driver options for cfg.
func Options(cfg config.ClickHouseConfig) *clickhouse.Options {
	return &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	}
}

// Connect opens a native ClickHouse connection and pings it.
func Connect(ctx context.Context, cfg config.ClickHouseConfig, logger logrus.FieldLogger) (driver.Conn, error) {
	opts := Options(cfg)
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"addr":     opts.Addr,
		"database": cfg.Database,
	}).Info("Connected to ClickHouse")
	return conn, nil
}
