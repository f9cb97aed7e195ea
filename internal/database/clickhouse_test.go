package database

import (
	"testing"

	"Go2NetReplay/internal/config"

	"github.com/ClickHouse/clickhouse-go/v2"
)

func TestOptions(t *testing.T) {
	opts := Options(config.ClickHouseConfig{Host: "ch", Port: 9000, Database: "replay", Username: "u", Password: "p"})
	if len(opts.Addr) != 1 || opts.Addr[0] != "ch:9000" {
		t.Errorf("Expected addr ch:9000, got %v", opts.Addr)
	}
	if opts.Auth.Database != "replay" || opts.Auth.Username != "u" || opts.Auth.Password != "p" {
		t.Errorf("Unexpected auth: %+v", opts.Auth)
	}
	if opts.Compression == nil || opts.Compression.Method != clickhouse.CompressionLZ4 {
		t.Errorf("Expected LZ4 compression")
	}
}
