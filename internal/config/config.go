package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"Go2NetReplay/internal/engine/timebase"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// LatLon is an optional geographic position.
type LatLon struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

// ReplayConfig holds the playback timing. Durations are Go duration strings; empty values
// fall back to the reference timing.
type ReplayConfig struct {
	FPS             int      `yaml:"fps"`
	TrailingDisplay string   `yaml:"trailing_display"`
	ActiveGrace     string   `yaml:"active_grace"`
	LiveTrailing    string   `yaml:"live_trailing"`
	MaxChartBars    int      `yaml:"max_chart_bars"`
	BucketWidth     string   `yaml:"bucket_width"`
	SampleStride    int      `yaml:"sample_stride"`
	MaxTilt         *float64 `yaml:"max_tilt"`
	DefaultClient   LatLon   `yaml:"default_client"`
}

// IngestConfig controls how live records are coalesced into the store.
type IngestConfig struct {
	FlushInterval string `yaml:"flush_interval"`
	ChannelSize   int    `yaml:"channel_size"`
}

// ProbeConfig holds the NATS feed settings.
type ProbeConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// ClickHouseConfig holds the connection settings for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WriterDef defines one overview export writer.
type WriterDef struct {
	Type             string           `yaml:"type"`
	Enabled          bool             `yaml:"enabled"`
	SnapshotInterval string           `yaml:"snapshot_interval"`
	RootPath         string           `yaml:"root_path"`
	ClickHouse       ClickHouseConfig `yaml:"clickhouse"`
}

// ExportConfig lists the overview writers.
type ExportConfig struct {
	Writers []WriterDef `yaml:"writers"`
}

// APIConfig holds the listen addresses of the HTTP and gRPC servers.
type APIConfig struct {
	HttpListenAddr string `yaml:"http_listen_addr"`
	GrpcListenAddr string `yaml:"grpc_listen_addr"`
}

// GeoIPConfig points at a MaxMind city database.
type GeoIPConfig struct {
	MMDBPath string `yaml:"mmdb_path"`
}

// LogConfig selects the log level and format (json or text).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Replay     ReplayConfig     `yaml:"replay"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Probe      ProbeConfig      `yaml:"probe"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Export     ExportConfig     `yaml:"export"`
	API        APIConfig        `yaml:"api"`
	GeoIP      GeoIPConfig      `yaml:"geoip"`
	Log        LogConfig        `yaml:"log"`
	Tags       TagsConfig       `yaml:"tags"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Replay.FPS < 0 {
		return fmt.Errorf("%w: replay.fps must be positive, got %d", ErrInvalid, c.Replay.FPS)
	}
	durations := map[string]string{
		"replay.trailing_display": c.Replay.TrailingDisplay,
		"replay.active_grace":     c.Replay.ActiveGrace,
		"replay.live_trailing":    c.Replay.LiveTrailing,
		"replay.bucket_width":     c.Replay.BucketWidth,
		"ingest.flush_interval":   c.Ingest.FlushInterval,
	}
	for name, value := range durations {
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
		}
	}
	for i, w := range c.Export.Writers {
		if !w.Enabled {
			continue
		}
		if _, err := parseDuration(w.SnapshotInterval); err != nil {
			return fmt.Errorf("%w: export.writers[%d].snapshot_interval: %v", ErrInvalid, i, err)
		}
	}
	return nil
}

// Timing converts the replay section into a timebase configuration. Fields left unset
// keep the reference timing; an explicit "0s" window is kept as zero.
func (c *Config) Timing() timebase.Config {
	t := timebase.Default()
	r := c.Replay
	if r.FPS > 0 {
		t.FPS = r.FPS
	}
	if r.TrailingDisplay != "" {
		t.TrailingDisplay, _ = parseDuration(r.TrailingDisplay)
	}
	if r.ActiveGrace != "" {
		t.ActiveGrace, _ = parseDuration(r.ActiveGrace)
	}
	if r.LiveTrailing != "" {
		t.LiveTrailing, _ = parseDuration(r.LiveTrailing)
	}
	if r.MaxChartBars > 0 {
		t.MaxChartBars = r.MaxChartBars
	}
	if r.BucketWidth != "" {
		t.BucketWidth, _ = parseDuration(r.BucketWidth)
	}
	if r.SampleStride > 0 {
		t.SampleStride = r.SampleStride
	}
	if r.MaxTilt != nil {
		t.MaxTilt = *r.MaxTilt
	}
	return t.WithDefaults()
}

// FlushInterval returns the ingest flush tick, one second when unset.
func (c *Config) FlushInterval() time.Duration {
	d, _ := parseDuration(c.Ingest.FlushInterval)
	if d <= 0 {
		return time.Second
	}
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
