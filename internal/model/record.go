package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// RawRecord is one captured exchange as delivered by the storage layer or the live feed.
type RawRecord struct {
	ID       string        `json:"id"`
	Host     string        `json:"host"`
	ClientIP string        `json:"client_ip"`
	Country  string        `json:"country"`
	City     string        `json:"city"`
	Lat      float64       `json:"lat"`
	Lon      float64       `json:"lon"`
	Hops     []RawHop      `json:"hops,omitempty"`
	Data     []RawTransfer `json:"data"`
	Created  Timestamp     `json:"created"`
	Closed   Timestamp     `json:"closed,omitempty"`
}

// RawHop is one traceroute hop. Timings holds the per-attempt latency samples in milliseconds.
type RawHop struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timings   []float64 `json:"timings"`
}

// RawTransfer is one directional byte movement inside a record.
type RawTransfer struct {
	Dir   string    `json:"dir"`
	Bytes ByteCount `json:"bytes"`
	TS    Timestamp `json:"ts"`
}

// SessionInfo is the context a capture was recorded in.
type SessionInfo struct {
	ID     string   `json:"id" yaml:"id"`
	Lat    *float64 `json:"lat,omitempty" yaml:"lat"`
	Lon    *float64 `json:"lon,omitempty" yaml:"lon"`
	Active bool     `json:"active" yaml:"active"`
}

// Category groups tags.
type Category struct {
	Name string `json:"name" yaml:"name"`
}

// Tag maps a name to the set of hosts it covers.
type Tag struct {
	Name     string    `json:"name" yaml:"name"`
	Category *Category `json:"category,omitempty" yaml:"category"`
	Domains  []string  `json:"domains" yaml:"domains"`
}

// ByteCount is a byte counter that tolerates malformed input.
// Valid is false when the wire value was missing or not numeric.
type ByteCount struct {
	Value int64
	Valid bool
}

// Bytes returns a valid ByteCount.
func Bytes(n int64) ByteCount {
	return ByteCount{Value: n, Valid: true}
}

func (b *ByteCount) UnmarshalJSON(data []byte) error {
	*b = ByteCount{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= 1<<63 {
		return nil
	}
	*b = ByteCount{Value: int64(f), Valid: true}
	return nil
}

func (b ByteCount) MarshalJSON() ([]byte, error) {
	if !b.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(b.Value, 10)), nil
}

// Timestamp accepts RFC 3339, the "2006-01-02 15:04:05.000Z" form used by the record store,
// and numeric epoch milliseconds. A missing or unparsable value decodes to the zero time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000Z07:00",
	"2006-01-02 15:04:05.000Z",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// At wraps t.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] != '"' {
		ms, err := strconv.ParseFloat(string(data), 64)
		if err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) {
			return nil
		}
		t.Time = time.UnixMilli(int64(ms)).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
