package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"Go2NetReplay/internal/engine/aggregate"
	"Go2NetReplay/internal/factory"
	"Go2NetReplay/internal/logging"
	"Go2NetReplay/internal/session"
)

func sampleSnapshot() session.Snapshot {
	return session.Snapshot{
		SessionID: "s1",
		TakenAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Overview: session.Overview{
			Timeline: session.Timeline{Frame: 45, TotalFrames: 300, FPS: 30},
			Summary:  aggregate.Summary{Events: 3, IncomingBytes: 30, OutgoingBytes: 15, TotalBytes: 45},
			Hosts: []aggregate.HostTotal{
				{Host: "a.com", Incoming: 20, Outgoing: 10},
				{Host: "b.com", Incoming: 2048, Outgoing: 5},
			},
			Tags:    []aggregate.TagSlice{{Type: "cdn", Value: 2}, {Type: aggregate.OtherTag, Value: 1}},
			Buckets: []aggregate.Bucket{{Time: "12:00:10", Date: time.Date(2024, 3, 1, 12, 0, 10, 0, time.UTC), Value: 3}},
		},
	}
}

func TestGobWriter(t *testing.T) {
	root := t.TempDir()
	w := NewGobWriter(root, time.Minute)
	if w.GetInterval() != time.Minute {
		t.Errorf("Expected interval 1m, got %s", w.GetInterval())
	}

	if err := w.Write(sampleSnapshot(), "2024-03-01_12-00-00"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	dir := filepath.Join(root, "2024-03-01_12-00-00", "s1")
	snap, err := ReadGob(filepath.Join(dir, "overview.gob"))
	if err != nil {
		t.Fatalf("ReadGob failed: %v", err)
	}
	if snap.SessionID != "s1" || len(snap.Overview.Hosts) != 2 || snap.Overview.Hosts[1].Incoming != 2048 {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}

	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	if err != nil {
		t.Fatalf("Failed to read summary: %v", err)
	}
	var summary SummaryData
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("Failed to decode summary: %v", err)
	}
	if summary.Frame != 45 || summary.Events != 3 || summary.Hosts != 2 || summary.TotalBytes != 45 {
		t.Errorf("Unexpected summary: %+v", summary)
	}

	if err := w.Write("not a snapshot", "ts"); err == nil {
		t.Error("Expected error for wrong payload type")
	}
}

func TestTextWriter(t *testing.T) {
	root := t.TempDir()
	w := NewTextWriter(root, time.Minute, logging.Discard())
	if err := w.Write(sampleSnapshot(), "ts"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	hosts, err := os.ReadFile(filepath.Join(root, "ts", "s1", "hosts.txt"))
	if err != nil {
		t.Fatalf("Failed to read hosts: %v", err)
	}
	want := "a.com 20 B 10 B\nb.com 2.00 Kb 5 B\n"
	if string(hosts) != want {
		t.Errorf("hosts.txt = %q, want %q", hosts, want)
	}

	tags, _ := os.ReadFile(filepath.Join(root, "ts", "s1", "tags.txt"))
	if !strings.Contains(string(tags), "other 1") {
		t.Errorf("tags.txt missing other slice: %q", tags)
	}
	timeline, _ := os.ReadFile(filepath.Join(root, "ts", "s1", "timeline.txt"))
	if string(timeline) != "12:00:10 3\n" {
		t.Errorf("timeline.txt = %q", timeline)
	}
}

func TestWritersRegistered(t *testing.T) {
	for _, name := range []string{"gob", "text", "clickhouse"} {
		if !factory.Registered(name) {
			t.Errorf("writer type %q is not registered", name)
		}
	}
}
