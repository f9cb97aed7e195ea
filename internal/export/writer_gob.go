package export

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"Go2NetReplay/internal/config"
	"Go2NetReplay/internal/factory"
	"Go2NetReplay/internal/model"
	"Go2NetReplay/internal/session"

	"github.com/sirupsen/logrus"
)

func init() {
	factory.RegisterWriter("gob", func(def config.WriterDef, interval time.Duration, logger logrus.FieldLogger) (model.Writer, error) {
		return NewGobWriter(def.RootPath, interval), nil
	})
}

// SummaryData holds the metadata for a snapshot, written next to the gob file.
type SummaryData struct {
	SessionID  string `json:"session_id"`
	Frame      int    `json:"frame"`
	Events     int    `json:"events"`
	Hosts      int    `json:"hosts"`
	TotalBytes int64  `json:"total_bytes"`
	Timestamp  string `json:"timestamp"`
}

// GobWriter writes overview snapshots to disk in gob format.
type GobWriter struct {
	rootPath string
	interval time.Duration
}

// NewGobWriter creates a new gob writer rooted at rootPath.
func NewGobWriter(rootPath string, interval time.Duration) model.Writer {
	return &GobWriter{rootPath: rootPath, interval: interval}
}

// GetInterval returns the configured snapshot interval for this writer.
func (w *GobWriter) GetInterval() time.Duration {
	return w.interval
}

// Write stores the snapshot as <root>/<timestamp>/<session>/overview.gob plus a
// summary.json. It expects a session.Snapshot payload.
func (w *GobWriter) Write(payload interface{}, timestamp string) error {
	snapshot, ok := payload.(session.Snapshot)
	if !ok {
		return fmt.Errorf("invalid payload type for GobWriter: expected session.Snapshot, got %T", payload)
	}

	// 1. Create timestamped directory
	dir := filepath.Join(w.rootPath, timestamp, sessionDir(snapshot.SessionID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	// 2. Write the overview
	filePath := filepath.Join(dir, "overview.gob")
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", filePath, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode overview to gob for file '%s': %w", filePath, err)
	}

	// 3. Write summary file
	ov := snapshot.Overview
	summary := SummaryData{
		SessionID:  snapshot.SessionID,
		Frame:      ov.Timeline.Frame,
		Events:     ov.Summary.Events,
		Hosts:      len(ov.Hosts),
		TotalBytes: ov.Summary.TotalBytes,
		Timestamp:  snapshot.TakenAt.Format(time.RFC3339),
	}
	summaryFile, err := os.Create(filepath.Join(dir, "summary.json"))
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	encoder := json.NewEncoder(summaryFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	return nil
}

// ReadGob loads a snapshot written by GobWriter.
func ReadGob(path string) (session.Snapshot, error) {
	var snapshot session.Snapshot
	file, err := os.Open(path)
	if err != nil {
		return snapshot, err
	}
	defer file.Close()
	if err := gob.NewDecoder(file).Decode(&snapshot); err != nil {
		return snapshot, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}

func sessionDir(id string) string {
	if id == "" {
		return "default"
	}
	return id
}
