package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"Go2NetReplay/internal/config"
	"Go2NetReplay/internal/engine/aggregate"
	"Go2NetReplay/internal/factory"
	"Go2NetReplay/internal/model"
	"Go2NetReplay/internal/session"

	"github.com/sirupsen/logrus"
)

func init() {
	factory.RegisterWriter("text", func(def config.WriterDef, interval time.Duration, logger logrus.FieldLogger) (model.Writer, error) {
		return NewTextWriter(def.RootPath, interval, logger), nil
	})
}

// TextWriter writes human readable overview tables.
type TextWriter struct {
	rootPath string
	interval time.Duration
	logger   logrus.FieldLogger
}

// NewTextWriter creates a new text writer rooted at rootPath.
func NewTextWriter(rootPath string, interval time.Duration, logger logrus.FieldLogger) model.Writer {
	return &TextWriter{rootPath: rootPath, interval: interval, logger: logger}
}

func (w *TextWriter) GetInterval() time.Duration {
	return w.interval
}

func (w *TextWriter) Write(payload interface{}, timestamp string) error {
	snapshot, ok := payload.(session.Snapshot)
	if !ok {
		return fmt.Errorf("invalid payload type for TextWriter: expected session.Snapshot, got %T", payload)
	}

	dir := filepath.Join(w.rootPath, timestamp, sessionDir(snapshot.SessionID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	ov := snapshot.Overview
	lines := 0

	// hosts
	n, err := writeLines(filepath.Join(dir, "hosts.txt"), len(ov.Hosts), func(i int) string {
		h := ov.Hosts[i]
		return fmt.Sprintf("%s %s %s", h.Host, aggregate.DisplayBytes(h.Incoming), aggregate.DisplayBytes(h.Outgoing))
	})
	if err != nil {
		return err
	}
	lines += n

	// tags
	n, err = writeLines(filepath.Join(dir, "tags.txt"), len(ov.Tags), func(i int) string {
		return fmt.Sprintf("%s %d", ov.Tags[i].Type, ov.Tags[i].Value)
	})
	if err != nil {
		return err
	}
	lines += n

	// timeline
	n, err = writeLines(filepath.Join(dir, "timeline.txt"), len(ov.Buckets), func(i int) string {
		return fmt.Sprintf("%s %d", ov.Buckets[i].Time, ov.Buckets[i].Value)
	})
	if err != nil {
		return err
	}
	lines += n

	w.logger.WithFields(logrus.Fields{"lines": lines, "dir": dir}).Debug("Wrote text overview")
	return nil
}

func writeLines(path string, n int, line func(i int) string) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create snapshot file '%s': %w", path, err)
	}
	defer file.Close()

	buf := bufio.NewWriter(file)
	for i := 0; i < n; i++ {
		if _, err := buf.WriteString(line(i) + "\n"); err != nil {
			return i, fmt.Errorf("failed to write line to '%s': %w", path, err)
		}
	}
	if err := buf.Flush(); err != nil {
		return n, fmt.Errorf("failed to flush '%s': %w", path, err)
	}
	return n, nil
}
