package factory

import (
	"errors"
	"testing"
	"time"

	"Go2NetReplay/internal/config"
	"Go2NetReplay/internal/logging"
	"Go2NetReplay/internal/model"

	"github.com/sirupsen/logrus"
)

type stubWriter struct{ interval time.Duration }

func (w stubWriter) Write(payload interface{}, timestamp string) error { return nil }
func (w stubWriter) GetInterval() time.Duration                       { return w.interval }

func init() {
	RegisterWriter("stub", func(def config.WriterDef, interval time.Duration, logger logrus.FieldLogger) (model.Writer, error) {
		return stubWriter{interval: interval}, nil
	})
	RegisterWriter("broken", func(def config.WriterDef, interval time.Duration, logger logrus.FieldLogger) (model.Writer, error) {
		return nil, errors.New("backend unreachable")
	})
}

func TestCreate(t *testing.T) {
	cfg := &config.Config{Export: config.ExportConfig{Writers: []config.WriterDef{
		{Type: "stub", Enabled: true, SnapshotInterval: "5s"},
		{Type: "stub", Enabled: false, SnapshotInterval: "5s"},
		{Type: "broken", Enabled: true, SnapshotInterval: "5s"},
		{Type: "stub", Enabled: true, SnapshotInterval: "later"},
	}}}

	writers, err := Create(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(writers) != 1 {
		t.Fatalf("Expected 1 writer, got %d", len(writers))
	}
	if writers[0].Name != "stub" || writers[0].Writer.GetInterval() != 5*time.Second {
		t.Errorf("Unexpected writer: %+v", writers[0])
	}
}

func TestCreate_UnknownType(t *testing.T) {
	cfg := &config.Config{Export: config.ExportConfig{Writers: []config.WriterDef{
		{Type: "carrier-pigeon", Enabled: true, SnapshotInterval: "5s"},
	}}}
	if _, err := Create(cfg, logging.Discard()); err == nil {
		t.Fatal("Expected error for unknown writer type")
	}
}

func TestRegisterWriter_Duplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	RegisterWriter("stub", nil)
}
