package manager

import (
	"sync"
	"testing"
	"time"

	"Go2NetReplay/internal/engine/normalizer"
	"Go2NetReplay/internal/engine/timebase"
	"Go2NetReplay/internal/factory"
	"Go2NetReplay/internal/logging"
	"Go2NetReplay/internal/model"
	"Go2NetReplay/internal/session"
	"Go2NetReplay/internal/store"

	"github.com/paulmach/orb"
)

type recordingWriter struct {
	mu        sync.Mutex
	snapshots []session.Snapshot
}

func (w *recordingWriter) Write(payload interface{}, timestamp string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snapshots = append(w.snapshots, payload.(session.Snapshot))
	return nil
}

func (w *recordingWriter) GetInterval() time.Duration { return time.Hour }

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.snapshots)
}

func newController(info model.SessionInfo) *session.Controller {
	timing := timebase.Default()
	logger := logging.Discard()
	st := store.New(normalizer.New(timing, orb.Point{}, logger), info)
	return session.NewController(timing, st, nil, nil, logger)
}

func record(id string) model.RawRecord {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return model.RawRecord{
		ID: id, Host: "a.com", ClientIP: "10.0.0.1", Lat: 10, Lon: 10,
		Data: []model.RawTransfer{{Dir: "in", Bytes: model.Bytes(1), TS: model.At(ts)}},
	}
}

func TestManager_CoalescesOnTick(t *testing.T) {
	// 1. Create a manager with a short flush interval
	controller := newController(model.SessionInfo{ID: "s1"})
	m := NewManager(controller, Options{SessionID: "s1", FlushInterval: 50 * time.Millisecond}, nil, logging.Discard())
	m.Start()

	// 2. Submit batches, including one of another session
	for _, id := range []string{"a", "b", "c"} {
		if err := m.Submit("s1", []model.RawRecord{record(id)}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	m.Handle("other", []model.RawRecord{record("x")})
	if err := m.Submit("other", []model.RawRecord{record("y")}); err != ErrForeignSession {
		t.Errorf("Expected ErrForeignSession for another session, got %v", err)
	}

	// 3. Nothing is merged before the tick
	if n := len(controller.Events()); n != 0 {
		t.Errorf("Expected no events before the first flush, got %d", n)
	}

	// 4. Wait for the flush
	deadline := time.After(time.Second)
	for len(controller.Events()) < 3 {
		select {
		case <-deadline:
			t.Fatalf("Timed out waiting for flush, got %d events", len(controller.Events()))
		case <-time.After(10 * time.Millisecond):
		}
	}

	m.Stop()
	if n := len(controller.Events()); n != 3 {
		t.Errorf("Expected 3 events, got %d", n)
	}
	if err := m.Submit("s1", []model.RawRecord{record("late")}); err != ErrStopped {
		t.Errorf("Expected ErrStopped after Stop, got %v", err)
	}
}

func TestManager_StopFlushesAndSnapshots(t *testing.T) {
	controller := newController(model.SessionInfo{ID: "s1"})
	writer := &recordingWriter{}
	m := NewManager(controller, Options{
		FlushInterval: time.Hour,
		Writers:       []factory.NamedWriter{{Name: "recording", Writer: writer}},
	}, nil, logging.Discard())
	m.Start()

	if err := m.Submit("any", []model.RawRecord{record("a"), record("b")}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	m.Stop()

	if n := len(controller.Events()); n != 2 {
		t.Errorf("Expected queued records to be flushed on stop, got %d events", n)
	}
	if writer.count() != 1 {
		t.Fatalf("Expected one final snapshot, got %d", writer.count())
	}
	if writer.snapshots[0].Overview.Summary.Events != 2 {
		t.Errorf("Unexpected snapshot summary: %+v", writer.snapshots[0].Overview.Summary)
	}
}

func TestManager_PlayerClock(t *testing.T) {
	controller := newController(model.SessionInfo{ID: "s1"})
	controller.Ingest([]model.RawRecord{record("a")})
	controller.Player().Play()

	m := NewManager(controller, Options{PlayerTick: 10 * time.Millisecond}, nil, logging.Discard())
	m.Start()
	time.Sleep(200 * time.Millisecond)
	m.Stop()

	if controller.Player().Frame() == 0 {
		t.Error("Expected the player clock to advance the playhead")
	}
}
