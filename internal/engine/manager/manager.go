package manager

import (
	"errors"
	"sync"
	"time"

	"Go2NetReplay/internal/export"
	"Go2NetReplay/internal/factory"
	"Go2NetReplay/internal/metrics"
	"Go2NetReplay/internal/model"
	"Go2NetReplay/internal/session"

	"github.com/sirupsen/logrus"
)

// Options configures a Manager.
type Options struct {
	// SessionID, when set, drops feed batches of other sessions.
	SessionID string
	// FlushInterval is the coalescing tick. Defaults to one second.
	FlushInterval time.Duration
	// ChannelSize bounds the number of queued batches.
	ChannelSize int
	// PlayerTick advances the playhead; zero disables the player clock.
	PlayerTick time.Duration
	Writers    []factory.NamedWriter
}

// Manager feeds live records into a session and runs the periodic export writers.
type Manager struct {
	controller *session.Controller
	writers    []factory.NamedWriter
	metrics    *metrics.Collector
	logger     logrus.FieldLogger
	sessionID  string

	// Live ingestion, coalesced on a fixed tick
	recordChannel chan []model.RawRecord
	flushInterval time.Duration
	inputMu       sync.RWMutex
	stopped       bool
	collectorWg   sync.WaitGroup

	// Snapshotting and playback resources
	playerTick    time.Duration
	done          chan struct{}
	snapshotterWg sync.WaitGroup
	playerWg      sync.WaitGroup
}

var (
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("manager: stopped")
	// ErrForeignSession is returned by Submit for a batch of another session.
	ErrForeignSession = errors.New("manager: batch belongs to another session")
)

// NewManager creates a new Manager.
func NewManager(controller *session.Controller, opts Options, collector *metrics.Collector, logger logrus.FieldLogger) *Manager {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.ChannelSize <= 0 {
		opts.ChannelSize = 1024
	}
	return &Manager{
		controller:    controller,
		writers:       opts.Writers,
		metrics:       collector,
		logger:        logger,
		sessionID:     opts.SessionID,
		recordChannel: make(chan []model.RawRecord, opts.ChannelSize),
		flushInterval: opts.FlushInterval,
		playerTick:    opts.PlayerTick,
		done:          make(chan struct{}),
	}
}

// Start begins the collector, one snapshotter per writer and the player clock.
func (m *Manager) Start() {
	for _, w := range m.writers {
		m.snapshotterWg.Add(1)
		go m.runSnapshotter(w)
		m.logger.WithFields(logrus.Fields{"writer": w.Name, "interval": w.Writer.GetInterval()}).Info("Started snapshotter")
	}

	if m.playerTick > 0 {
		m.playerWg.Add(1)
		go m.runPlayer()
	}

	m.collectorWg.Add(1)
	go m.runCollector()
	m.logger.WithField("flush_interval", m.flushInterval).Info("Manager started")
}

// Submit queues a batch from the feed. It blocks while the queue is full.
func (m *Manager) Submit(sessionID string, records []model.RawRecord) error {
	if m.sessionID != "" && sessionID != m.sessionID {
		return ErrForeignSession
	}
	m.inputMu.RLock()
	defer m.inputMu.RUnlock()
	if m.stopped {
		return ErrStopped
	}
	m.recordChannel <- records
	return nil
}

// Handle is Submit shaped as a feed callback; errors are logged.
func (m *Manager) Handle(sessionID string, records []model.RawRecord) {
	err := m.Submit(sessionID, records)
	switch {
	case err == nil:
	case errors.Is(err, ErrForeignSession):
		m.logger.WithField("session", sessionID).Debug("Ignoring batch of another session")
	default:
		m.logger.WithError(err).Warn("Dropping feed batch")
	}
}

// runCollector merges queued batches into the session once per flush interval, so that
// derivations are recomputed at a bounded rate however fast records arrive.
func (m *Manager) runCollector() {
	defer m.collectorWg.Done()
	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()

	var pending []model.RawRecord
	flush := func() {
		if len(pending) == 0 {
			return
		}
		res := m.controller.Ingest(pending)
		m.metrics.ObserveFlush()
		m.logger.WithFields(logrus.Fields{
			"records":  len(pending),
			"added":    res.Added,
			"replaced": res.Replaced,
		}).Debug("Flushed pending records")
		pending = nil
	}

	for {
		select {
		case batch, ok := <-m.recordChannel:
			if !ok {
				flush()
				return
			}
			pending = append(pending, batch...)
		case <-ticker.C:
			flush()
		}
	}
}

// runSnapshotter runs a dedicated snapshot loop for a single writer.
func (m *Manager) runSnapshotter(w factory.NamedWriter) {
	defer m.snapshotterWg.Done()
	interval := w.Writer.GetInterval()
	if interval <= 0 {
		m.logger.WithField("writer", w.Name).Warnf("Invalid interval %s, snapshotter will not run.", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.takeSnapshot(w)
		case <-m.done:
			m.takeSnapshot(w)
			return
		}
	}
}

func (m *Manager) takeSnapshot(w factory.NamedWriter) {
	snapshot, err := m.controller.Snapshot()
	if errors.Is(err, session.ErrNoEvents) {
		return
	}
	timestamp := snapshot.TakenAt.Format(export.TimestampLayout)
	if err := w.Writer.Write(snapshot, timestamp); err != nil {
		m.metrics.ExportFailed(w.Name)
		m.logger.WithError(err).WithField("writer", w.Name).Error("Error writing snapshot")
	}
}

// runPlayer advances the playhead by the wall time elapsed between ticks.
func (m *Manager) runPlayer() {
	defer m.playerWg.Done()
	ticker := time.NewTicker(m.playerTick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			m.controller.Player().Advance(now.Sub(last))
			last = now
		case <-m.done:
			return
		}
	}
}

// Stop gracefully shuts down the manager.
func (m *Manager) Stop() {
	m.logger.Info("Manager stopping...")
	// 1. Stop accepting new batches.
	m.inputMu.Lock()
	m.stopped = true
	close(m.recordChannel)
	m.inputMu.Unlock()

	// 2. Wait for the collector to merge what is queued.
	m.collectorWg.Wait()

	// 3. Signal snapshotters to take a final snapshot and exit.
	close(m.done)
	m.snapshotterWg.Wait()
	m.playerWg.Wait()

	m.logger.Info("Manager stopped.")
}
