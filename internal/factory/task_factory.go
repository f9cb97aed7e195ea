package factory

import (
	"fmt"
	"time"

	"Go2NetReplay/internal/config"
	"Go2NetReplay/internal/model"

	"github.com/sirupsen/logrus"
)

// NamedWriter is a writer with the type name it was created from.
type NamedWriter struct {
	Name   string
	Writer model.Writer
}

// WriterFactory creates a writer from its definition.
type WriterFactory func(def config.WriterDef, interval time.Duration, logger logrus.FieldLogger) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Registered reports whether a writer type is known.
func Registered(name string) bool {
	_, ok := registry[name]
	return ok
}

// Create builds every enabled writer of cfg. Writers that fail to start are skipped with
// a warning so that one unreachable backend does not stop the engine.
func Create(cfg *config.Config, logger logrus.FieldLogger) ([]NamedWriter, error) {
	var writers []NamedWriter

	for _, def := range cfg.Export.Writers {
		if !def.Enabled {
			continue
		}
		log := logger.WithField("writer", def.Type)

		factory, ok := registry[def.Type]
		if !ok {
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}

		interval, err := time.ParseDuration(def.SnapshotInterval)
		if err != nil {
			log.WithError(err).Warn("Invalid snapshot_interval, skipping writer")
			continue
		}

		w, err := factory(def, interval, log)
		if err != nil {
			log.WithError(err).Warn("Failed to create writer, skipping")
			continue
		}
		log.WithField("interval", interval).Info("Created writer")
		writers = append(writers, NamedWriter{Name: def.Type, Writer: w})
	}

	return writers, nil
}
