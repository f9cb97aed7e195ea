package probe

import (
	"Go2NetReplay/internal/config"
	"Go2NetReplay/internal/model"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// maxBatch bounds the records per message to stay well below the default NATS payload limit.
const maxBatch = 200

// Publisher is responsible for publishing raw records to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  logrus.FieldLogger
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.ProbeConfig, logger logrus.FieldLogger) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	logger.WithField("url", cfg.NATSURL).Info("Connected to NATS server")
	return &Publisher{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Publish sends records of a session, split into messages of at most maxBatch records.
func (p *Publisher) Publish(sessionID string, records []model.RawRecord) error {
	for start := 0; start < len(records); start += maxBatch {
		end := min(start+maxBatch, len(records))
		data, err := EncodeBatch(sessionID, records[start:end])
		if err != nil {
			return err
		}
		if err := p.nc.Publish(p.subject, data); err != nil {
			return err
		}
	}
	p.logger.WithFields(logrus.Fields{
		"session": sessionID,
		"records": len(records),
		"subject": p.subject,
	}).Debug("Published records")
	return nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.logger.Info("NATS connection drained and closed.")
	}
}
