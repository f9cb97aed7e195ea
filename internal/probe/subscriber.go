package probe

import (
	"Go2NetReplay/internal/config"
	"Go2NetReplay/internal/model"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// RecordHandler processes the records of one received batch.
type RecordHandler func(sessionID string, records []model.RawRecord)

// Subscriber is responsible for subscribing to a NATS subject and processing messages.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	logger  logrus.FieldLogger
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.ProbeConfig, logger logrus.FieldLogger) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	logger.WithField("url", cfg.NATSURL).Info("Connected to NATS server")
	return &Subscriber{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Start subscribes to the configured subject and hands each decoded batch to handler.
// Malformed messages are logged and skipped.
func (s *Subscriber) Start(handler RecordHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		batch, err := DecodeBatch(msg.Data)
		if err != nil {
			s.logger.WithError(err).Warn("Skipping malformed message")
			return
		}
		handler(batch.SessionID, batch.Records)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	s.logger.WithField("subject", s.subject).Info("Subscribed. Waiting for messages...")
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		s.logger.Info("NATS connection closed.")
	}
}
