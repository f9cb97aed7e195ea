package model

import "context"

// RecordSource loads the raw records of a recorded session.
type RecordSource interface {
	LoadRecords(ctx context.Context, sessionID string) ([]RawRecord, error)
}

// RecordSink persists raw records of a session.
type RecordSink interface {
	SaveRecords(ctx context.Context, sessionID string, records []RawRecord) error
}
