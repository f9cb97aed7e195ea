package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"Go2NetReplay/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS replay_records (
    SessionID  String,
    ID         String,
    Host       String,
    ClientIP   String,
    Country    String,
    City       String,
    Lat        Float64,
    Lon        Float64,
    Hops       String,
    Data       String,
    Created    DateTime64(3),
    Closed     Nullable(DateTime64(3)),
    InsertedAt DateTime64(3)
) ENGINE = ReplacingMergeTree(InsertedAt)
ORDER BY (SessionID, ID);
`

const selectRecords = `
SELECT ID, Host, ClientIP, Country, City, Lat, Lon, Hops, Data, Created, Closed
FROM replay_records FINAL
WHERE SessionID = ?
ORDER BY Created, ID
`

// RecordStore saves and loads the raw records of sessions in ClickHouse.
// It implements model.RecordSource and model.RecordSink.
type RecordStore struct {
	conn   driver.Conn
	logger logrus.FieldLogger
	now    func() time.Time
}

var (
	_ model.RecordSource = (*RecordStore)(nil)
	_ model.RecordSink   = (*RecordStore)(nil)
)

// NewRecordStore ensures the records table exists.
func NewRecordStore(ctx context.Context, conn driver.Conn, logger logrus.FieldLogger) (*RecordStore, error) {
	if err := conn.Exec(ctx, createRecordsTable); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &RecordStore{conn: conn, logger: logger, now: time.Now}, nil
}

// SaveRecords inserts records. Saving an id again replaces it once ClickHouse merges.
func (s *RecordStore) SaveRecords(ctx context.Context, sessionID string, records []model.RawRecord) error {
	if len(records) == 0 {
		return nil // Nothing to write
	}
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO replay_records")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	insertedAt := s.now().UTC()
	for i := range records {
		r, err := toRow(sessionID, &records[i], insertedAt)
		if err != nil {
			return err
		}
		if err := batch.Append(r.values()...); err != nil {
			return fmt.Errorf("failed to append record to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"session": sessionID, "records": len(records)}).Info("Saved records to ClickHouse")
	return nil
}

// LoadRecords returns every record of a session, oldest first.
func (s *RecordStore) LoadRecords(ctx context.Context, sessionID string) ([]model.RawRecord, error) {
	rows, err := s.conn.Query(ctx, selectRecords, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var records []model.RawRecord
	for rows.Next() {
		var r row
		var closed *time.Time
		if err := rows.Scan(&r.ID, &r.Host, &r.ClientIP, &r.Country, &r.City, &r.Lat, &r.Lon, &r.Hops, &r.Data, &r.Created, &closed); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Closed = closed
		rec, err := r.record()
		if err != nil {
			s.logger.WithError(err).WithField("id", r.ID).Warn("Skipping unreadable record")
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

// row is the column layout of replay_records. Hops and transfers are kept as JSON
// documents in the same shape the live feed delivers them.
type row struct {
	SessionID  string
	ID         string
	Host       string
	ClientIP   string
	Country    string
	City       string
	Lat        float64
	Lon        float64
	Hops       string
	Data       string
	Created    time.Time
	Closed     *time.Time
	InsertedAt time.Time
}

func toRow(sessionID string, rec *model.RawRecord, insertedAt time.Time) (row, error) {
	hops, err := json.Marshal(rec.Hops)
	if err != nil {
		return row{}, fmt.Errorf("failed to encode hops of record %s: %w", rec.ID, err)
	}
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return row{}, fmt.Errorf("failed to encode transfers of record %s: %w", rec.ID, err)
	}
	r := row{
		SessionID:  sessionID,
		ID:         rec.ID,
		Host:       rec.Host,
		ClientIP:   rec.ClientIP,
		Country:    rec.Country,
		City:       rec.City,
		Lat:        rec.Lat,
		Lon:        rec.Lon,
		Hops:       string(hops),
		Data:       string(data),
		Created:    rec.Created.Time,
		InsertedAt: insertedAt,
	}
	if !rec.Closed.IsZero() {
		closed := rec.Closed.Time
		r.Closed = &closed
	}
	return r, nil
}

func (r row) values() []interface{} {
	return []interface{}{
		r.SessionID, r.ID, r.Host, r.ClientIP, r.Country, r.City, r.Lat, r.Lon,
		r.Hops, r.Data, r.Created, r.Closed, r.InsertedAt,
	}
}

func (r row) record() (model.RawRecord, error) {
	rec := model.RawRecord{
		ID:       r.ID,
		Host:     r.Host,
		ClientIP: r.ClientIP,
		Country:  r.Country,
		City:     r.City,
		Lat:      r.Lat,
		Lon:      r.Lon,
		Created:  model.At(r.Created),
	}
	if r.Hops != "" && r.Hops != "null" {
		if err := json.Unmarshal([]byte(r.Hops), &rec.Hops); err != nil {
			return rec, fmt.Errorf("failed to decode hops: %w", err)
		}
	}
	if r.Data != "" && r.Data != "null" {
		if err := json.Unmarshal([]byte(r.Data), &rec.Data); err != nil {
			return rec, fmt.Errorf("failed to decode transfers: %w", err)
		}
	}
	if r.Closed != nil {
		rec.Closed = model.At(*r.Closed)
	}
	return rec, nil
}
