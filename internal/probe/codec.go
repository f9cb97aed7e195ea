package probe

import (
	"encoding/json"
	"fmt"

	"Go2NetReplay/internal/model"

	"github.com/google/uuid"
)

// Batch is the message carried on the feed subject.
type Batch struct {
	SessionID string            `json:"session_id"`
	Records   []model.RawRecord `json:"records"`
}

// EncodeBatch serializes records, assigning a random id to records that have none.
func EncodeBatch(sessionID string, records []model.RawRecord) ([]byte, error) {
	out := make([]model.RawRecord, len(records))
	copy(out, records)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.NewString()
		}
	}
	data, err := json.Marshal(Batch{SessionID: sessionID, Records: out})
	if err != nil {
		return nil, fmt.Errorf("failed to encode record batch: %w", err)
	}
	return data, nil
}

// DecodeBatch parses a feed message.
func DecodeBatch(data []byte) (Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return Batch{}, fmt.Errorf("failed to decode record batch: %w", err)
	}
	return b, nil
}
