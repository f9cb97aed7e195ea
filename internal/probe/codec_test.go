package probe

import (
	"testing"
	"time"

	"Go2NetReplay/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBatch_AssignsIDs(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []model.RawRecord{
		{ID: "keep", Host: "a.com", Lat: 1, Lon: 2},
		{Host: "b.com", Lat: 3, Lon: 4, Data: []model.RawTransfer{{Dir: "in", Bytes: model.Bytes(7), TS: model.At(ts)}}},
	}

	data, err := EncodeBatch("s1", records)
	require.NoError(t, err)
	assert.Empty(t, records[1].ID, "input is not modified")

	batch, err := DecodeBatch(data)
	require.NoError(t, err)
	assert.Equal(t, "s1", batch.SessionID)
	require.Len(t, batch.Records, 2)
	assert.Equal(t, "keep", batch.Records[0].ID)
	_, err = uuid.Parse(batch.Records[1].ID)
	assert.NoError(t, err)
	assert.Equal(t, model.Bytes(7), batch.Records[1].Data[0].Bytes)
	assert.True(t, ts.Equal(batch.Records[1].Data[0].TS.Time))
}

func TestDecodeBatch_Malformed(t *testing.T) {
	_, err := DecodeBatch([]byte("{not json"))
	assert.Error(t, err)
}
