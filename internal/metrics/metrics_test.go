package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_ObserveIngest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("netreplay", reg)

	c.ObserveIngest(IngestResult{
		Records:          5,
		DroppedRecords:   map[string]int{"position": 2},
		DroppedTransfers: map[string]int{"bytes": 1},
		Renormalized:     true,
		StoreSize:        3,
	})
	c.ObserveFlush()
	c.SetTotalFrames(900)
	c.ObserveDerivation("view", time.Now())
	c.ExportFailed("gob")

	assert.Equal(t, 5.0, testutil.ToFloat64(c.recordsIngested))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.recordsDropped.WithLabelValues("position")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transfersDropped.WithLabelValues("bytes")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.renormalizations))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.storeEvents))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.flushes))
	assert.Equal(t, 900.0, testutil.ToFloat64(c.totalFrames))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.exportErrors.WithLabelValues("gob")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.viewDuration))
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector
	c.ObserveIngest(IngestResult{Records: 1})
	c.ObserveFlush()
	c.SetTotalFrames(1)
	c.ObserveDerivation("view", time.Now())
	c.ExportFailed("gob")
	c.StoreSize(0)
}
