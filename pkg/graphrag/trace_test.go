package graphrag

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTrace(t *testing.T) {
	tr := newTrace()
	assert.NotNil(t, tr.Spans)
	assert.Equal(t, 0, len(tr.Spans))
	assert.Equal(t, int64(0), tr.TotalDurationMs)
}

func TestSpanTimer_Finish(t *testing.T) {
	timer := startSpan("expand")
	time.Sleep(5 * time.Millisecond)
	span := timer.finish("", nil, map[string]int64{"entities": 3})

	assert.Equal(t, "expand", span.Name)
	assert.True(t, span.OK)
	assert.GreaterOrEqual(t, span.DurationMs, int64(5))
	assert.Empty(t, span.Error)
	assert.Equal(t, int64(3), span.Counters["entities"])
}

func TestSpanTimer_FinishWithError(t *testing.T) {
	span := startSpan("resolve").finish("store_unavailable", errors.New("database is locked"), nil)

	assert.False(t, span.OK)
	assert.Equal(t, "store_unavailable", span.ErrorKind)
	assert.Equal(t, "database is locked", span.Error)
}

func TestTraceRecords_DropErrorText(t *testing.T) {
	tr := newTrace()
	tr.addSpan(Span{Name: "resolve", DurationMs: 2, OK: true, Counters: map[string]int64{"seeds": 1}})
	tr.addSpan(Span{Name: "generate", DurationMs: 40, OK: false, ErrorKind: "generation_failure", Error: "api key sk-secret rejected"})

	records := tr.records()
	assert.Len(t, records, 2)
	assert.Equal(t, "resolve", records[0].Name)
	assert.Equal(t, int64(1), records[0].Counters["seeds"])
	assert.Equal(t, "generation_failure", records[1].ErrorKind)
	assert.False(t, records[1].OK)
}
