package reflection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordAsyncDoesNotBlock(t *testing.T) {
	sink := NewInMemorySink(nil)
	start := time.Now()
	RecordAsync(sink, Record{CycleID: "c-1", Outcome: OutcomeDone})
	require.Less(t, time.Since(start), 50*time.Millisecond)

	require.Eventually(t, func() bool { return len(sink.All()) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, OutcomeDone, sink.All()[0].Outcome)
}

func TestRecordAsyncToleratesNilSink(t *testing.T) {
	require.NotPanics(t, func() { RecordAsync(nil, Record{CycleID: "c-1"}) })
}
