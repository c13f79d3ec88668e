package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// fakeWriter records flushes; optionally fails every write.
type fakeWriter struct {
	mu      sync.Mutex
	flushes [][]*write.Point
	fail    bool
}

func (w *fakeWriter) WritePoints(_ context.Context, points ...*write.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("store unavailable")
	}
	batch := make([]*write.Point, len(points))
	copy(batch, points)
	w.flushes = append(w.flushes, batch)
	return nil
}

func (w *fakeWriter) flushCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.flushes)
}

func testPayload(field string, value float64) []byte {
	return []byte(fmt.Sprintf(`{"fields":{"%s":%g}}`, field, value))
}

func TestHandleMessage_BatchFlushOnSize(t *testing.T) {
	w := &fakeWriter{}
	c, err := New(Options{Measurement: "telemetry", BatchSize: 3, FlushInterval: time.Hour}, w)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := c.HandleMessage("t", testPayload("v", float64(i))); err != nil {
			t.Fatalf("HandleMessage() error = %v", err)
		}
	}

	if w.flushCount() != 1 {
		t.Fatalf("flushes = %d, want 1", w.flushCount())
	}
	if len(w.flushes[0]) != 3 {
		t.Errorf("flush size = %d, want 3", len(w.flushes[0]))
	}

	stats := c.Stats()
	if stats.Received != 3 || stats.Written != 3 {
		t.Errorf("stats = %+v, want received=3 written=3", stats)
	}
}

func TestHandleMessage_BadPayloadSkipped(t *testing.T) {
	w := &fakeWriter{}
	c, _ := New(Options{Measurement: "telemetry"}, w)

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "not json at all"},
		{"no fields", `{"tags":{"host":"a"}}`},
		{"empty fields", `{"fields":{}}`},
		{"nested field", `{"fields":{"v":{"nested":1}}}`},
		{"bad timestamp", `{"fields":{"v":1},"timestamp":"yesterday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.HandleMessage("t", []byte(tt.payload))
			if err == nil {
				t.Fatal("HandleMessage() expected error, got nil")
			}
			if !errors.Is(err, ErrBadPayload) {
				t.Errorf("HandleMessage() error = %v, want ErrBadPayload", err)
			}
		})
	}

	stats := c.Stats()
	if stats.Skipped != len(tests) {
		t.Errorf("Skipped = %d, want %d", stats.Skipped, len(tests))
	}
	if stats.Written != 0 {
		t.Errorf("Written = %d, want 0", stats.Written)
	}
}

func TestClose_FlushesPartialBatch(t *testing.T) {
	w := &fakeWriter{}
	c, _ := New(Options{Measurement: "telemetry", BatchSize: 100, FlushInterval: time.Hour}, w)
	c.Start()

	c.HandleMessage("t", testPayload("v", 1))
	c.HandleMessage("t", testPayload("v", 2))

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if w.flushCount() != 1 {
		t.Fatalf("flushes = %d, want 1 partial flush on close", w.flushCount())
	}
	if len(w.flushes[0]) != 2 {
		t.Errorf("flush size = %d, want 2", len(w.flushes[0]))
	}
}

func TestFlush_FailureCountedNotFatal(t *testing.T) {
	w := &fakeWriter{fail: true}
	c, _ := New(Options{Measurement: "telemetry", BatchSize: 1}, w)

	if err := c.HandleMessage("t", testPayload("v", 1)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	stats := c.Stats()
	if stats.WriteErrors != 1 {
		t.Errorf("WriteErrors = %d, want 1", stats.WriteErrors)
	}
	if stats.Written != 0 {
		t.Errorf("Written = %d, want 0", stats.Written)
	}

	// The feed keeps accepting messages after a failed flush.
	w.mu.Lock()
	w.fail = false
	w.mu.Unlock()
	if err := c.HandleMessage("t", testPayload("v", 2)); err != nil {
		t.Fatalf("HandleMessage() after failure error = %v", err)
	}
	if got := c.Stats().Written; got != 1 {
		t.Errorf("Written after recovery = %d, want 1", got)
	}
}

func TestFlushInterval_DrainsQuietTopic(t *testing.T) {
	w := &fakeWriter{}
	c, _ := New(Options{Measurement: "telemetry", BatchSize: 100, FlushInterval: 20 * time.Millisecond}, w)
	c.Start()
	defer c.Close()

	c.HandleMessage("t", testPayload("v", 1))

	deadline := time.After(2 * time.Second)
	for w.flushCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("timer flush never happened")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
