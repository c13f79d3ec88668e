package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Default settings for the consumer.
const (
	defaultBatchSize     = 100
	defaultFlushInterval = 5 * time.Second
	defaultWriteTimeout  = 10 * time.Second
)

// Writer is the sink flushed batches go to. Satisfied by *influxdb.Client.
type Writer interface {
	WritePoints(ctx context.Context, points ...*write.Point) error
}

// Logger is the optional logging interface for the consumer.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Consumer.
type Options struct {
	// Measurement is the default measurement for payloads that name none.
	Measurement string

	// BatchSize is the number of points per write call.
	BatchSize int

	// FlushInterval bounds how long a partial batch may sit unwritten.
	FlushInterval time.Duration
}

// Stats is a snapshot of the consumer's counters.
type Stats struct {
	Received    int
	Written     int
	Skipped     int
	WriteErrors int
}

// Consumer turns MQTT telemetry messages into batched InfluxDB writes.
//
// Points are batched and flushed either when the batch reaches the
// configured size or when the flush interval timer fires, whichever comes
// first. Unlike the one-shot CSV pipeline, the feed is long-running, so a
// failed flush is logged and counted rather than fatal — the dropped batch
// is not retried.
//
// Thread Safety: HandleMessage is safe to call from paho's handler
// goroutines; all shared state is mutex-guarded.
type Consumer struct {
	opts   Options
	writer Writer
	logger Logger

	batch   []*write.Point
	batchMu sync.Mutex

	stats   Stats
	statsMu sync.Mutex

	flushTick *time.Ticker
	done      chan struct{}
	wg        sync.WaitGroup
	started   bool
}

// New creates a consumer ready to Start.
//
// Parameters:
//   - opts: Consumer options; zero values get defaults
//   - writer: The store flushed batches go to
//
// Returns:
//   - *Consumer: Ready for Start
//   - error: If the writer is missing
func New(opts Options, writer Writer) (*Consumer, error) {
	if writer == nil {
		return nil, fmt.Errorf("feed: writer is required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}

	return &Consumer{
		opts:   opts,
		writer: writer,
		batch:  make([]*write.Point, 0, opts.BatchSize),
		done:   make(chan struct{}),
	}, nil
}

// SetLogger sets an optional logger for flush failures and skipped payloads.
func (c *Consumer) SetLogger(logger Logger) {
	c.logger = logger
}

// Start launches the background flush timer.
func (c *Consumer) Start() {
	if c.started {
		return
	}
	c.started = true
	c.flushTick = time.NewTicker(c.opts.FlushInterval)
	c.wg.Add(1)
	go c.flushLoop()
}

// flushLoop periodically flushes the batch on timer or when done is signalled.
func (c *Consumer) flushLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.flushTick.C:
			c.Flush()
		case <-c.done:
			return
		}
	}
}

// HandleMessage decodes one telemetry payload and adds it to the batch.
//
// Malformed payloads are counted as skipped and the error returned (the
// MQTT client logs it); they never stop the feed.
//
// Parameters:
//   - topic: The topic the message arrived on (unused, kept for the
//     mqtt.MessageHandler signature)
//   - payload: Raw JSON message body
//
// Returns:
//   - error: nil when the point was accepted
func (c *Consumer) HandleMessage(_ string, payload []byte) error {
	c.statsMu.Lock()
	c.stats.Received++
	c.statsMu.Unlock()

	point, err := decodePayload(payload, c.opts.Measurement, time.Now().UTC())
	if err != nil {
		c.statsMu.Lock()
		c.stats.Skipped++
		c.statsMu.Unlock()
		return err
	}

	c.batchMu.Lock()
	c.batch = append(c.batch, point)
	shouldFlush := len(c.batch) >= c.opts.BatchSize
	c.batchMu.Unlock()

	if shouldFlush {
		c.Flush()
	}

	return nil
}

// Flush sends all pending points in one write call.
//
// Called automatically by the flush timer and when the batch is full;
// also called on Close for the final partial batch. Safe to call
// concurrently — the batch is swapped out under lock.
func (c *Consumer) Flush() {
	c.batchMu.Lock()
	if len(c.batch) == 0 {
		c.batchMu.Unlock()
		return
	}
	points := c.batch
	c.batch = make([]*write.Point, 0, c.opts.BatchSize)
	c.batchMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
	defer cancel()

	if err := c.writer.WritePoints(ctx, points...); err != nil {
		c.statsMu.Lock()
		c.stats.WriteErrors++
		c.statsMu.Unlock()
		if c.logger != nil {
			c.logger.Error("feed flush failed, batch dropped",
				"points", len(points),
				"error", err,
			)
		}
		return
	}

	c.statsMu.Lock()
	c.stats.Written += len(points)
	c.statsMu.Unlock()
}

// Close stops the flush timer and flushes the remaining partial batch.
//
// Returns:
//   - error: nil (flush errors are logged and counted, not returned)
func (c *Consumer) Close() error {
	if !c.started {
		c.Flush()
		return nil
	}

	c.flushTick.Stop()
	close(c.done)
	c.wg.Wait()

	c.Flush()
	return nil
}

// Stats returns a snapshot of the consumer's counters.
func (c *Consumer) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}
