package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/docchat/internal/core"
	"github.com/markdave123-py/docchat/internal/models"
)

const topic = "audit.query_records"

// Config tunes the dispatcher.
//
// QueueSize: records accepted but not yet delivered; extra records are dropped.
// Timeout:   budget for delivering one record to all sinks.
type Config struct {
	QueueSize int
	Timeout   time.Duration
}

// Dispatcher is a fire-and-forget core.AuditLogger. Records go through an in-process
// watermill channel to a single consumer that fans each one out to every sink.
type Dispatcher struct {
	pubSub  *gochannel.GoChannel
	sinks   []core.AuditSink
	cfg     Config
	logger  *zap.Logger
	pending atomic.Int64
	started atomic.Bool
	done    chan struct{}
}

var _ core.AuditLogger = (*Dispatcher)(nil)

func NewDispatcher(cfg Config, logger *zap.Logger, sinks ...core.AuditSink) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(cfg.QueueSize)},
		watermill.NewStdLogger(false, false),
	)
	return &Dispatcher{
		pubSub: pubSub,
		sinks:  sinks,
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start subscribes the consumer. Records passed to Record before Start are dropped.
func (d *Dispatcher) Start(ctx context.Context) error {
	messages, err := d.pubSub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	d.started.Store(true)

	go func() {
		defer close(d.done)
		for msg := range messages {
			d.process(msg)
		}
	}()
	return nil
}

// Record enqueues rec and returns immediately.
func (d *Dispatcher) Record(rec models.QueryRecord) {
	if len(d.sinks) == 0 {
		return
	}
	if !d.started.Load() {
		d.logger.Warn("audit dispatcher not started, dropping record")
		return
	}
	if d.pending.Add(1) > int64(d.cfg.QueueSize) {
		d.pending.Add(-1)
		d.logger.Warn("audit queue full, dropping record", zap.Int("queue_size", d.cfg.QueueSize))
		return
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		d.pending.Add(-1)
		d.logger.Warn("encode audit record", zap.Error(err))
		return
	}
	if err := d.pubSub.Publish(topic, message.NewMessage(uuid.NewString(), payload)); err != nil {
		d.pending.Add(-1)
		d.logger.Warn("publish audit record", zap.Error(err))
	}
}

// Pending is the number of accepted records not yet delivered.
func (d *Dispatcher) Pending() int {
	return int(d.pending.Load())
}

func (d *Dispatcher) process(msg *message.Message) {
	defer d.pending.Add(-1)
	defer msg.Ack()

	var rec models.QueryRecord
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		d.logger.Warn("decode audit record", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	var g errgroup.Group
	for _, sink := range d.sinks {
		g.Go(func() error {
			if err := sink.Deliver(ctx, rec); err != nil {
				d.logger.Warn("audit delivery failed", zap.String("sink", sink.Name()), zap.Error(err))
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err == nil {
		d.logger.Debug("audit record delivered", zap.String("status", rec.Status))
	}
}

// Close waits for queued records to drain (bounded by ctx) and stops the consumer.
func (d *Dispatcher) Close(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	var drainErr error
	for d.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			drainErr = errors.New("audit queue not drained before shutdown")
		case <-ticker.C:
			continue
		}
		break
	}

	if err := d.pubSub.Close(); err != nil {
		return err
	}
	if d.started.Load() {
		select {
		case <-d.done:
		case <-ctx.Done():
		}
	}
	return drainErr
}
