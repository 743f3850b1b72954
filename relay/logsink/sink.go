// Package logsink implements the Log Sink (C10): a bounded channel of
// LogRecords with drop-on-full backpressure and a single batching consumer,
// spec §4.10.
package logsink

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/loomrelay/gateway/common/logger"
	"github.com/loomrelay/gateway/common/metrics"
)

// Sink owns the bounded channel and the batch-writer goroutine.
type Sink struct {
	db            *gorm.DB
	ch            chan LogRecord
	batchSize     int
	batchInterval time.Duration
	usingSQLite   bool

	dropped atomic.Uint64
}

// New constructs a Sink with the given channel capacity (Nlog) and batch
// parameters.
func New(db *gorm.DB, capacity, batchSize int, batchInterval time.Duration, usingSQLite bool) *Sink {
	return &Sink{
		db:            db,
		ch:            make(chan LogRecord, capacity),
		batchSize:     batchSize,
		batchInterval: batchInterval,
		usingSQLite:   usingSQLite,
	}
}

// Submit enqueues rec without blocking. If the channel is full, the record
// is dropped and the Dropped counter increments — spec §4.10's explicit
// "prefer request latency over log completeness" policy.
func (s *Sink) Submit(rec LogRecord) {
	select {
	case s.ch <- rec:
	default:
		s.dropped.Add(1)
		metrics.LogDroppedTotal.Inc()
		logger.Logger.Warn("log channel full, dropping record", zap.String("request_id", rec.RequestID))
	}
}

// Dropped returns the number of records dropped since startup.
func (s *Sink) Dropped() uint64 { return s.dropped.Load() }

// Run drives the single consumer goroutine until ctx is canceled, then
// drains and flushes whatever remains before returning. Use with an
// errgroup.Group so the caller can wait for a clean shutdown.
func (s *Sink) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.consume(gctx)
	})
	return g.Wait()
}

func (s *Sink) consume(ctx context.Context) error {
	batch := make([]LogRecord, 0, s.batchSize)
	ticker := time.NewTicker(s.batchInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.persist(batch); err != nil {
			logger.Logger.Error("log batch persist failed", zap.Error(err), zap.Int("count", len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case rec := <-s.ch:
					batch = append(batch, rec)
					if len(batch) >= s.batchSize {
						flush()
					}
				default:
					flush()
					return nil
				}
			}
		case rec := <-s.ch:
			batch = append(batch, rec)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (s *Sink) persist(batch []LogRecord) error {
	op := func() error { return s.db.Create(&batch).Error }
	if err := withSQLiteBusyRetry(s.usingSQLite, op); err != nil {
		return errors.Wrap(err, "persist log batch")
	}
	return nil
}
