package notify

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
)

// BillSink is one best-effort consumer of committed bills.
type BillSink interface {
	Name() string
	BillCreated(ctx context.Context, bill domain.Bill) error
}

const sinkTimeout = 15 * time.Second

// Dispatcher fans committed bills out to every sink on a bounded worker pool.
// Submission never blocks the caller; a full pool drops the event with a
// warning.
type Dispatcher struct {
	pool   *ants.Pool
	sinks  []BillSink
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewDispatcher(workers int, logger *zap.Logger, sinks ...BillSink) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			logger.Error("notification task panicked", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{pool: pool, sinks: sinks, logger: logger}, nil
}

func (d *Dispatcher) BillCreated(bill domain.Bill) {
	for _, sink := range d.sinks {
		sink := sink
		d.wg.Add(1)
		err := d.pool.Submit(func() {
			defer d.wg.Done()
			d.deliver(sink, bill)
		})
		if err != nil {
			d.wg.Done()
			d.logger.Warn("notification dropped",
				zap.String("sink", sink.Name()),
				zap.String("bill_id", bill.ID),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) deliver(sink BillSink, bill domain.Bill) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	started := time.Now()
	if err := sink.BillCreated(ctx, bill); err != nil {
		d.logger.Warn("notification failed",
			zap.String("sink", sink.Name()),
			zap.String("bill_id", bill.ID),
			zap.Error(err),
		)
		return
	}
	d.logger.Debug("notification delivered",
		zap.String("sink", sink.Name()),
		zap.String("bill_id", bill.ID),
		zap.Duration("took", time.Since(started)),
	)
}

// Close waits for in-flight deliveries until ctx is done, then releases the pool.
func (d *Dispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	d.pool.Release()
	return err
}
