package notify

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Sink interface {
	Send(ctx context.Context, event Event) error
}

// Dispatcher hands events to a sink on their own goroutine. Dispatch never
// blocks the caller and send failures are only logged.
type Dispatcher struct {
	sink    Sink
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sink Sink, logger *zap.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sink: sink, logger: logger, timeout: timeout}
}

func (d *Dispatcher) Dispatch(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("notification dropped after shutdown",
			zap.String("event", event.EventType()),
			zap.String("key", event.Key()),
		)
		return
	}

	d.wg.Add(1)
	go d.send(event)
}

func (d *Dispatcher) send(event Event) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notification sink panicked",
				zap.String("event", event.EventType()),
				zap.Any("panic", r),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Send(ctx, event); err != nil {
		d.logger.Error("send notification",
			zap.String("event", event.EventType()),
			zap.String("key", event.Key()),
			zap.Error(err),
		)
		return
	}

	d.logger.Debug("notification sent",
		zap.String("event", event.EventType()),
		zap.String("key", event.Key()),
	)
}

// Close stops accepting events, waits for in-flight sends up to ctx, then
// closes the sink if it holds resources.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if closer, ok := d.sink.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
