package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher sends messages in the background. Each send gets its own
// timeout, detached from the request that triggered it.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  *slog.Logger

	wg sync.WaitGroup
}

func NewDispatcher(sender Sender, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sender: sender, timeout: timeout, logger: logger}
}

// Compose builds a message in the background. ok=false sends nothing.
type Compose func(ctx context.Context) (msg Message, ok bool)

// Dispatch queues msg and returns immediately. Failures are logged.
func (d *Dispatcher) Dispatch(msg Message) {
	d.DispatchFunc(func(context.Context) (Message, bool) { return msg, true })
}

// DispatchFunc runs compose and sends its message in the background. The
// timeout covers both steps. The caller returns before compose starts.
func (d *Dispatcher) DispatchFunc(compose Compose) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		msg, ok := compose(ctx)
		if !ok {
			return
		}
		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.Error("email dispatch failed",
				slog.String("subject", msg.Subject),
				slog.String("error", err.Error()),
			)
			return
		}
		d.logger.Debug("email dispatched", slog.String("subject", msg.Subject))
	}()
}

// Wait blocks until every dispatched message finished or ctx is done.
// Called during shutdown.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
