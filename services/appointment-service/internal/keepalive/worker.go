package keepalive

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultInterval = 2 * time.Minute
	pingTimeout     = 10 * time.Second
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Worker pings the store on a fixed interval so an idle hosted database keeps
// its connection. A failed ping is logged and the next tick retries.
type Worker struct {
	pinger   Pinger
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

func NewWorker(pinger Pinger, logger *slog.Logger, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{
		pinger:   pinger,
		logger:   logger,
		interval: interval,
		timeout:  pingTimeout,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("keep-alive started", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ping(ctx)
		}
	}
}

func (w *Worker) ping(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	if err := w.pinger.Ping(pingCtx); err != nil {
		w.logger.Warn("keep-alive ping failed", "err", err)
		return
	}
	w.logger.Debug("keep-alive ping ok", "duration_ms", time.Since(start).Milliseconds())
}
