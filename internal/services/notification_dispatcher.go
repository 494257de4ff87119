package services

import (
	"context"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"portalauth/internal/logger"
	"portalauth/internal/metrics"
)

type Notification struct {
	To      string
	Subject string
	Body    string
}

// Dispatcher hands notifications off the request path. Dispatch never blocks
// and never fails the caller.
type Dispatcher interface {
	Dispatch(n Notification)
}

type DispatcherConfig struct {
	QueueSize    int
	Workers      int
	MaxRetries   uint64
	RetryBackoff time.Duration
}

// NotificationDispatcher is a bounded queue drained by a fixed worker pool.
// Each send is retried with exponential backoff; a full queue drops the message.
type NotificationDispatcher struct {
	notifier Notifier
	log      logger.Logger
	metrics  *metrics.Metrics
	cfg      DispatcherConfig

	queue  chan Notification
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewNotificationDispatcher(n Notifier, log logger.Logger, m *metrics.Metrics, cfg DispatcherConfig) *NotificationDispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &NotificationDispatcher{
		notifier: n,
		log:      log.With("component", "notify"),
		metrics:  m,
		cfg:      cfg,
		queue:    make(chan Notification, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (d *NotificationDispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for n := range d.queue {
				d.deliver(n)
			}
		}()
	}
}

func (d *NotificationDispatcher) Dispatch(n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("dispatcher closed, dropping notification", "to", n.To, "subject", n.Subject)
		d.metrics.Notification("dropped")
		return
	}
	select {
	case d.queue <- n:
	default:
		d.log.Warn("notification queue full, dropping", "to", n.To, "subject", n.Subject)
		d.metrics.Notification("dropped")
	}
}

func (d *NotificationDispatcher) deliver(n Notification) {
	backoff := retry.WithMaxRetries(d.cfg.MaxRetries, retry.NewExponential(d.cfg.RetryBackoff))
	attempt := 0
	err := retry.Do(d.ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := d.notifier.Send(ctx, n.To, n.Subject, n.Body); err != nil {
			d.log.Debug("send attempt failed", "to", n.To, "attempt", attempt, "err", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		d.log.Error("notification failed", "to", n.To, "subject", n.Subject, "attempts", attempt, "err", err)
		d.metrics.Notification("failed")
		return
	}
	d.metrics.Notification("sent")
}

// Close stops accepting work and drains the queue. When ctx ends first the
// in-flight retries are cancelled.
func (d *NotificationDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
