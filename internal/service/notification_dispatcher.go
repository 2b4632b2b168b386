package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agriquest/agriquest-api/internal/models"
	"github.com/agriquest/agriquest-api/pkg/jobs"
	"github.com/agriquest/agriquest-api/pkg/mail"
)

type notificationOutbox interface {
	ListUndispatched(ctx context.Context, limit int) ([]models.Notification, error)
	MarkDispatched(ctx context.Context, id string, ts time.Time) error
}

type recipientLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// DispatcherConfig tunes the outbox drain loop.
type DispatcherConfig struct {
	Interval  time.Duration
	BatchSize int
	Workers   int
}

// NotificationDispatcher drains the notification outbox and forwards each row
// to the outbound mail transport. Rows are stamped dispatched only after the
// transport accepts them, so a crash mid-batch re-delivers rather than drops.
type NotificationDispatcher struct {
	outbox    notificationOutbox
	users     recipientLookup
	transport mail.Transport
	interval  time.Duration
	batchSize int
	metrics   *MetricsService
	logger    *zap.Logger

	queue  *jobs.Queue
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotificationDispatcher constructs the dispatcher.
func NewNotificationDispatcher(outbox notificationOutbox, users recipientLookup, transport mail.Transport, cfg DispatcherConfig, metrics *MetricsService, logger *zap.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}

	d := &NotificationDispatcher{
		outbox:    outbox,
		users:     users,
		transport: transport,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		metrics:   metrics,
		logger:    logger,
	}
	d.queue = jobs.NewQueue("notification-dispatch", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BatchSize * 2,
		Logger:     logger,
	})
	return d
}

// Start launches the workers and the periodic drain loop.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.queue.Start(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.drain(ctx)
			}
		}
	}()
	d.logger.Info("notification dispatcher started",
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize))
}

// Stop halts the drain loop and waits for in-flight sends.
func (d *NotificationDispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.queue.Stop()
}

func (d *NotificationDispatcher) drain(ctx context.Context) {
	pending, err := d.outbox.ListUndispatched(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("failed to load undispatched notifications", zap.Error(err))
		return
	}
	for _, n := range pending {
		job := jobs.Job{ID: n.ID, Type: "notification", Payload: n}
		if err := d.queue.Enqueue(job); err != nil {
			d.logger.Warn("failed to enqueue notification",
				zap.String("notification_id", n.ID),
				zap.Int("queue_depth", d.queue.Depth()),
				zap.Error(err))
			return
		}
	}
}

func (d *NotificationDispatcher) handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	user, err := d.users.FindByID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient %s: %w", n.UserID, err)
	}

	msg := mail.Message{
		ToName:    user.FullName,
		ToAddress: user.Email,
		Subject:   n.Title,
		Body:      n.Message,
	}
	if err := d.transport.Send(ctx, msg); err != nil {
		d.metrics.RecordNotificationDispatch(false)
		return fmt.Errorf("send notification %s: %w", n.ID, err)
	}
	d.metrics.RecordNotificationDispatch(true)

	if err := d.outbox.MarkDispatched(ctx, n.ID, time.Now().UTC()); err != nil {
		// The mail went out; log and let the guard on dispatched_at
		// absorb the duplicate stamp on retry.
		d.logger.Error("failed to mark notification dispatched", zap.String("notification_id", n.ID), zap.Error(err))
		return err
	}
	return nil
}
