package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-garage-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool tells subscribers of a sector that a spot has been freed.
type WorkerPool struct {
	size    int
	jobs    chan string
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	log     *slog.Logger
}

// NewWorkerPool creates a new worker pool. The queue holds a few jobs per
// worker; Dispatch drops jobs once it is full.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, log *slog.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size*16),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log.With("component", "notification"),
	}
}

// Run launches the workers and blocks until ctx is cancelled.
func (wp *WorkerPool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < wp.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			wp.worker(ctx, id)
		}(i)
	}
	wg.Wait()
	return nil
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("worker started", "worker", id)
	for {
		select {
		case sectorID := <-wp.jobs:
			wp.sendNotificationsForSector(ctx, sectorID)
		case <-ctx.Done():
			wp.log.Debug("worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch queues a free-spot notification for a sector. It never blocks.
func (wp *WorkerPool) Dispatch(sectorID string) {
	select {
	case wp.jobs <- sectorID:
	default:
		wp.log.Warn("notification queue full, dropping job", "sector", sectorID)
	}
}

func (wp *WorkerPool) sendNotificationsForSector(ctx context.Context, sectorID string) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_sector_mapping ssm ON ssm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("ssm.sector_id = ?", sectorID).
		Find(&subscriptions).Error
	if err != nil {
		wp.log.Error("fetch subscriptions failed", "sector", sectorID, "err", err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	var free int64
	if err := wp.db.WithContext(ctx).
		Model(&model.Spot{}).
		Where("sector_id = ? AND available = ?", sectorID, true).
		Count(&free).Error; err != nil {
		wp.log.Error("count free spots failed", "sector", sectorID, "err", err)
		return
	}
	if free == 0 {
		return
	}

	wp.log.Info("sending free-spot notifications", "sector", sectorID, "subscribers", len(subscriptions), "free", free)

	message := fmt.Sprintf("Sector %s has %d free spot(s).", sectorID, free)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("send notification failed", "endpoint", sub.Endpoint, "err", err)
		return
	}
	defer resp.Body.Close()

	// Gone means the browser dropped the subscription.
	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Select(clause.Associations).Delete(&sub).Error; err != nil {
			wp.log.Error("delete expired subscription failed", "endpoint", sub.Endpoint, "err", err)
		}
	}
}
