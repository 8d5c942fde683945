package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"guest-visits-backend/internal/model"
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

// SubscriptionStore lists and prunes browser push subscriptions.
type SubscriptionStore interface {
	ListPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

// WebPushProvider sends every message to every stored browser subscription.
type WebPushProvider struct {
	store   SubscriptionStore
	options *webpush.Options
	sender  NotificationSender
	logger  *slog.Logger
}

// NewWebPushProvider creates a web push provider using the real sender.
func NewWebPushProvider(store SubscriptionStore, options *webpush.Options, logger *slog.Logger) *WebPushProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebPushProvider{
		store:   store,
		options: options,
		sender:  &WebPushSender{},
		logger:  logger.With("component", "webpush"),
	}
}

func (p *WebPushProvider) Name() string { return "webpush" }

func (p *WebPushProvider) Notify(ctx context.Context, msg Message) error {
	subscriptions, err := p.store.ListPushSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	if len(subscriptions) == 0 {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	for _, sub := range subscriptions {
		p.sendNotification(ctx, sub, payload)
	}
	return nil
}

// sendNotification sends a single web push notification.
func (p *WebPushProvider) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := p.sender.Send(payload, wpSub, p.options)
	if err != nil {
		p.logger.Warn("error sending push notification", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		p.logger.Info("push subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := p.store.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
			p.logger.Error("failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
		}
	}
}
