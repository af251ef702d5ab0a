package push

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dukerupert/fridgetracker/internal/model"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrExpired means the push service no longer knows the subscription.
var ErrExpired = errors.New("push subscription expired")

// reminderTTL keeps an undelivered digest around until the next one is due.
const reminderTTL = 24 * 60 * 60

// Payload is what the app's service worker receives.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`

	// Urgent digests mention items that expire today or already have.
	Urgent bool `json:"-"`
}

// Config holds VAPID configuration.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string // mailto: or https: contact for the push service
	ReminderHour    int    // local hour at which daily expiry reminders go out
}

// Sender delivers a payload to one subscription.
type Sender interface {
	Send(sub *model.PushSubscription, payload Payload) error
}

type Service struct {
	keys       Config
	subscriber string
}

func NewService(cfg Config) *Service {
	subscriber := cfg.Subscriber
	if subscriber == "" {
		subscriber = "mailto:noreply@fridgetracker.local"
	}
	return &Service{keys: cfg, subscriber: subscriber}
}

// Enabled reports whether VAPID keys are configured.
func (s *Service) Enabled() bool {
	return s.keys.VAPIDPublicKey != "" && s.keys.VAPIDPrivateKey != ""
}

// VAPIDPublicKey is handed to browsers when they subscribe.
func (s *Service) VAPIDPublicKey() string {
	return s.keys.VAPIDPublicKey
}

// Send delivers payload to one device. A newer digest with the same tag
// replaces an undelivered older one.
func (s *Service) Send(sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	urgency := webpush.UrgencyNormal
	if payload.Urgent {
		urgency = webpush.UrgencyHigh
	}

	resp, err := webpush.SendNotification(data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dhKey, Auth: sub.AuthKey},
	}, &webpush.Options{
		VAPIDPublicKey:  s.keys.VAPIDPublicKey,
		VAPIDPrivateKey: s.keys.VAPIDPrivateKey,
		Subscriber:      s.subscriber,
		Topic:           payload.Tag,
		Urgency:         urgency,
		TTL:             reminderTTL,
	})
	if err != nil {
		return fmt.Errorf("send push to subscription %d: %w", sub.ID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusNotFound:
		return ErrExpired
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d for subscription %d", resp.StatusCode, sub.ID)
	}
	return nil
}

// GenerateVAPIDKeys returns a fresh base64url key pair for FRIDGE_VAPID_*.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate VAPID keys: %w", err)
	}
	return publicKey, privateKey, nil
}
