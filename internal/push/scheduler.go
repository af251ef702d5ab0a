package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/fridgetracker/internal/expiry"
	"github.com/dukerupert/fridgetracker/internal/inventory"
	"github.com/dukerupert/fridgetracker/internal/model"
	"github.com/dukerupert/fridgetracker/internal/store"
)

const notifTypeExpiring = "expiring"

// sentRetention is how long dedup records are kept.
const sentRetention = 30 * 24 * time.Hour

// Scheduler sends each household a daily digest of the items about to expire.
type Scheduler struct {
	mu       sync.RWMutex
	sender   Sender
	push     *store.PushStore
	inv      *inventory.Store
	hour     int
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a notification scheduler that fires at the given
// local hour.
func NewScheduler(sender Sender, pushStore *store.PushStore, inv *inventory.Store, hour int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sender:   sender,
		push:     pushStore,
		inv:      inv,
		hour:     hour,
		interval: 60 * time.Second,
		now:      time.Now,
		logger:   logger.With("component", "push"),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick() {
	now := s.now()
	if now.Hour() < s.hour {
		return
	}

	households, err := s.push.ListHouseholds()
	if err != nil {
		s.logger.Error("list households", "error", err)
		return
	}

	due := s.inv.Expiring(now, expiry.ExpiringWindow)
	for _, h := range households {
		s.remind(h, due[h], now)
	}

	if err := s.push.CleanupSent(now.Add(-sentRetention)); err != nil {
		s.logger.Warn("cleanup sent notifications", "error", err)
	}
}

// remind sends the day's digest to a household at most once per day.
func (s *Scheduler) remind(h model.Household, items []inventory.Reminder, now time.Time) {
	refID := expiry.Today(now)
	sent, err := s.push.WasSent(h, notifTypeExpiring, refID)
	if err != nil {
		s.logger.Error("check sent", "household", h, "error", err)
		return
	}
	if sent {
		return
	}
	if len(items) > 0 {
		s.Notify(h, ExpiringPayload(h, items))
	}
	if err := s.push.RecordSent(h, notifTypeExpiring, refID); err != nil {
		s.logger.Error("record sent", "household", h, "error", err)
	}
}

// Notify sends payload to every device of a household, dropping
// subscriptions the push service reports as gone.
func (s *Scheduler) Notify(h model.Household, payload Payload) {
	subs, err := s.push.ListByHousehold(h)
	if err != nil {
		s.logger.Error("list subscriptions", "household", h, "error", err)
		return
	}

	for _, sub := range subs {
		if err := s.sender.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				s.logger.Info("removing expired subscription", "id", sub.ID)
				if err := s.push.DeleteByEndpoint(sub.Endpoint); err != nil {
					s.logger.Error("delete expired subscription", "error", err)
				}
				continue
			}
			s.logger.Warn("send expiry reminder", "id", sub.ID, "error", err)
		}
	}
}

// ExpiringPayload summarizes a household's expiring items.
func ExpiringPayload(h model.Household, items []inventory.Reminder) Payload {
	parts := make([]string, 0, len(items))
	urgent := false
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s (%s)", it.Name, dueLabel(it.DaysLeft)))
		urgent = urgent || it.DaysLeft <= 0
	}

	title := fmt.Sprintf("%d items expiring", len(items))
	if len(items) == 1 {
		title = "1 item expiring"
	}
	return Payload{
		Title:  title,
		Body:   strings.Join(parts, ", "),
		URL:    "/?household=" + string(h) + "&filter=expiring",
		Tag:    "expiring-" + string(h),
		Urgent: urgent,
	}
}

func dueLabel(days int) string {
	switch {
	case days < 0:
		return "expired"
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", days)
	}
}
