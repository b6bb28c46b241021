// Package notify delivers scan results to users.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"feedbot/internal/metrics"
	"feedbot/internal/model"
)

// DefaultRate is the Telegram bot limit for messages to different chats.
const DefaultRate = 20

// Sender is the interface for sending chat messages.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Store is the persistence the dispatcher needs.
type Store interface {
	IsSent(ctx context.Context, userID int64, link string) (bool, error)
	SaveLink(ctx context.Context, rec model.DeliveryRecord) error
	SetLastSent(ctx context.Context, id int64, ts time.Time) error
	UpdateLastUpdated(ctx context.Context, userID int64, link string, ts time.Time) error
}

// Dispatcher sends notifications and records each confirmed delivery.
type Dispatcher struct {
	store   Store
	sender  Sender
	limiter *rate.Limiter
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// New creates a Dispatcher sending at most DefaultRate messages per second. m may be nil.
func New(store Store, sender Sender, m *metrics.Metrics, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:   store,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(DefaultRate), 1),
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// SetRate overrides the send rate in messages per second. Zero or less disables pacing.
func (d *Dispatcher) SetRate(perSecond float64) {
	if perSecond <= 0 {
		d.limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	d.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Dispatch sends every notification in order and returns how many were delivered.
//
// A notification is recorded in the link store only after the transport
// accepted it. A feed's last_updated moves to the Horizon of its
// notifications only when none of them failed, so an item whose send failed
// passes the recency filter again and is retried by a later cycle. Links
// already recorded are skipped. Dispatch stops early when ctx is cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, notes []model.Notification) int {
	delivered := 0
	perUser := make(map[int64]int)
	var users []int64
	feeds := newFeedProgress()

	for i, n := range notes {
		if err := d.limiter.Wait(ctx); err != nil {
			d.log.Warn("dispatch interrupted", "remaining", len(notes)-i, "error", err)
			for _, rest := range notes[i:] {
				feeds.fail(rest)
			}
			break
		}

		sent, err := d.store.IsSent(ctx, n.UserID, n.Link)
		if err != nil {
			d.log.Error("check sent", "user_id", n.UserID, "link", n.Link, "error", err)
			d.metrics.RecordNotification(metrics.StatusFailed)
			feeds.fail(n)
			continue
		}
		if sent {
			d.metrics.RecordNotification(metrics.StatusSkipped)
			feeds.done(n)
			continue
		}

		if err := d.sender.SendMessage(n.UserID, Format(n)); err != nil {
			d.log.Warn("send notification", "user_id", n.UserID, "link", n.Link, "error", err)
			d.metrics.RecordNotification(metrics.StatusFailed)
			feeds.fail(n)
			continue
		}
		d.metrics.RecordNotification(metrics.StatusSent)
		delivered++
		feeds.done(n)

		rec := model.DeliveryRecord{UserID: n.UserID, Link: n.Link, SentAt: d.now()}
		if err := d.store.SaveLink(ctx, rec); err != nil {
			d.log.Error("save link", "user_id", n.UserID, "link", n.Link, "error", err)
		}

		if perUser[n.UserID] == 0 {
			users = append(users, n.UserID)
		}
		perUser[n.UserID]++
	}

	for _, f := range feeds.order {
		p := feeds.byFeed[f]
		if p.failed || p.horizon.IsZero() {
			continue
		}
		if err := d.store.UpdateLastUpdated(ctx, f.userID, f.link, p.horizon); err != nil {
			d.log.Error("advance last updated", "user_id", f.userID, "feed_link", f.link, "error", err)
		}
	}

	for _, id := range users {
		if err := d.store.SetLastSent(ctx, id, d.now()); err != nil {
			d.log.Error("set last sent", "user_id", id, "error", err)
		}
		d.log.Info("sent notifications", "user_id", id, "count", perUser[id])
	}
	return delivered
}

type feedKey struct {
	userID int64
	link   string
}

type progress struct {
	failed  bool
	horizon time.Time
}

// feedProgress tracks, per feed, whether every notification of the batch got through.
type feedProgress struct {
	order  []feedKey
	byFeed map[feedKey]*progress
}

func newFeedProgress() *feedProgress {
	return &feedProgress{byFeed: make(map[feedKey]*progress)}
}

func (f *feedProgress) get(n model.Notification) *progress {
	k := feedKey{userID: n.UserID, link: n.FeedLink}
	p, ok := f.byFeed[k]
	if !ok {
		p = &progress{}
		f.byFeed[k] = p
		f.order = append(f.order, k)
	}
	return p
}

func (f *feedProgress) done(n model.Notification) {
	p := f.get(n)
	if n.Horizon.After(p.horizon) {
		p.horizon = n.Horizon
	}
}

func (f *feedProgress) fail(n model.Notification) {
	f.get(n).failed = true
}

// Format renders the message text of a notification.
func Format(n model.Notification) string {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		return n.Link
	}
	return title + "\n\n" + n.Link
}
