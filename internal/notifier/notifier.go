package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/telebot.v4"

	"skuwatch/internal/models"
)

// Sender is the slice of the telebot API the dispatcher needs.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Dispatcher is the notification capability consumed by the monitor
// service. Every method reports delivery success; the caller logs failures
// and moves on, it never escalates them.
type Dispatcher interface {
	ProductAlert(ctx context.Context, snap models.Snapshot, changes models.ChangeSet) bool
	SessionExpiredAlert(ctx context.Context) bool
	CycleErrorAlert(ctx context.Context, detail string) bool
	Startup(ctx context.Context, productNames []string) bool
}

// Notifier renders change-sets and out-of-band alerts into Telegram
// messages and delivers them with bounded retry.
type Notifier struct {
	log        *slog.Logger
	bot        Sender
	chat       telebot.Recipient
	retryCount int
	retryDelay time.Duration
	now        func() time.Time
}

// New connects to the Telegram bot API and returns a Notifier targeting the
// given chat.
func New(log *slog.Logger, token string, chatID int64, pollTimeout time.Duration, retryCount int, retryDelay time.Duration) (*Notifier, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: pollTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	log.Info("Authorized on account", "account", bot.Me.Username)

	return NewWithSender(log, bot, telebot.ChatID(chatID), retryCount, retryDelay), nil
}

// NewWithSender wires an existing transport; used by New and by tests.
func NewWithSender(log *slog.Logger, sender Sender, chat telebot.Recipient, retryCount int, retryDelay time.Duration) *Notifier {
	if retryCount < 1 {
		retryCount = 1
	}
	return &Notifier{
		log:        log,
		bot:        sender,
		chat:       chat,
		retryCount: retryCount,
		retryDelay: retryDelay,
		now:        time.Now,
	}
}

// ProductAlert delivers one message covering every change in the set, or
// the first-sighting summary when the product is new.
func (n *Notifier) ProductAlert(ctx context.Context, snap models.Snapshot, changes models.ChangeSet) bool {
	return n.deliver(ctx, renderProduct(snap, changes, n.now()))
}

// SessionExpiredAlert tells the operator the login session needs renewing.
func (n *Notifier) SessionExpiredAlert(ctx context.Context) bool {
	return n.deliver(ctx, renderSessionExpired(n.now()))
}

// CycleErrorAlert reports an unexpected cycle-level failure.
func (n *Notifier) CycleErrorAlert(ctx context.Context, detail string) bool {
	return n.deliver(ctx, renderCycleError(detail, n.now()))
}

// Startup announces the monitored product list once when the loop starts.
func (n *Notifier) Startup(ctx context.Context, productNames []string) bool {
	return n.deliver(ctx, renderStartup(productNames, n.now()))
}

// deliver sends the message, retrying on any transport or application-level
// failure with a fixed pause. Exhausting the attempts returns false; the
// message is dropped but never blocks the caller's state update.
func (n *Notifier) deliver(ctx context.Context, text string) bool {
	for attempt := 1; attempt <= n.retryCount; attempt++ {
		_, err := n.bot.Send(n.chat, text, telebot.ModeMarkdown)
		if err == nil {
			n.log.Debug("notification delivered", "attempt", attempt)
			return true
		}

		n.log.Warn("failed to send notification",
			"attempt", attempt, "of", n.retryCount, "error", err)

		if attempt < n.retryCount {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(n.retryDelay):
			}
		}
	}
	return false
}
