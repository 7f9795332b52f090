// Package event delivers voucher lifecycle notifications.
package event

import (
	"context"
	"errors"
	"time"

	"vouchers/internal/model"

	"github.com/rs/zerolog"
)

// VoucherRedeemed is published after a redemption commits.
const VoucherRedeemed = "VoucherRedeemed"

// Event describes something that happened to a voucher.
type Event struct {
	Name        string         `json:"name"`
	UserID      string         `json:"userId"`
	VoucherCode string         `json:"voucherCode"`
	Relation    string         `json:"relation,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
	Voucher     *model.Voucher `json:"voucher,omitempty"`
}

// Notifier publishes events.
type Notifier interface {
	Publish(ctx context.Context, e Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event) error

func (f NotifierFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Nop discards events.
var Nop Notifier = NotifierFunc(func(context.Context, Event) error { return nil })

// logNotifier writes events to the log.
type logNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier that logs every event at info level.
func NewLogNotifier(logger zerolog.Logger) Notifier {
	return &logNotifier{logger: logger.With().Str("component", "event-log").Logger()}
}

func (n *logNotifier) Publish(ctx context.Context, e Event) error {
	n.logger.Info().
		Str("event", e.Name).
		Str("voucher_code", e.VoucherCode).
		Str("user_id", e.UserID).
		Time("occurred_at", e.OccurredAt).
		Msg("voucher event")
	return nil
}

// Multi publishes to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
