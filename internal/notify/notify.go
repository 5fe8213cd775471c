// Package notify defines the dispatch boundary to the notification
// collaborator. Rendering and delivery of the actual messages is external;
// the core only emits typed events.
package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Event tags the kind of notification to dispatch.
type Event string

const (
	EventOrderPlaced     Event = "order_placed"
	EventOrderInReview   Event = "order_in_review"
	EventOrderCanceled   Event = "order_canceled"
	EventOrderFinished   Event = "order_finished"
	EventOrderCancelInfo Event = "order_cancel_info"
)

// Message carries the event and the ids the collaborator needs to render it.
type Message struct {
	Event   Event
	OrderID string
	// UserID or GuestID identifies the customer recipient when the message
	// targets the customer rather than the administrative channel.
	UserID  string
	GuestID string
}

// Notifier dispatches notifications. Dispatch failures are logged by
// implementations and never fail the surrounding operation.
type Notifier interface {
	NotifyAdmin(ctx context.Context, msg Message)
	NotifyCustomer(ctx context.Context, msg Message)
}

// LogNotifier is a Notifier that records dispatches in the structured log.
// It stands in for the real delivery collaborator in development and tests.
type LogNotifier struct{}

func (LogNotifier) NotifyAdmin(ctx context.Context, msg Message) {
	zctx.From(ctx).Info("notify admin",
		zap.String("event", string(msg.Event)),
		zap.String("order_id", msg.OrderID),
	)
}

func (LogNotifier) NotifyCustomer(ctx context.Context, msg Message) {
	zctx.From(ctx).Info("notify customer",
		zap.String("event", string(msg.Event)),
		zap.String("order_id", msg.OrderID),
		zap.String("user_id", msg.UserID),
		zap.String("guest_id", msg.GuestID),
	)
}
