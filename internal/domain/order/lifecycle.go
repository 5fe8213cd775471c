package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bazaro/checkout/internal/domain/promo"
	"github.com/bazaro/checkout/internal/domain/user"
	"github.com/bazaro/checkout/internal/notify"
)

// Lifecycle executes the guarded transitions of the order state machine and
// their side effects. The transition table in transitions.go is the single
// source of truth for what is legal; Lifecycle only interprets it.
type Lifecycle struct {
	orders   Repository
	users    user.Repository
	promos   promo.Repository
	products ProductCounter
	notifier notify.Notifier
	now      func() time.Time
}

// NewLifecycle creates a Lifecycle with its persistence and notification
// dependencies.
func NewLifecycle(
	orders Repository,
	users user.Repository,
	promos promo.Repository,
	products ProductCounter,
	notifier notify.Notifier,
) *Lifecycle {
	return &Lifecycle{
		orders:   orders,
		users:    users,
		promos:   promos,
		products: products,
		notifier: notifier,
		now:      time.Now,
	}
}

// Activate moves a draft order to pending after payment capture is reported.
func (l *Lifecycle) Activate(ctx context.Context, orderID string, actor user.Actor) error {
	return l.apply(ctx, orderID, TransitionActivate, actor, "")
}

// Review flags a pending order for manual attention.
func (l *Lifecycle) Review(ctx context.Context, orderID string, actor user.Actor) error {
	return l.apply(ctx, orderID, TransitionReview, actor, "")
}

// Cancel cancels a pending or reviewed order. The owning customer may cancel
// only while pending; administrators may cancel from either state.
func (l *Lifecycle) Cancel(ctx context.Context, orderID string, actor user.Actor, reason string) error {
	return l.apply(ctx, orderID, TransitionCancel, actor, reason)
}

// Finish completes an order. Administrator only.
func (l *Lifecycle) Finish(ctx context.Context, orderID string, actor user.Actor) error {
	return l.apply(ctx, orderID, TransitionFinish, actor, "")
}

// apply loads the order, resolves the transition against the table, and
// executes the listed effects. The status check runs before any mutation;
// an unlisted transition or a forbidden actor leaves the order untouched.
func (l *Lifecycle) apply(ctx context.Context, orderID string, t Transition, actor user.Actor, reason string) error {
	o, err := l.orders.Get(ctx, orderID)
	if err != nil {
		return errors.Wrap(err, "get order")
	}

	row, err := lookup(o.Status, t, actor.Admin)
	if err != nil {
		return err
	}
	if !actor.Admin && !owns(o, actor) {
		return errors.Wrap(ErrIllegalTransition, "actor does not own the order")
	}

	if !hasStampEffect(row.effects) {
		if err := l.orders.SetStatus(ctx, o.ID, row.next); err != nil {
			return errors.Wrap(err, "set status")
		}
	}

	return l.runEffects(ctx, o, row.effects, actor, reason)
}

// runEffects executes the transition's side effects. The stamp effect runs
// first and gates the rest; the financial and counter writes that follow are
// independent of each other and are issued concurrently. Notifications go
// out last and never fail the transition.
func (l *Lifecycle) runEffects(ctx context.Context, o *Order, effects []Effect, actor user.Actor, reason string) error {
	now := l.now()

	g, gctx := errgroup.WithContext(ctx)
	var notifications []func()

	for _, eff := range effects {
		switch eff {
		case EffectStampCancel:
			stamp := CancelStamp{Reason: reason, ActorID: actor.ID, ByAdmin: actor.Admin, At: now}
			if err := l.orders.MarkCanceled(ctx, o.ID, stamp); err != nil {
				return errors.Wrap(err, "mark canceled")
			}

		case EffectStampFinish:
			stamp := FinishStamp{ActorID: actor.ID, At: now}
			if err := l.orders.MarkFinished(ctx, o.ID, stamp); err != nil {
				return errors.Wrap(err, "mark finished")
			}

		case EffectRestoreBonuses:
			if o.UsedBonuses > 0 && o.UserID != nil {
				uid := *o.UserID
				amount := o.UsedBonuses
				g.Go(func() error {
					if err := l.users.CreditPoints(gctx, uid, amount); err != nil {
						return errors.Wrap(err, "restore bonuses")
					}
					return nil
				})
			}

		case EffectCountCancel:
			// Registered owners are counted only when the cancellation
			// refunded bonus points; guests are counted unconditionally.
			switch {
			case o.UserID != nil && o.UsedBonuses > 0:
				uid := *o.UserID
				g.Go(func() error {
					if err := l.users.IncrementUserCanceledCount(gctx, uid); err != nil {
						return errors.Wrap(err, "count cancel")
					}
					return nil
				})
			case o.GuestID != nil:
				gid := *o.GuestID
				g.Go(func() error {
					if err := l.users.IncrementGuestCanceledCount(gctx, gid); err != nil {
						return errors.Wrap(err, "count cancel")
					}
					return nil
				})
			}

		case EffectReleasePromo:
			if o.PromoID != nil {
				g.Go(func() error {
					if err := l.promos.DeleteUsageByOrder(gctx, o.ID); err != nil {
						return errors.Wrap(err, "release promo usage")
					}
					return nil
				})
			}

		case EffectAccrueBonuses:
			if o.UserID != nil {
				uid := *o.UserID
				amount := o.ReceivingBonuses
				if amount > 0 {
					g.Go(func() error {
						if err := l.users.CreditPoints(gctx, uid, amount); err != nil {
							return errors.Wrap(err, "accrue bonuses")
						}
						return nil
					})
				}
				notifications = append(notifications, func() {
					l.notifier.NotifyCustomer(ctx, notify.Message{
						Event: notify.EventOrderFinished, OrderID: o.ID, UserID: uid,
					})
				})
			}

		case EffectCountFinish:
			switch {
			case o.UserID != nil:
				uid := *o.UserID
				g.Go(func() error {
					if err := l.users.IncrementUserOrderCount(gctx, uid); err != nil {
						return errors.Wrap(err, "count finish")
					}
					return nil
				})
			case o.GuestID != nil:
				gid := *o.GuestID
				g.Go(func() error {
					if err := l.users.IncrementGuestOrderCount(gctx, gid); err != nil {
						return errors.Wrap(err, "count finish")
					}
					return nil
				})
			}

		case EffectCountPurchases:
			ids := productIDs(o)
			if len(ids) > 0 {
				g.Go(func() error {
					if err := l.products.IncrementBought(gctx, ids); err != nil {
						return errors.Wrap(err, "count purchases")
					}
					return nil
				})
			}

		case EffectNotifyAdmin:
			notifications = append(notifications, func() {
				l.notifier.NotifyAdmin(ctx, notify.Message{
					Event: notify.EventOrderInReview, OrderID: o.ID,
				})
			})

		case EffectNotifyCancel:
			msg := notify.Message{Event: notify.EventOrderCanceled, OrderID: o.ID}
			if o.UserID != nil {
				msg.UserID = *o.UserID
			}
			if o.GuestID != nil {
				msg.GuestID = *o.GuestID
			}
			if actor.Admin {
				msg.Event = notify.EventOrderCancelInfo
				notifications = append(notifications, func() { l.notifier.NotifyCustomer(ctx, msg) })
			} else {
				notifications = append(notifications, func() { l.notifier.NotifyAdmin(ctx, msg) })
			}
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	for _, fire := range notifications {
		fire()
	}
	return nil
}

// owns reports whether the actor is the order's owner.
func owns(o *Order, actor user.Actor) bool {
	switch actor.Kind {
	case user.KindUser:
		return o.UserID != nil && *o.UserID == actor.ID
	case user.KindGuest:
		return o.GuestID != nil && *o.GuestID == actor.ID
	default:
		return false
	}
}

// hasStampEffect reports whether the effect list persists the status change
// itself (cancel and finish stamps set the status alongside their metadata).
func hasStampEffect(effects []Effect) bool {
	for _, e := range effects {
		if e == EffectStampCancel || e == EffectStampFinish {
			return true
		}
	}
	return false
}

// productIDs collects the distinct product ids on the order's lines.
func productIDs(o *Order) []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}
