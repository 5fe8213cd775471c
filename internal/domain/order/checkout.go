package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bazaro/checkout/internal/domain/cart"
	"github.com/bazaro/checkout/internal/domain/delivery"
	"github.com/bazaro/checkout/internal/domain/pricing"
	"github.com/bazaro/checkout/internal/domain/promo"
	"github.com/bazaro/checkout/internal/domain/user"
	"github.com/bazaro/checkout/internal/locale"
	"github.com/bazaro/checkout/internal/notify"
)

// CheckoutRequest is one checkout attempt: a priced cart plus the customer's
// delivery, promo, bonus, and payment choices.
type CheckoutRequest struct {
	Actor    user.Actor
	Language locale.Language

	Cart cart.Result

	Method          delivery.Method
	Destination     *delivery.Point
	DeliveryAddress *Address
	BillingAddress  *Address

	PromoCode string
	Bonuses   int64

	PaymentMethod PaymentMethod
}

// Service creates orders from checkout requests. Pricing is delegated to the
// aggregator; Service owns the financial mutations (ledger debit, promo
// counter) and the persistence fan-out.
type Service struct {
	aggregator *pricing.Aggregator
	promos     promo.Repository
	users      user.Repository
	orders     Repository
	notifier   notify.Notifier
	now        func() time.Time
}

// NewService creates a checkout Service.
func NewService(
	aggregator *pricing.Aggregator,
	promos promo.Repository,
	users user.Repository,
	orders Repository,
	notifier notify.Notifier,
) *Service {
	return &Service{
		aggregator: aggregator,
		promos:     promos,
		users:      users,
		orders:     orders,
		notifier:   notifier,
		now:        time.Now,
	}
}

// Preview runs a full pricing pass without persisting anything. It is also
// the promo-check path: the code is evaluated against the same fee-inclusive
// total it would see at checkout.
func (s *Service) Preview(ctx context.Context, req CheckoutRequest) (*pricing.Quote, error) {
	p, err := s.resolvePromo(ctx, req.PromoCode, req.Language)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Quote(ctx, pricing.Input{
		Cart:        req.Cart,
		Actor:       req.Actor,
		Language:    req.Language,
		Method:      req.Method,
		Destination: req.Destination,
		Promo:       p,
		Bonuses:     req.Bonuses,
	})
}

// Checkout prices the cart and creates the order. The point debit and the
// promo counter increment are atomic conditional updates and run before the
// order is written, so neither a balance nor a usage counter can go negative
// or be double-spent by concurrent requests. The address snapshots, and
// later the usage record and the placed notification, are independent
// writes issued concurrently; a partial failure among them is reported but
// not rolled back.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	if req.Actor.IsZero() || req.Actor.Kind == "" {
		return nil, errors.New("checkout requires a customer identity")
	}
	if err := s.verifyActor(ctx, req.Actor, req.Language); err != nil {
		return nil, err
	}

	p, err := s.resolvePromo(ctx, req.PromoCode, req.Language)
	if err != nil {
		return nil, err
	}

	quote, err := s.aggregator.Quote(ctx, pricing.Input{
		Cart:        req.Cart,
		Actor:       req.Actor,
		Language:    req.Language,
		Method:      req.Method,
		Destination: req.Destination,
		Promo:       p,
		Bonuses:     req.Bonuses,
	})
	if err != nil {
		return nil, err
	}

	// Financial preconditions land first, as conditional updates.
	if quote.UsedBonuses > 0 {
		err := s.users.DebitPoints(ctx, req.Actor.ID, quote.UsedBonuses)
		if errors.Is(err, user.ErrInsufficientPoints) {
			return nil, locale.NewError(req.Language, locale.BonusInsufficient)
		}
		if err != nil {
			return nil, errors.Wrap(err, "debit bonus points")
		}
	}
	if p != nil {
		err := s.promos.IncrementUsed(ctx, p.ID)
		if errors.Is(err, promo.ErrExhausted) {
			return nil, locale.NewError(req.Language, locale.PromoExhausted)
		}
		if err != nil {
			return nil, errors.Wrap(err, "redeem promo code")
		}
	}

	o := s.buildOrder(req, quote, p)

	if err := s.writeAddresses(ctx, o, req); err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	g, gctx := errgroup.WithContext(ctx)
	if p != nil {
		rec := usageRecord(o, p)
		g.Go(func() error {
			if err := s.promos.CreateUsage(gctx, rec); err != nil {
				return errors.Wrap(err, "create usage record")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.notifier.NotifyAdmin(ctx, notify.Message{Event: notify.EventOrderPlaced, OrderID: o.ID})
	return o, nil
}

func (s *Service) buildOrder(req CheckoutRequest, q *pricing.Quote, p *promo.Code) *Order {
	o := &Order{
		ID:               uuid.New().String(),
		Status:           StatusPending,
		SubTotal:         q.SubTotal,
		Discount:         q.Discount,
		DeliveryFee:      q.DeliveryFee,
		PromoDiscount:    q.PromoDiscount,
		UsedBonuses:      q.UsedBonuses,
		ReceivingBonuses: q.ReceivingBonuses,
		Total:            q.Total,
		Items:            req.Cart.Items,
		PaymentMethod:    req.PaymentMethod,
		DeliveryMethod:   req.Method,
		CreatedAt:        s.now(),
	}
	if req.PaymentMethod.RequiresCapture() {
		o.Status = StatusDraft
	}
	switch req.Actor.Kind {
	case user.KindUser:
		id := req.Actor.ID
		o.UserID = &id
	case user.KindGuest:
		id := req.Actor.ID
		o.GuestID = &id
	}
	if p != nil {
		pid := p.ID
		o.PromoID = &pid
	}
	return o
}

// writeAddresses snapshots the delivery and billing addresses concurrently
// and links them to the order.
func (s *Service) writeAddresses(ctx context.Context, o *Order, req CheckoutRequest) error {
	g, gctx := errgroup.WithContext(ctx)

	if req.DeliveryAddress != nil {
		a := *req.DeliveryAddress
		a.ID = uuid.New().String()
		a.Kind = AddressDelivery
		o.DeliveryAddressID = &a.ID
		g.Go(func() error {
			if err := s.orders.CreateAddress(gctx, &a); err != nil {
				return errors.Wrap(err, "create delivery address")
			}
			return nil
		})
	}
	if req.BillingAddress != nil {
		a := *req.BillingAddress
		a.ID = uuid.New().String()
		a.Kind = AddressBilling
		o.BillingAddressID = &a.ID
		g.Go(func() error {
			if err := s.orders.CreateAddress(gctx, &a); err != nil {
				return errors.Wrap(err, "create billing address")
			}
			return nil
		})
	}

	return g.Wait()
}

// verifyActor resolves the actor against the identity store before any
// mutation. Registered users must exist; guests must exist and have a
// verified email.
func (s *Service) verifyActor(ctx context.Context, actor user.Actor, lang locale.Language) error {
	switch actor.Kind {
	case user.KindUser:
		if _, err := s.users.GetUser(ctx, actor.ID); err != nil {
			return errors.Wrap(err, "verify user")
		}
	case user.KindGuest:
		g, err := s.users.GetGuest(ctx, actor.ID)
		if err != nil {
			return errors.Wrap(err, "verify guest")
		}
		if !g.Verified {
			return locale.NewError(lang, locale.GuestNotVerified)
		}
	}
	return nil
}

// resolvePromo normalizes and looks up a promo code. Any lookup miss,
// including a code too short to normalize, surfaces as the localized
// not-found rejection.
func (s *Service) resolvePromo(ctx context.Context, raw string, lang locale.Language) (*promo.Code, error) {
	if raw == "" {
		return nil, nil
	}
	code, err := promo.Normalize(raw)
	if err != nil {
		return nil, locale.NewError(lang, locale.PromoNotFound)
	}
	p, err := s.promos.FindByCode(ctx, code)
	if errors.Is(err, promo.ErrNotFound) {
		return nil, locale.NewError(lang, locale.PromoNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(err, "find promo code")
	}
	return p, nil
}

func usageRecord(o *Order, p *promo.Code) *promo.UsageRecord {
	return &promo.UsageRecord{
		ID:      uuid.New().String(),
		PromoID: p.ID,
		OrderID: o.ID,
		UserID:  o.UserID,
		GuestID: o.GuestID,
	}
}
