package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaro/checkout/internal/domain/cart"
	"github.com/bazaro/checkout/internal/domain/delivery"
	"github.com/bazaro/checkout/internal/domain/pricing"
	"github.com/bazaro/checkout/internal/domain/promo"
	"github.com/bazaro/checkout/internal/domain/user"
	"github.com/bazaro/checkout/internal/locale"
	"github.com/bazaro/checkout/internal/notify"
)

// --- Mock implementations ---

type mockUserRepo struct {
	points map[string]int64

	// Any id resolves unless listed here; unverified guests resolve with
	// Verified unset.
	missing    map[string]struct{}
	unverified map[string]struct{}

	userCanceled  map[string]int
	guestCanceled map[string]int
	userOrders    map[string]int
	guestOrders   map[string]int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		points:        make(map[string]int64),
		missing:       make(map[string]struct{}),
		unverified:    make(map[string]struct{}),
		userCanceled:  make(map[string]int),
		guestCanceled: make(map[string]int),
		userOrders:    make(map[string]int),
		guestOrders:   make(map[string]int),
	}
}

func (m *mockUserRepo) GetUser(_ context.Context, id string) (*user.User, error) {
	if _, ok := m.missing[id]; ok {
		return nil, user.ErrNotFound
	}
	return &user.User{ID: id, Points: m.points[id]}, nil
}

func (m *mockUserRepo) GetGuest(_ context.Context, id string) (*user.Guest, error) {
	if _, ok := m.missing[id]; ok {
		return nil, user.ErrNotFound
	}
	_, unverified := m.unverified[id]
	return &user.Guest{ID: id, Verified: !unverified}, nil
}

func (m *mockUserRepo) DebitPoints(_ context.Context, userID string, amount int64) error {
	if m.points[userID] < amount {
		return user.ErrInsufficientPoints
	}
	m.points[userID] -= amount
	return nil
}

func (m *mockUserRepo) CreditPoints(_ context.Context, userID string, amount int64) error {
	m.points[userID] += amount
	return nil
}

func (m *mockUserRepo) IncrementUserOrderCount(_ context.Context, id string) error {
	m.userOrders[id]++
	return nil
}

func (m *mockUserRepo) IncrementUserCanceledCount(_ context.Context, id string) error {
	m.userCanceled[id]++
	return nil
}

func (m *mockUserRepo) IncrementGuestOrderCount(_ context.Context, id string) error {
	m.guestOrders[id]++
	return nil
}

func (m *mockUserRepo) IncrementGuestCanceledCount(_ context.Context, id string) error {
	m.guestCanceled[id]++
	return nil
}

type mockPromoRepo struct {
	codes map[string]*promo.Code

	usagesByActor map[string]int32
	usages        []*promo.UsageRecord
	deletedOrders []string
	increments    int
}

func newMockPromoRepo(codes ...*promo.Code) *mockPromoRepo {
	byCode := make(map[string]*promo.Code, len(codes))
	for _, c := range codes {
		byCode[c.Code] = c
	}
	return &mockPromoRepo{codes: byCode, usagesByActor: make(map[string]int32)}
}

func (m *mockPromoRepo) FindByCode(_ context.Context, code string) (*promo.Code, error) {
	c, ok := m.codes[code]
	if !ok {
		return nil, promo.ErrNotFound
	}
	return c, nil
}

func (m *mockPromoRepo) Create(_ context.Context, _ *promo.Code) error { return nil }
func (m *mockPromoRepo) SoftDelete(_ context.Context, _ string) error  { return nil }

func (m *mockPromoRepo) CountUsagesByActor(_ context.Context, promoID string, actor user.Actor) (int32, error) {
	return m.usagesByActor[promoID+"/"+actor.ID], nil
}

// IncrementUsed mirrors the conditional-update semantics of the real
// repository: the shared counter never exceeds the limit.
func (m *mockPromoRepo) IncrementUsed(_ context.Context, promoID string) error {
	for _, c := range m.codes {
		if c.ID != promoID {
			continue
		}
		if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
			return promo.ErrExhausted
		}
		c.UsedCount++
		if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
			c.Deprecated = true
		}
		m.increments++
		return nil
	}
	return promo.ErrNotFound
}

func (m *mockPromoRepo) CreateUsage(_ context.Context, rec *promo.UsageRecord) error {
	m.usages = append(m.usages, rec)
	actorID := ""
	if rec.UserID != nil {
		actorID = *rec.UserID
	}
	if rec.GuestID != nil {
		actorID = *rec.GuestID
	}
	m.usagesByActor[rec.PromoID+"/"+actorID]++
	return nil
}

func (m *mockPromoRepo) DeleteUsageByOrder(_ context.Context, orderID string) error {
	m.deletedOrders = append(m.deletedOrders, orderID)
	return nil
}

type mockOrderRepo struct {
	orders    map[string]*Order
	addresses []*Address
	statuses  []Status
}

func newMockOrderRepo(orders ...*Order) *mockOrderRepo {
	byID := make(map[string]*Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	return &mockOrderRepo{orders: byID}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrderRepo) Get(_ context.Context, id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) CreateAddress(_ context.Context, a *Address) error {
	m.addresses = append(m.addresses, a)
	return nil
}

func (m *mockOrderRepo) SetStatus(_ context.Context, id string, s Status) error {
	m.statuses = append(m.statuses, s)
	m.orders[id].Status = s
	return nil
}

func (m *mockOrderRepo) MarkCanceled(_ context.Context, id string, stamp CancelStamp) error {
	o := m.orders[id]
	o.Status = StatusCanceled
	o.CanceledAt = &stamp.At
	o.CanceledBy = &stamp.ActorID
	o.CanceledByAdmin = stamp.ByAdmin
	o.CancelReason = stamp.Reason
	return nil
}

func (m *mockOrderRepo) MarkFinished(_ context.Context, id string, stamp FinishStamp) error {
	o := m.orders[id]
	o.Status = StatusFinished
	o.FinishedAt = &stamp.At
	o.FinishedBy = &stamp.ActorID
	return nil
}

type mockProductCounter struct {
	bought map[string]int
}

func newMockProductCounter() *mockProductCounter {
	return &mockProductCounter{bought: make(map[string]int)}
}

func (m *mockProductCounter) IncrementBought(_ context.Context, ids []string) error {
	for _, id := range ids {
		m.bought[id]++
	}
	return nil
}

type mockNotifier struct {
	admin    []notify.Message
	customer []notify.Message
}

func (m *mockNotifier) NotifyAdmin(_ context.Context, msg notify.Message) {
	m.admin = append(m.admin, msg)
}

func (m *mockNotifier) NotifyCustomer(_ context.Context, msg notify.Message) {
	m.customer = append(m.customer, msg)
}

// --- Helpers ---

type checkoutEnv struct {
	svc      *Service
	users    *mockUserRepo
	promos   *mockPromoRepo
	orders   *mockOrderRepo
	notifier *mockNotifier
}

func newCheckoutEnv(codes ...*promo.Code) *checkoutEnv {
	users := newMockUserRepo()
	promos := newMockPromoRepo(codes...)
	orders := newMockOrderRepo()
	notifier := &mockNotifier{}

	zones := staticZoneResolver{zone: delivery.Zone{
		ID:            "z1",
		Price:         decimal.NewFromInt(500),
		FreeFromPrice: decimal.NewFromInt(10000),
	}}
	aggregator := pricing.NewAggregator(zones, promo.NewEvaluator(promos))

	return &checkoutEnv{
		svc:      NewService(aggregator, promos, users, orders, notifier),
		users:    users,
		promos:   promos,
		orders:   orders,
		notifier: notifier,
	}
}

type staticZoneResolver struct {
	zone delivery.Zone
}

func (s staticZoneResolver) ResolveZone(_ context.Context, _ delivery.Point) (*delivery.Zone, error) {
	z := s.zone
	return &z, nil
}

func checkoutCart(total int64) cart.Result {
	return cart.Result{
		SubTotal: decimal.NewFromInt(total),
		Total:    decimal.NewFromInt(total),
		Bonus:    total / 100,
		Items: []cart.Item{
			{ProductID: "prod-1", Price: decimal.NewFromInt(total), Count: 1},
		},
	}
}

func userActor(id string) user.Actor  { return user.Actor{Kind: user.KindUser, ID: id} }
func guestActor(id string) user.Actor { return user.Actor{Kind: user.KindGuest, ID: id} }

func requireRuleKey(t *testing.T, err error, key locale.Key) {
	t.Helper()
	var rule *locale.RuleError
	require.ErrorAs(t, err, &rule)
	assert.Equal(t, key, rule.Key)
}

// --- Tests ---

func TestCheckout_CashOrderStartsPending(t *testing.T) {
	env := newCheckoutEnv()

	o, err := env.svc.Checkout(context.Background(), CheckoutRequest{
		Actor:         userActor("u1"),
		Cart:          checkoutCart(3000),
		Method:        delivery.MethodPickup,
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	require.NotNil(t, o.UserID)
	assert.Equal(t, "u1", *o.UserID)
	assert.Nil(t, o.GuestID)

	stored, err := env.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)

	require.Len(t, env.notifier.admin, 1)
	assert.Equal(t, notify.EventOrderPlaced, env.notifier.admin[0].Event)
}

func TestCheckout_CardOrderStartsDraft(t *testing.T) {
	env := newCheckoutEnv()

	o, err := env.svc.Checkout(context.Background(), CheckoutRequest{
		Actor:         userActor("u1"),
		Cart:          checkoutCart(3000),
		Method:        delivery.MethodPickup,
		PaymentMethod: PaymentCard,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, o.Status)
}

func TestCheckout_RequiresIdentity(t *testing.T) {
	env := newCheckoutEnv()

	_, err := env.svc.Checkout(context.Background(), CheckoutRequest{
		Cart:          checkoutCart(3000),
		Method:        delivery.MethodPickup,
		PaymentMethod: PaymentCash,
	})
	require.Error(t, err)
}

func TestCheckout_UnknownUserRejected(t *testing.T) {
	env := newCheckoutEnv()
	env.users.missing["ghost"] = struct{}{}

	_, err := env.svc.Checkout(context.Background(), CheckoutRequest{
		Actor:         userActor("ghost"),
		Cart:          checkoutCart(3000),
		Method:        delivery.MethodPickup,
		PaymentMethod: PaymentCash,
	})
	require.ErrorIs(t, err, user.ErrNotFound)
	assert.Empty(t, env.orders.orders, "no order may be created for an unknown customer")
}

func TestCheckout_VerifiedGuestAllowed(t *testing.T) {
	env := newCheckoutEnv()

	o, err := env.svc.Checkout(context.Background(), CheckoutRequest{
		Actor:         guestActor("g1"),
		Cart:          checkoutCart(3000),
		Method:        delivery.MethodPickup,
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)
	require.NotNil(t, o.GuestID)
	assert.Equal(t, "g1", *o.GuestID)
}

func TestCheckout_UnverifiedGuestRejected(t *testing.T) {
	env := newCheckoutEnv()
	env.users.unverified["g1"] = struct{}{}

	_, err := env.svc.Checkout(context.Background(), CheckoutRequest{
		Actor:         guestActor("g1"),
		Cart:          checkoutCart(3000),
		Method:        delivery.MethodPickup,
		PaymentMethod: PaymentCash,
	})
	requireRuleKey(t, err, locale.GuestNotVerified)
	assert.Empty(t, env.orders.orders)
}

func TestCheckout_DebitsBonusPoints(t *testing.T) {
	env := newCheckoutEnv()
	env.users.points["u1"] = 1000

	o, err := env.svc.Checkout(context.Background(), CheckoutRequest{
		Actor:         userActor("u1"),
		Cart:          checkoutCart(3000),
		Method:        delivery.MethodPickup,
		Bonuses:       400,
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(400), o.UsedBonuses)
	assert.Equal(t, int64(600), env.users.points["u1"])
}

func TestCheckout_InsufficientPoints(t *testing.T) {
	env := newCheckoutEnv()
	env.users.points["u1"] = 100

	_, err := env.svc.Checkout(context.Background(), CheckoutRequest{
		Actor:         userActor("u1"),
		Cart:          checkoutCart(3000),
		Method:        delivery.MethodPickup,
		Bonuses:       400,
		PaymentMethod: PaymentCash,
	})
	requireRuleKey(t, err, locale.BonusInsufficient)
	assert.Empty(t, env.orders.orders, "no order may be created after a failed debit")
}

func TestCheckout_PromoRecordsUsage(t *testing.T) {
	limit := int32(5)
	code := &promo.Code{
		ID: "p1", Code: "OFF500", Type: promo.TypeFixed,
		Amount: decimal.NewFromInt(500), UsageLimit: &limit,
	}
	env := newCheckoutEnv(code)

	o, err := env.svc.Checkout(context.Background(), CheckoutRequest{
		Actor:         userActor("u1"),
		Cart:          checkoutCart(3000),
		Method:        delivery.MethodPickup,
		PromoCode:     "off-500",
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(500).Equal(o.PromoDiscount))
	require.NotNil(t, o.PromoID)
	assert.Equal(t, "p1", *o.PromoID)
	assert.Equal(t, int32(1), code.UsedCount)

	require.Len(t, env.promos.usages, 1)
	rec := env.promos.usages[0]
	assert.Equal(t, "p1", rec.PromoID)
	assert.Equal(t, o.ID, rec.OrderID)
	require.NotNil(t, rec.UserID)
	assert.Equal(t, "u1", *rec.UserID)
}

func TestCheckout_UnknownPromoCode(t *testing.T) {
	env := newCheckoutEnv()

	_, err := env.svc.Checkout(context.Background(), CheckoutRequest{
		Actor:         userActor("u1"),
		Cart:          checkoutCart(3000),
		Method:        delivery.MethodPickup,
		PromoCode:     "NOSUCH",
		PaymentMethod: PaymentCash,
	})
	requireRuleKey(t, err, locale.PromoNotFound)
}

// A code too short to normalize is indistinguishable from an unknown code.
func TestCheckout_TooShortPromoCode(t *testing.T) {
	env := newCheckoutEnv()

	_, err := env.svc.Checkout(context.Background(), CheckoutRequest{
		Actor:         userActor("u1"),
		Cart:          checkoutCart(3000),
		Method:        delivery.MethodPickup,
		PromoCode:     "a-b",
		PaymentMethod: PaymentCash,
	})
	requireRuleKey(t, err, locale.PromoNotFound)
}

// The usage limit is one shared budget: a redemption by any actor drains it
// for everyone, so a single-use code redeemed by one customer is exhausted
// for a different customer too.
func TestPromoUsage_GlobalCounterSharedAcrossActors(t *testing.T) {
	limit := int32(1)
	code := &promo.Code{
		ID: "p1", Code: "ONCE1", Type: promo.TypeFixed,
		Amount: decimal.NewFromInt(100), UsageLimit: &limit,
	}
	env := newCheckoutEnv(code)

	_, err := env.svc.Checkout(context.Background(), CheckoutRequest{
		Actor:         userActor("u1"),
		Cart:          checkoutCart(3000),
		Method:        delivery.MethodPickup,
		PromoCode:     "ONCE1",
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)

	_, err = env.svc.Checkout(context.Background(), CheckoutRequest{
		Actor:         userActor("u2"),
		Cart:          checkoutCart(3000),
		Method:        delivery.MethodPickup,
		PromoCode:     "ONCE1",
		PaymentMethod: PaymentCash,
	})
	requireRuleKey(t, err, locale.PromoExhausted)
	assert.Equal(t, 1, env.promos.increments)
}

func TestCheckout_WritesAddressSnapshots(t *testing.T) {
	env := newCheckoutEnv()

	o, err := env.svc.Checkout(context.Background(), CheckoutRequest{
		Actor:           userActor("u1"),
		Cart:            checkoutCart(3000),
		Method:          delivery.MethodCourier,
		Destination:     &delivery.Point{Lat: 40.18, Lng: 44.51},
		DeliveryAddress: &Address{City: "Yerevan", Street: "Abovyan"},
		BillingAddress:  &Address{City: "Yerevan", Street: "Teryan"},
		PaymentMethod:   PaymentCash,
	})
	require.NoError(t, err)

	require.NotNil(t, o.DeliveryAddressID)
	require.NotNil(t, o.BillingAddressID)
	require.Len(t, env.orders.addresses, 2)

	kinds := map[AddressKind]bool{}
	for _, a := range env.orders.addresses {
		kinds[a.Kind] = true
		assert.NotEmpty(t, a.ID)
	}
	assert.True(t, kinds[AddressDelivery])
	assert.True(t, kinds[AddressBilling])
}

func TestCheckout_FrozenTotals(t *testing.T) {
	env := newCheckoutEnv()

	o, err := env.svc.Checkout(context.Background(), CheckoutRequest{
		Actor:         userActor("u1"),
		Cart:          checkoutCart(3000),
		Method:        delivery.MethodCourier,
		Destination:   &delivery.Point{Lat: 40.18, Lng: 44.51},
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)

	want := o.SubTotal.Sub(o.Discount).Add(o.DeliveryFee).Sub(o.PromoDiscount)
	assert.Truef(t, want.Equal(o.Total), "want %s, got %s", want, o.Total)
	assert.Equal(t, int64(30), o.ReceivingBonuses)
}

func TestPreview_PersistsNothing(t *testing.T) {
	limit := int32(5)
	code := &promo.Code{
		ID: "p1", Code: "OFF500", Type: promo.TypeFixed,
		Amount: decimal.NewFromInt(500), UsageLimit: &limit,
	}
	env := newCheckoutEnv(code)
	env.users.points["u1"] = 1000

	q, err := env.svc.Preview(context.Background(), CheckoutRequest{
		Actor:         userActor("u1"),
		Cart:          checkoutCart(3000),
		Method:        delivery.MethodPickup,
		PromoCode:     "OFF500",
		Bonuses:       400,
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(500).Equal(q.PromoDiscount))
	assert.Equal(t, int64(400), q.UsedBonuses)

	assert.Equal(t, int64(1000), env.users.points["u1"], "preview must not debit points")
	assert.Equal(t, int32(0), code.UsedCount, "preview must not touch the usage counter")
	assert.Empty(t, env.orders.orders)
	assert.Empty(t, env.promos.usages)
}
