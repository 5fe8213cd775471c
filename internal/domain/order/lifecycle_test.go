package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaro/checkout/internal/domain/cart"
	"github.com/bazaro/checkout/internal/notify"
)

// --- Helpers ---

var lifecycleTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type lifecycleEnv struct {
	lifecycle *Lifecycle
	users     *mockUserRepo
	promos    *mockPromoRepo
	orders    *mockOrderRepo
	products  *mockProductCounter
	notifier  *mockNotifier
}

func newLifecycleEnv(orders ...*Order) *lifecycleEnv {
	env := &lifecycleEnv{
		users:    newMockUserRepo(),
		promos:   newMockPromoRepo(),
		orders:   newMockOrderRepo(orders...),
		products: newMockProductCounter(),
		notifier: &mockNotifier{},
	}
	env.lifecycle = NewLifecycle(env.orders, env.users, env.promos, env.products, env.notifier)
	env.lifecycle.now = func() time.Time { return lifecycleTime }
	return env
}

func strPtr(s string) *string { return &s }

func pendingOrder(id string) *Order {
	return &Order{
		ID:       id,
		Status:   StatusPending,
		UserID:   strPtr("u1"),
		SubTotal: decimal.NewFromInt(3000),
		Total:    decimal.NewFromInt(3000),
		Items: []cart.Item{
			{ProductID: "prod-1", Count: 2},
			{ProductID: "prod-2", Count: 1},
		},
	}
}

// --- Tests ---

func TestActivate_DraftToPending(t *testing.T) {
	o := pendingOrder("o1")
	o.Status = StatusDraft
	env := newLifecycleEnv(o)

	err := env.lifecycle.Activate(context.Background(), "o1", userActor("u1"))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
}

func TestActivate_OnlyFromDraft(t *testing.T) {
	env := newLifecycleEnv(pendingOrder("o1"))

	err := env.lifecycle.Activate(context.Background(), "o1", userActor("u1"))
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, StatusPending, env.orders.orders["o1"].Status)
}

func TestReview_NotifiesAdmin(t *testing.T) {
	env := newLifecycleEnv(pendingOrder("o1"))

	err := env.lifecycle.Review(context.Background(), "o1", userActor("u1"))
	require.NoError(t, err)

	assert.Equal(t, StatusReview, env.orders.orders["o1"].Status)
	require.Len(t, env.notifier.admin, 1)
	assert.Equal(t, notify.EventOrderInReview, env.notifier.admin[0].Event)
}

func TestCancel_RestoresExactUsedBonuses(t *testing.T) {
	o := pendingOrder("o1")
	o.UsedBonuses = 400
	o.ReceivingBonuses = 30
	env := newLifecycleEnv(o)
	env.users.points["u1"] = 100

	err := env.lifecycle.Cancel(context.Background(), "o1", userActor("u1"), "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, StatusCanceled, o.Status)
	assert.Equal(t, "changed my mind", o.CancelReason)
	assert.False(t, o.CanceledByAdmin)
	require.NotNil(t, o.CanceledAt)
	assert.Equal(t, lifecycleTime, *o.CanceledAt)

	// Exactly the redeemed points come back; the never-accrued receiving
	// bonuses do not.
	assert.Equal(t, int64(500), env.users.points["u1"])
}

func TestCancel_ReleasesPromoUsage(t *testing.T) {
	o := pendingOrder("o1")
	o.PromoID = strPtr("p1")
	env := newLifecycleEnv(o)

	err := env.lifecycle.Cancel(context.Background(), "o1", userActor("u1"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, env.promos.deletedOrders)
}

func TestCancel_CountsUserOnlyWhenBonusesWereRedeemed(t *testing.T) {
	// No bonuses redeemed: the registered owner's counter stays put.
	o := pendingOrder("o1")
	env := newLifecycleEnv(o)

	err := env.lifecycle.Cancel(context.Background(), "o1", userActor("u1"), "")
	require.NoError(t, err)
	assert.Zero(t, env.users.userCanceled["u1"])

	// With redeemed bonuses the counter moves.
	o2 := pendingOrder("o2")
	o2.UsedBonuses = 100
	env2 := newLifecycleEnv(o2)
	env2.users.points["u1"] = 0

	err = env2.lifecycle.Cancel(context.Background(), "o2", userActor("u1"), "")
	require.NoError(t, err)
	assert.Equal(t, 1, env2.users.userCanceled["u1"])
}

func TestCancel_CountsGuestUnconditionally(t *testing.T) {
	o := pendingOrder("o1")
	o.UserID = nil
	o.GuestID = strPtr("g1")
	env := newLifecycleEnv(o)

	err := env.lifecycle.Cancel(context.Background(), "o1", guestActor("g1"), "")
	require.NoError(t, err)
	assert.Equal(t, 1, env.users.guestCanceled["g1"])
}

func TestCancel_CustomerNotifiesAdmin(t *testing.T) {
	env := newLifecycleEnv(pendingOrder("o1"))

	err := env.lifecycle.Cancel(context.Background(), "o1", userActor("u1"), "")
	require.NoError(t, err)

	require.Len(t, env.notifier.admin, 1)
	assert.Equal(t, notify.EventOrderCanceled, env.notifier.admin[0].Event)
	assert.Empty(t, env.notifier.customer)
}

func TestCancel_AdminNotifiesCustomer(t *testing.T) {
	o := pendingOrder("o1")
	env := newLifecycleEnv(o)

	admin := userActor("admin-1")
	admin.Admin = true
	err := env.lifecycle.Cancel(context.Background(), "o1", admin, "out of stock")
	require.NoError(t, err)

	assert.True(t, o.CanceledByAdmin)
	require.Len(t, env.notifier.customer, 1)
	assert.Equal(t, notify.EventOrderCancelInfo, env.notifier.customer[0].Event)
	assert.Equal(t, "u1", env.notifier.customer[0].UserID)
	assert.Empty(t, env.notifier.admin)
}

func TestCancel_CustomerCannotCancelFromReview(t *testing.T) {
	o := pendingOrder("o1")
	o.Status = StatusReview
	o.UsedBonuses = 400
	env := newLifecycleEnv(o)
	env.users.points["u1"] = 100

	err := env.lifecycle.Cancel(context.Background(), "o1", userActor("u1"), "")
	require.ErrorIs(t, err, ErrIllegalTransition)

	// Precondition violation: nothing moved.
	assert.Equal(t, StatusReview, o.Status)
	assert.Equal(t, int64(100), env.users.points["u1"])
	assert.Zero(t, env.users.userCanceled["u1"])
}

func TestCancel_AdminCanCancelFromReview(t *testing.T) {
	o := pendingOrder("o1")
	o.Status = StatusReview
	env := newLifecycleEnv(o)

	admin := userActor("admin-1")
	admin.Admin = true
	err := env.lifecycle.Cancel(context.Background(), "o1", admin, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, o.Status)
}

func TestCancel_NonOwnerRejected(t *testing.T) {
	env := newLifecycleEnv(pendingOrder("o1"))

	err := env.lifecycle.Cancel(context.Background(), "o1", userActor("u2"), "")
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, StatusPending, env.orders.orders["o1"].Status)
}

func TestCancel_TerminalStatesRejected(t *testing.T) {
	admin := userActor("admin-1")
	admin.Admin = true

	for _, status := range []Status{StatusFinished, StatusCanceled} {
		o := pendingOrder("o1")
		o.Status = status
		env := newLifecycleEnv(o)

		err := env.lifecycle.Cancel(context.Background(), "o1", admin, "")
		require.ErrorIsf(t, err, ErrIllegalTransition, "cancel from %s", status)
		assert.Equal(t, status, o.Status)
	}
}

func TestFinish_AdminOnly(t *testing.T) {
	env := newLifecycleEnv(pendingOrder("o1"))

	err := env.lifecycle.Finish(context.Background(), "o1", userActor("u1"))
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, StatusPending, env.orders.orders["o1"].Status)
}

func TestFinish_AccruesBonusesAndCounts(t *testing.T) {
	o := pendingOrder("o1")
	o.ReceivingBonuses = 30
	env := newLifecycleEnv(o)
	env.users.points["u1"] = 100

	admin := userActor("admin-1")
	admin.Admin = true
	err := env.lifecycle.Finish(context.Background(), "o1", admin)
	require.NoError(t, err)

	assert.Equal(t, StatusFinished, o.Status)
	require.NotNil(t, o.FinishedAt)
	assert.Equal(t, lifecycleTime, *o.FinishedAt)

	assert.Equal(t, int64(130), env.users.points["u1"])
	assert.Equal(t, 1, env.users.userOrders["u1"])

	require.Len(t, env.notifier.customer, 1)
	assert.Equal(t, notify.EventOrderFinished, env.notifier.customer[0].Event)
}

// The bought counter moves by one per product line regardless of quantity,
// and duplicate lines for the same product count once.
func TestFinish_CountsPurchasesOncePerProduct(t *testing.T) {
	o := pendingOrder("o1")
	o.Items = []cart.Item{
		{ProductID: "prod-1", Count: 5},
		{ProductID: "prod-1", Count: 2},
		{ProductID: "prod-2", Count: 1},
	}
	env := newLifecycleEnv(o)

	admin := userActor("admin-1")
	admin.Admin = true
	err := env.lifecycle.Finish(context.Background(), "o1", admin)
	require.NoError(t, err)

	assert.Equal(t, 1, env.products.bought["prod-1"])
	assert.Equal(t, 1, env.products.bought["prod-2"])
}

func TestFinish_FromReview(t *testing.T) {
	o := pendingOrder("o1")
	o.Status = StatusReview
	env := newLifecycleEnv(o)

	admin := userActor("admin-1")
	admin.Admin = true
	err := env.lifecycle.Finish(context.Background(), "o1", admin)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, o.Status)
}

func TestFinish_GuestGetsNoBonuses(t *testing.T) {
	o := pendingOrder("o1")
	o.UserID = nil
	o.GuestID = strPtr("g1")
	o.ReceivingBonuses = 30
	env := newLifecycleEnv(o)

	admin := userActor("admin-1")
	admin.Admin = true
	err := env.lifecycle.Finish(context.Background(), "o1", admin)
	require.NoError(t, err)

	assert.Empty(t, env.users.points)
	assert.Equal(t, 1, env.users.guestOrders["g1"])
	assert.Empty(t, env.notifier.customer)
}

func TestLifecycle_UnknownOrder(t *testing.T) {
	env := newLifecycleEnv()

	err := env.lifecycle.Cancel(context.Background(), "missing", userActor("u1"), "")
	require.ErrorIs(t, err, ErrNotFound)
}
