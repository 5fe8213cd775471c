package order

import "github.com/go-faster/errors"

// Transition names a lifecycle state change.
type Transition string

const (
	// TransitionActivate moves a draft to pending once payment capture is
	// reported.
	TransitionActivate Transition = "activate"
	// TransitionReview flags a pending order for manual attention.
	TransitionReview Transition = "review"
	TransitionCancel Transition = "cancel"
	TransitionFinish Transition = "finish"
)

// Effect enumerates the side effects a transition triggers. Effects are
// listed once per table row and executed in order by the lifecycle service;
// several are conditional on the order's contents (bonuses redeemed, promo
// used, owner kind) and the acting party.
type Effect int

const (
	// EffectNotifyAdmin notifies the administrative channel.
	EffectNotifyAdmin Effect = iota
	// EffectStampCancel sets the cancellation reason, actor, and timestamp.
	EffectStampCancel
	// EffectRestoreBonuses refunds redeemed points to a registered owner.
	EffectRestoreBonuses
	// EffectCountCancel increments the owner's canceled-order counter.
	EffectCountCancel
	// EffectReleasePromo deletes the promo usage record so the actor may
	// reuse the code. The code's shared used counter is left untouched.
	EffectReleasePromo
	// EffectNotifyCancel notifies the admin channel when the customer
	// canceled, or the customer when an administrator did.
	EffectNotifyCancel
	// EffectStampFinish sets the finish timestamp and actor.
	EffectStampFinish
	// EffectAccrueBonuses credits the order's receiving bonuses to a
	// registered owner and notifies them.
	EffectAccrueBonuses
	// EffectCountFinish increments the owner's finished-order counter.
	EffectCountFinish
	// EffectCountPurchases bumps the bought counter on every purchased
	// product line, once per order regardless of quantity.
	EffectCountPurchases
)

// ErrIllegalTransition marks an attempt to run a transition the current
// status does not permit, or one the actor has no right to trigger. It is a
// precondition violation: nothing is mutated.
var ErrIllegalTransition = errors.New("illegal order transition")

// rule is one row of the transition table.
type rule struct {
	next Status
	// customerAllowed permits the owning customer to trigger the
	// transition. Administrators may trigger every listed transition.
	customerAllowed bool
	effects         []Effect
}

// transitions maps (current status, transition) to the next status and the
// side effects to apply. This is the single authoritative enumeration of
// the lifecycle; no transition is legal unless listed here.
var transitions = map[Status]map[Transition]rule{
	StatusDraft: {
		TransitionActivate: {next: StatusPending, customerAllowed: true},
	},
	StatusPending: {
		TransitionReview: {
			next:            StatusReview,
			customerAllowed: true,
			effects:         []Effect{EffectNotifyAdmin},
		},
		TransitionCancel: {
			next:            StatusCanceled,
			customerAllowed: true,
			effects: []Effect{
				EffectStampCancel, EffectRestoreBonuses, EffectCountCancel,
				EffectReleasePromo, EffectNotifyCancel,
			},
		},
		TransitionFinish: {
			next: StatusFinished,
			effects: []Effect{
				EffectStampFinish, EffectAccrueBonuses, EffectCountFinish,
				EffectCountPurchases,
			},
		},
	},
	StatusReview: {
		TransitionCancel: {
			next: StatusCanceled,
			effects: []Effect{
				EffectStampCancel, EffectRestoreBonuses, EffectCountCancel,
				EffectReleasePromo, EffectNotifyCancel,
			},
		},
		TransitionFinish: {
			next: StatusFinished,
			effects: []Effect{
				EffectStampFinish, EffectAccrueBonuses, EffectCountFinish,
				EffectCountPurchases,
			},
		},
	},
}

// lookup resolves the table row for (from, t). The current status is the
// first guard of every transition; the actor check comes second.
func lookup(from Status, t Transition, admin bool) (rule, error) {
	row, ok := transitions[from][t]
	if !ok {
		return rule{}, errors.Wrapf(ErrIllegalTransition, "%s from %s", t, from)
	}
	if !admin && !row.customerAllowed {
		return rule{}, errors.Wrapf(ErrIllegalTransition, "%s from %s requires administrator", t, from)
	}
	return row, nil
}
