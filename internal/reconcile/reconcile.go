// Package reconcile implements the claim state machine that runs when a
// technician's device enters an emergency order's action screen. It makes
// server and device converge on who owns the order and stops further
// alerting for this technician/order pair.
package reconcile

import (
	"context"
	"log"
	"time"

	"sat-dispatch-backend/internal/session"
)

// State of a reconciliation run.
type State int

const (
	StateIdle State = iota
	StateVerifying
	StateGranted
	StateDenied
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateVerifying:
		return "verifying"
	case StateGranted:
		return "granted"
	case StateDenied:
		return "denied"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// ClaimOutcome is the decoded response of the clear-emergency call.
type ClaimOutcome struct {
	Granted            bool
	OwnedBySomeoneElse bool
	Message            string
}

// ClaimAPI performs the idempotent claim operation against the server.
type ClaimAPI interface {
	ClearEmergency(ctx context.Context, orderID string) (ClaimOutcome, error)
}

// Result is the terminal outcome of one screen entry.
type Result struct {
	State   State
	Message string // ownership attribution when denied
}

// RenderForm reports whether the screen may proceed to the order's form.
// A transient error degrades to access: blocking a technician from a real
// emergency over a network blip is worse than a rare double-claim.
func (r Result) RenderForm() bool {
	return r.State == StateGranted || r.State == StateErrored
}

// RedirectAway reports whether the user must be routed back to the listing.
func (r Result) RedirectAway() bool {
	return r.State == StateDenied
}

const defaultClaimTimeout = 15 * time.Second

// Reconciler drives Idle → Verifying → {Granted, Denied, Errored} on every
// screen entry. It holds no state between runs: a prior denial is never
// assumed permanent when a fresh signal routes the user back.
type Reconciler struct {
	api     ClaimAPI
	cell    *session.Cell
	timeout time.Duration

	// OnTransition, when set, observes every state change. The UI uses it
	// to block data entry while the claim is in flight.
	OnTransition func(State)
}

// New creates a reconciler. A non-positive timeout selects the default.
func New(api ClaimAPI, cell *session.Cell, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = defaultClaimTimeout
	}
	return &Reconciler{api: api, cell: cell, timeout: timeout}
}

// Enter runs the state machine for one entry into the order's action
// screen and returns the terminal result. The pending signal in the session
// cell is consumed by the entry regardless of outcome.
func (r *Reconciler) Enter(ctx context.Context, orderID string) Result {
	r.transition(StateIdle)
	r.transition(StateVerifying)

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	outcome, err := r.api.ClearEmergency(cctx, orderID)

	var res Result
	switch {
	case err != nil:
		log.Printf("Claim for order %s errored, proceeding degraded: %v", orderID, err)
		res = Result{State: StateErrored}
	case outcome.Granted:
		res = Result{State: StateGranted}
	case outcome.OwnedBySomeoneElse:
		res = Result{State: StateDenied, Message: outcome.Message}
	default:
		log.Printf("Claim for order %s returned neither grant nor conflict, proceeding degraded", orderID)
		res = Result{State: StateErrored}
	}

	r.cell.Set("")
	r.transition(res.State)
	return res
}

func (r *Reconciler) transition(s State) {
	if r.OnTransition != nil {
		r.OnTransition(s)
	}
}
