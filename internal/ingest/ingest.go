// Package ingest normalizes push notification deliveries into updates of the
// session cell, plus navigation when the user explicitly acted on an alert.
package ingest

import (
	"context"
	"fmt"
	"log"

	"sat-dispatch-backend/internal/session"
)

// Payload keys used by the dispatch push messages.
const (
	keyKind    = "type"
	keyOrderID = "SAT"

	kindEmergency = "emergency"
)

// Navigator is asked to open an order's action screen. Implementations live
// in the UI layer; the ingestor only ever requests navigation, it never
// forces a screen change for a foreground delivery.
type Navigator interface {
	OpenOrderScreen(orderID string)
}

// CheckAPI recovers pending-alert state the push channel may have missed.
type CheckAPI interface {
	CheckEmergency(ctx context.Context) (orderID string, notifyPending bool, err error)
}

// Ingestor funnels the two push delivery channels (foreground receipt and
// notification tap) into the session cell.
type Ingestor struct {
	cell  *session.Cell
	nav   Navigator
	check CheckAPI
}

// New creates an ingestor writing into the given session cell.
func New(cell *session.Cell, nav Navigator, check CheckAPI) *Ingestor {
	return &Ingestor{cell: cell, nav: nav, check: check}
}

// Received handles a push message that arrived while the app is running.
// The session cell is updated so any concurrently opened screen observes the
// same pending order; the user is not interrupted.
func (i *Ingestor) Received(payload map[string]any) {
	orderID, ok := emergencyOrderID(payload)
	if !ok {
		return
	}
	i.cell.Set(orderID)
}

// Responded handles the user tapping a notification (app backgrounded or
// cold-started by the tap). The cell is written before any navigation side
// effect so other readers never observe the navigation without the state.
func (i *Ingestor) Responded(payload map[string]any) {
	orderID, ok := emergencyOrderID(payload)
	if !ok {
		return
	}
	i.cell.Set(orderID)
	if i.nav != nil {
		i.nav.OpenOrderScreen(orderID)
	}
}

// Resume asks the server for alert state at cold start. A still-alerting
// order seeds the cell and routes straight to its action screen, covering
// pushes dropped while the process was dead.
func (i *Ingestor) Resume(ctx context.Context) error {
	orderID, notifyPending, err := i.check.CheckEmergency(ctx)
	if err != nil {
		return fmt.Errorf("emergency check failed: %w", err)
	}
	if orderID == "" {
		return nil
	}

	i.cell.Set(orderID)
	if notifyPending && i.nav != nil {
		i.nav.OpenOrderScreen(orderID)
	}
	return nil
}

// emergencyOrderID extracts the order id from a push payload, accepting the
// id as either a JSON string or number. Anything else is dropped: a garbled
// push must never crash the app or block normal ticket flows.
func emergencyOrderID(payload map[string]any) (string, bool) {
	if payload == nil {
		return "", false
	}

	kind, _ := payload[keyKind].(string)
	if kind != kindEmergency {
		return "", false
	}

	switch v := payload[keyOrderID].(type) {
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case float64:
		return fmt.Sprintf("%.0f", v), true
	case int64:
		return fmt.Sprintf("%d", v), true
	case int:
		return fmt.Sprintf("%d", v), true
	default:
		log.Printf("Dropping emergency push without a usable order id: %v", payload)
		return "", false
	}
}
