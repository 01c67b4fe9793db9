// Package session holds the process-wide pending-emergency slot shared by
// the notification ingestor, screen navigation, and the claim reconciler.
package session

import "sync"

// Cell is the single piece of cross-cutting mutable state in the dispatch
// core: the order id the UI currently believes needs the technician's
// attention, or empty for none. Writes are unconditional last-write-wins; a
// newer alert always supersedes an older one.
type Cell struct {
	mu      sync.Mutex
	orderID string
}

// NewCell returns an empty cell.
func NewCell() *Cell {
	return &Cell{}
}

// Set overwrites the pending emergency order id. The empty string clears it.
func (c *Cell) Set(orderID string) {
	c.mu.Lock()
	c.orderID = orderID
	c.mu.Unlock()
}

// Get returns the pending emergency order id, or "" if none is pending.
func (c *Cell) Get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orderID
}
