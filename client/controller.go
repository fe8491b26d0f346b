package client

import (
	"context"
	"sync"

	"watchlist_backend/models"
	"watchlist_backend/services"
)

// EntityState is the client-side lifecycle of a mutable entity
type EntityState int

const (
	// StateIdle means no mutation is in flight for the entity
	StateIdle EntityState = iota
	// StatePendingOptimistic means the mirror shows a mutation the server has
	// not confirmed yet
	StatePendingOptimistic
	// StateSettled means the last mutation was confirmed by the server
	StateSettled
	// StateRolledBack means the last mutation failed and the mirror was
	// restored to its pre-mutation value
	StateRolledBack
)

// Controller holds an in-memory mirror of the user's watchlist and alerts,
// applies optimistic mutations and reconciles them against server responses.
//
// Each watchlist symbol carries a monotonic request sequence number. A
// response is only applied when the sequence it was issued under is still
// current, so a stale response arriving after a newer request is discarded
// instead of overwriting newer optimistic state.
type Controller struct {
	backend Backend

	mu        sync.Mutex
	watchlist []models.StockWithData
	alerts    []models.Alert
	seq       map[string]uint64
	state     map[string]EntityState
	deleting  map[string]bool
}

// NewController creates a sync controller over the given backend
func NewController(backend Backend) *Controller {
	return &Controller{
		backend:  backend,
		seq:      make(map[string]uint64),
		state:    make(map[string]EntityState),
		deleting: make(map[string]bool),
	}
}

// Load replaces the mirror with authoritative server state
func (c *Controller) Load(ctx context.Context) error {
	view, err := c.backend.GetWatchlistView(ctx)
	if err != nil {
		return err
	}
	alerts, err := c.backend.GetAlerts(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.watchlist = view
	c.alerts = alerts
	c.mu.Unlock()
	return nil
}

// Watchlist returns a snapshot of the mirrored watchlist
func (c *Controller) Watchlist() []models.StockWithData {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.StockWithData, len(c.watchlist))
	copy(out, c.watchlist)
	return out
}

// Alerts returns a snapshot of the mirrored alerts
func (c *Controller) Alerts() []models.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

// InWatchlist reports whether the mirror currently contains the symbol
func (c *Controller) InWatchlist(symbol string) bool {
	key := services.CanonicalSymbol(symbol)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexOfSymbol(key) >= 0
}

// SymbolState returns the client-side lifecycle state of a watchlist symbol
func (c *Controller) SymbolState(symbol string) EntityState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state[services.CanonicalSymbol(symbol)]
}

// ToggleWatchlist flips the symbol's membership optimistically and reconciles
// with the server. On a failed add the placeholder entry is dropped; on a
// failed remove the entry and its pruned alerts are restored. A successful
// add triggers a full view refresh because the optimistic entry lacks
// pricing; a successful remove is trusted as-is.
func (c *Controller) ToggleWatchlist(ctx context.Context, symbol, company string, target bool) Result {
	key := services.CanonicalSymbol(symbol)

	c.mu.Lock()
	c.seq[key]++
	mySeq := c.seq[key]
	c.state[key] = StatePendingOptimistic

	var removedEntry *models.StockWithData
	var removedIndex int
	var prunedAlerts []prunedAlert

	if target {
		// Optimistic add: a placeholder without pricing
		c.watchlist = append([]models.StockWithData{{
			Symbol:  key,
			Company: company,
		}}, c.watchlist...)
	} else {
		// Optimistic remove, pruning the symbol's alerts locally as well
		if i := c.indexOfSymbol(key); i >= 0 {
			entry := c.watchlist[i]
			removedEntry = &entry
			removedIndex = i
			c.watchlist = append(c.watchlist[:i], c.watchlist[i+1:]...)
		}
		prunedAlerts = c.pruneAlertsLocked(key)
	}
	c.mu.Unlock()

	var result Result
	if target {
		result = c.backend.AddToWatchlist(ctx, key, company)
	} else {
		result = c.backend.RemoveFromWatchlist(ctx, key)
	}

	c.mu.Lock()
	if c.seq[key] != mySeq {
		// A newer request superseded this one; its response owns the mirror
		c.mu.Unlock()
		return result
	}

	if !result.Success {
		// Roll the optimistic flip back
		if target {
			if i := c.indexOfSymbol(key); i >= 0 {
				c.watchlist = append(c.watchlist[:i], c.watchlist[i+1:]...)
			}
		} else {
			if removedEntry != nil {
				c.insertEntryLocked(*removedEntry, removedIndex)
			}
			c.restoreAlertsLocked(prunedAlerts)
		}
		c.state[key] = StateRolledBack
		c.mu.Unlock()
		return result
	}

	c.state[key] = StateSettled
	c.mu.Unlock()

	if target {
		// The placeholder has no pricing; refresh from the server to backfill
		if view, err := c.backend.GetWatchlistView(ctx); err == nil {
			c.mu.Lock()
			if c.seq[key] == mySeq {
				c.watchlist = view
			}
			c.mu.Unlock()
		}
	}

	return result
}

// RemoveStock removes a watchlist row without optimism: the mirror is pruned
// only after the server confirms. Concurrent removals of the same symbol are
// coalesced.
func (c *Controller) RemoveStock(ctx context.Context, symbol string) Result {
	key := services.CanonicalSymbol(symbol)

	c.mu.Lock()
	if c.deleting[key] {
		c.mu.Unlock()
		return Result{Success: false, Message: "Removal already in progress"}
	}
	c.deleting[key] = true
	c.mu.Unlock()

	result := c.backend.RemoveFromWatchlist(ctx, key)

	c.mu.Lock()
	delete(c.deleting, key)
	if result.Success {
		if i := c.indexOfSymbol(key); i >= 0 {
			c.watchlist = append(c.watchlist[:i], c.watchlist[i+1:]...)
		}
		c.pruneAlertsLocked(key)
	}
	c.mu.Unlock()

	return result
}

// CreateAlert defers optimism: the mirror is only touched when the server
// accepts the alert, at which point the authoritative record is prepended.
// An alert rejected by the uniqueness check is therefore never shown.
func (c *Controller) CreateAlert(ctx context.Context, data *models.AlertData) AlertResult {
	result := c.backend.CreateAlert(ctx, data)
	if !result.Success || result.Alert == nil {
		return result
	}

	c.mu.Lock()
	c.alerts = append([]models.Alert{*result.Alert}, c.alerts...)
	c.mu.Unlock()
	return result
}

// UpdateAlert replaces the matching mirror record with the authoritative one
// on success
func (c *Controller) UpdateAlert(ctx context.Context, id string, data *models.AlertData) AlertResult {
	result := c.backend.UpdateAlert(ctx, id, data)
	if !result.Success || result.Alert == nil {
		return result
	}

	c.mu.Lock()
	for i := range c.alerts {
		if c.alerts[i].ID == id {
			c.alerts[i] = *result.Alert
			break
		}
	}
	c.mu.Unlock()
	return result
}

// DeleteAlert prunes the mirror only after the server confirms the delete
func (c *Controller) DeleteAlert(ctx context.Context, id string) Result {
	result := c.backend.DeleteAlert(ctx, id)
	if !result.Success {
		return result
	}

	c.mu.Lock()
	for i := range c.alerts {
		if c.alerts[i].ID == id {
			c.alerts = append(c.alerts[:i], c.alerts[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	return result
}

// prunedAlert remembers a locally pruned alert and where it sat
type prunedAlert struct {
	alert models.Alert
	index int
}

// indexOfSymbol returns the position of the symbol in the mirrored watchlist
func (c *Controller) indexOfSymbol(key string) int {
	for i := range c.watchlist {
		if c.watchlist[i].Symbol == key {
			return i
		}
	}
	return -1
}

// insertEntryLocked restores an entry at its previous position
func (c *Controller) insertEntryLocked(entry models.StockWithData, index int) {
	if index > len(c.watchlist) {
		index = len(c.watchlist)
	}
	c.watchlist = append(c.watchlist[:index], append([]models.StockWithData{entry}, c.watchlist[index:]...)...)
}

// pruneAlertsLocked removes the symbol's alerts from the mirror, returning
// them with their positions so a rollback can restore them
func (c *Controller) pruneAlertsLocked(key string) []prunedAlert {
	var pruned []prunedAlert
	kept := c.alerts[:0]
	for i := range c.alerts {
		if c.alerts[i].Symbol == key {
			pruned = append(pruned, prunedAlert{alert: c.alerts[i], index: i})
			continue
		}
		kept = append(kept, c.alerts[i])
	}
	c.alerts = kept
	return pruned
}

// restoreAlertsLocked puts pruned alerts back at their previous positions
func (c *Controller) restoreAlertsLocked(pruned []prunedAlert) {
	for _, p := range pruned {
		index := p.index
		if index > len(c.alerts) {
			index = len(c.alerts)
		}
		c.alerts = append(c.alerts[:index], append([]models.Alert{p.alert}, c.alerts[index:]...)...)
	}
}
