package persistence

import "spot-trade-bot-go/internal/models"

// StateRepository defines the interface for per-instance state persistence.
// It abstracts the underlying storage mechanism (e.g., BadgerDB, in-memory)
// from the rest of the application.
type StateRepository interface {
	// SaveState atomically saves one instance's entire strategy state.
	SaveState(instanceID string, state *models.StrategyState) error

	// LoadState loads an instance's state from storage.
	// If no state is found, it returns (nil, nil).
	LoadState(instanceID string) (*models.StrategyState, error)

	// Close gracefully closes the connection to the database.
	Close() error
}

// OrderJournal records every client order id before submission. Recording an
// id that already exists fails with DUPLICATE_ORDER, which is what makes
// retried submissions idempotent.
type OrderJournal interface {
	// Record persists the order record, failing if the id was seen before.
	Record(rec *models.OrderRecord) error

	// Lookup returns the stored record, or (nil, nil) when unknown.
	Lookup(clientOrderID string) (*models.OrderRecord, error)
}
