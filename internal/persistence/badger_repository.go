package persistence

import (
	"encoding/json"
	"errors"

	"spot-trade-bot-go/internal/models"

	"github.com/dgraph-io/badger/v3"
)

const (
	statePrefix = "state:"
	orderPrefix = "order:"
)

// BadgerStore is the BadgerDB implementation of StateRepository and
// OrderJournal. All instances share one database; keys are namespaced by
// prefix and instance id.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the database at dbPath.
func NewBadgerStore(dbPath string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dbPath)
	// Badger's own logging would interleave with ours; errors still surface
	// from every DB operation.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func stateKey(instanceID string) []byte {
	return []byte(statePrefix + instanceID)
}

func orderKey(clientOrderID string) []byte {
	return []byte(orderPrefix + clientOrderID)
}

// SaveState atomically saves one instance's entire strategy state as JSON.
func (s *BadgerStore) SaveState(instanceID string, state *models.StrategyState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(stateKey(instanceID), data)
	})
}

// LoadState loads an instance's state. A missing key returns (nil, nil).
func (s *BadgerStore) LoadState(instanceID string) (*models.StrategyState, error) {
	var state models.StrategyState

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey(instanceID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return errors.New("state value is empty in database")
			}
			return json.Unmarshal(val, &state)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Record writes the order record inside one transaction, first checking that
// the id is unseen. The check and the write share the transaction, so two
// concurrent submissions of the same id cannot both succeed.
func (s *BadgerStore) Record(rec *models.OrderRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := orderKey(rec.ClientOrderID)

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return models.DuplicateOrderError(rec.ClientOrderID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
}

// Lookup returns the stored order record, or (nil, nil) when unknown.
func (s *BadgerStore) Lookup(clientOrderID string) (*models.OrderRecord, error) {
	var rec models.OrderRecord

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(orderKey(clientOrderID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Close gracefully closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
