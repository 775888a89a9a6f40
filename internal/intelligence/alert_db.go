package intelligence

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/shadowtrace/shadowtrace-node/pkg/risk/models"
)

/*
DB Indexes Created Here:

1. Primary alert record, newest first by construction:
   "intel:alert:{maxNanos - createdAtNanos}:{wallet}" => JSON(Alert)

   (Inverted zero-padded timestamp gives lexical iteration in reverse
    chronological order, so "recent N" is a bounded prefix scan.)

2. Wallet index:
   "intel:alertByWallet:{wallet}:{maxNanos - createdAtNanos}" => primaryKey
*/

type AlertDb interface {
	StoreAlert(alert models.Alert) error
	GetRecentAlerts(limit int) ([]models.Alert, error)
	GetAlertsByWallet(wallet string, limit int) ([]models.Alert, error)
}

func NewAlertDb(db *badger.DB) AlertDb {
	return &AlertDbImpl{db: db}
}

type AlertDbImpl struct {
	mu sync.Mutex
	db *badger.DB
}

const (
	alertPrefix         = "intel:alert:"
	alertByWalletPrefix = "intel:alertByWallet:"
)

func alertPrimaryKey(alert models.Alert) string {
	inverted := uint64(math.MaxInt64 - alert.CreatedAt.UnixNano())
	return fmt.Sprintf("%s%020d:%s", alertPrefix, inverted, alert.Wallet)
}

func (a *AlertDbImpl) StoreAlert(alert models.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	value, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	return a.db.Update(func(txn *badger.Txn) error {
		primaryKey := alertPrimaryKey(alert)
		if err := txn.Set([]byte(primaryKey), value); err != nil {
			return err
		}
		inverted := uint64(math.MaxInt64 - alert.CreatedAt.UnixNano())
		walletKey := fmt.Sprintf("%s%s:%020d", alertByWalletPrefix, alert.Wallet, inverted)
		return txn.Set([]byte(walletKey), []byte(primaryKey))
	})
}

func (a *AlertDbImpl) GetRecentAlerts(limit int) ([]models.Alert, error) {
	var alerts []models.Alert
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(alertPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(alertPrefix)); it.Valid(); it.Next() {
			if limit > 0 && len(alerts) >= limit {
				break
			}
			var alert models.Alert
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &alert)
			})
			if err != nil {
				return err
			}
			alerts = append(alerts, alert)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read recent alerts: %w", err)
	}
	return alerts, nil
}

func (a *AlertDbImpl) GetAlertsByWallet(wallet string, limit int) ([]models.Alert, error) {
	var alerts []models.Alert
	err := a.db.View(func(txn *badger.Txn) error {
		prefix := []byte(alertByWalletPrefix + wallet + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.Valid(); it.Next() {
			if limit > 0 && len(alerts) >= limit {
				break
			}
			primaryKey, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := txn.Get(primaryKey)
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var alert models.Alert
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &alert)
			})
			if err != nil {
				return err
			}
			alerts = append(alerts, alert)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read alerts for wallet %s: %w", wallet, err)
	}
	return alerts, nil
}
