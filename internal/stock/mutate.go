package stock

import (
	"stocktrack-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// stockColumns is the complete set of product columns a movement may write.
var stockColumns = []string{"quantity", "version", "updated_at"}

// lockProducts loads the active products among ids. On Postgres the rows are
// locked FOR UPDATE in sorted id order until the transaction ends.
func lockProducts(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	ids = sortedUnique(ids)
	out := make(map[uuid.UUID]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var products []models.Product
	q := forUpdate(tx).
		Where("id IN ? AND is_active = ?", ids, true).
		Order("id")
	if err := q.Find(&products).Error; err != nil {
		return nil, &TransactionError{Op: "load products", Err: err}
	}

	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

// forUpdate adds a row lock where the dialect has one. Dialects without row
// locks (sqlite) serialize writers on the database instead, and the version
// check in apply still rejects lost updates.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return tx
}

// quantityAfter applies the change type's sign rules. Restock and return
// always add, sale always subtracts, adjustment applies the signed delta.
func quantityAfter(before int, ct models.ChangeType, delta int) (int, error) {
	switch ct {
	case models.ChangeRestock, models.ChangeReturn:
		return before + abs(delta), nil
	case models.ChangeSale:
		return before - abs(delta), nil
	case models.ChangeAdjustment:
		return before + delta, nil
	default:
		return 0, &InvalidChangeTypeError{ChangeType: string(ct)}
	}
}

// apply writes one movement against the locked product p and appends its
// ledger entry. p is advanced only once both writes have succeeded, so a
// caller rolling back to a savepoint can keep using it.
func (e *Engine) apply(tx *gorm.DB, p *models.Product, actor models.Actor, mr movementRequest) (movement, error) {
	before := p.Quantity
	after, err := quantityAfter(before, mr.changeType, mr.delta)
	if err != nil {
		return movement{}, err
	}
	if after < 0 {
		return movement{}, &InsufficientStockError{ProductID: p.ID, Before: before, Requested: mr.delta}
	}

	now := e.now()
	version := p.Version + 1

	res := tx.Model(&models.Product{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Select(stockColumns).
		Updates(map[string]any{
			"quantity":   after,
			"version":    version,
			"updated_at": now,
		})
	if res.Error != nil {
		return movement{}, &TransactionError{Op: "update product quantity", Err: res.Error}
	}
	if res.RowsAffected != 1 {
		return movement{}, errStaleVersion
	}

	entry, err := appendLedger(tx, ledgerEntry{
		productID:       p.ID,
		actorID:         actor.ID,
		changeType:      mr.changeType,
		before:          before,
		after:           after,
		reason:          mr.reason,
		referenceNumber: mr.referenceNumber,
		version:         version,
		at:              now,
	})
	if err != nil {
		return movement{}, err
	}

	p.Quantity = after
	p.Version = version
	p.UpdatedAt = now

	return movement{
		product:    *p,
		changeType: mr.changeType,
		before:     before,
		after:      after,
		logID:      entry.ID,
		at:         now,
	}, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
