package services

import (
	"gorm.io/gorm"

	"github.com/scmsdev/scms-app/models"
)

// CounterStore hands out the next value of a named sequence. Implementations
// must make IncrementAndGet indivisible under concurrent callers; a
// read-then-write pair here is exactly the lost-update race that used to
// produce duplicate CR numbers.
type CounterStore interface {
	IncrementAndGet(tx *gorm.DB, key string) (uint64, error)
}

// GormCounterStore keeps one counter row per key. The increment runs as a
// single UPDATE seq = seq + 1, so the database serializes concurrent
// transactions on the row; the read-back inside the same transaction then
// observes this transaction's own value.
type GormCounterStore struct{}

func (GormCounterStore) IncrementAndGet(tx *gorm.DB, key string) (uint64, error) {
	res := tx.Model(&models.Counter{}).
		Where("id = ?", key).
		UpdateColumn("seq", gorm.Expr("seq + ?", 1))
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected == 0 {
		// First issuance for this key; create the row lazily.
		if err := tx.Create(&models.Counter{ID: key, Seq: 1}).Error; err == nil {
			return 1, nil
		}
		// Lost the creation race to a concurrent creator: the row exists
		// now, so increment it like everyone else.
		res = tx.Model(&models.Counter{}).
			Where("id = ?", key).
			UpdateColumn("seq", gorm.Expr("seq + ?", 1))
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 0 {
			return 0, gorm.ErrRecordNotFound
		}
	}

	var counter models.Counter
	if err := tx.First(&counter, "id = ?", key).Error; err != nil {
		return 0, err
	}
	return counter.Seq, nil
}
