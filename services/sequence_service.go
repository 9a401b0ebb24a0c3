package services

import (
	"fmt"

	"gorm.io/gorm"
)

// SequenceService issues the human-readable CR numbers (CR-YYYY-NNNN, at
// least four digits, unique for all time, gaps tolerated).
type SequenceService struct {
	Store CounterStore
}

func NewSequenceService(store CounterStore) *SequenceService {
	return &SequenceService{Store: store}
}

func counterKey(year int) string {
	return fmt.Sprintf("cr_number_%d", year)
}

// NextCRNumber atomically increments the counter for the given year and
// formats the code. It must run inside the same transaction that persists
// the new record, so a failed insert rolls the increment back and a record
// is never saved without a valid code.
func (s *SequenceService) NextCRNumber(tx *gorm.DB, year int) (string, error) {
	seq, err := s.Store.IncrementAndGet(tx, counterKey(year))
	if err != nil {
		return "", SequenceFailure(err)
	}
	return fmt.Sprintf("CR-%d-%04d", year, seq), nil
}
