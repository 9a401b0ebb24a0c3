package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/scmsdev/scms-app/models"
	"github.com/scmsdev/scms-app/utils"
)

// ReviewMonitor periodically looks for change requests that have been
// sitting in Pending longer than MaxPendingAge and logs a reminder. It does
// not transition anything; nudging reviewers is all it is for.
type ReviewMonitor struct {
	DB            *gorm.DB
	Interval      time.Duration
	MaxPendingAge time.Duration
	StopChan      chan struct{}
}

func NewReviewMonitor(db *gorm.DB) *ReviewMonitor {
	return &ReviewMonitor{
		DB:            db,
		Interval:      1 * time.Hour,
		MaxPendingAge: 48 * time.Hour,
		StopChan:      make(chan struct{}),
	}
}

func (rm *ReviewMonitor) Start() {
	go func() {
		ticker := time.NewTicker(rm.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if count := rm.stalePending(); count > 0 {
					utils.InfoLogger.Printf("%d change request(s) pending review for more than %s", count, rm.MaxPendingAge)
				}
			case <-rm.StopChan:
				return
			}
		}
	}()
}

func (rm *ReviewMonitor) Stop() {
	close(rm.StopChan)
}

func (rm *ReviewMonitor) stalePending() int64 {
	cutoff := time.Now().Add(-rm.MaxPendingAge)

	var count int64
	err := rm.DB.Model(&models.ChangeRequest{}).
		Where("status = ? AND submitted_at < ?", models.StatusPending, cutoff).
		Count(&count).Error
	if err != nil {
		utils.ErrorLogger.Printf("Error counting stale pending CRs: %v", err)
		return 0
	}
	return count
}
