package services

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/scmsdev/scms-app/models"
	"github.com/scmsdev/scms-app/utils"
)

// NotificationHook writes a notification row for the record's creator when a
// reviewer decides, and a confirmation when the record enters review. Hook
// failures are logged and swallowed; notifications never fail a request.
func NotificationHook(db *gorm.DB) LifecycleHook {
	return func(action string, cr *models.ChangeRequest, actor Actor) {
		var message string
		switch action {
		case models.ActionSubmitted:
			message = fmt.Sprintf("%s has been submitted for review", cr.CRNumber)
		case models.ActionApproved:
			message = fmt.Sprintf("%s has been approved", cr.CRNumber)
		case models.ActionRejected:
			message = fmt.Sprintf("%s has been rejected: %s", cr.CRNumber, cr.RejectionReason)
		default:
			return
		}

		crID := cr.ID
		notif := models.Notification{
			UserID:          cr.CreatedByID,
			ChangeRequestID: &crID,
			Message:         message,
		}
		if err := db.Create(&notif).Error; err != nil {
			utils.ErrorLogger.Printf("Failed to write notification for %s: %v", cr.CRNumber, err)
		}
	}
}
