package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/scmsdev/scms-app/models"
	"github.com/scmsdev/scms-app/utils"
)

type NotificationController struct {
	DB *gorm.DB
}

func NewNotificationController(db *gorm.DB) *NotificationController {
	return &NotificationController{DB: db}
}

// GetAllNotifications -> the caller's notifications, newest first
func (nc *NotificationController) GetAllNotifications(c *gin.Context) {
	userID, _, ok := currentActor(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}

	var notifications []models.Notification
	err := nc.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&notifications).Error
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications", gin.H{"notifications": notifications})
}

// MarkNotificationRead -> stamp read_at on one of the caller's notifications
func (nc *NotificationController) MarkNotificationRead(c *gin.Context) {
	userID, _, ok := currentActor(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}
	id, err := strconv.ParseUint(c.Param("notif_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("Notification not found"))
		return
	}

	var notif models.Notification
	if err := nc.DB.Where("id = ? AND user_id = ?", uint(id), userID).First(&notif).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("Notification not found"))
		return
	}

	now := time.Now()
	notif.ReadAt = &now
	if err := nc.DB.Save(&notif).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification marked as read", notif)
}

// DeleteNotification -> remove one of the caller's notifications
func (nc *NotificationController) DeleteNotification(c *gin.Context) {
	userID, _, ok := currentActor(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}
	id, err := strconv.ParseUint(c.Param("notif_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("Notification not found"))
		return
	}

	res := nc.DB.Where("id = ? AND user_id = ?", uint(id), userID).
		Delete(&models.Notification{})
	if res.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, errors.New("Notification not found"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification deleted", nil)
}
