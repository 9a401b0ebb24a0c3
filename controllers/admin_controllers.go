package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/scmsdev/scms-app/models"
	"github.com/scmsdev/scms-app/utils"
)

// AdminController owns account management and the aggregate views. Every
// route it serves sits behind RequireAdminRole.
type AdminController struct {
	DB *gorm.DB
}

func NewAdminController(db *gorm.DB) *AdminController {
	return &AdminController{DB: db}
}

// GetAllUsers -> every account, newest first
func (ac *AdminController) GetAllUsers(c *gin.Context) {
	var users []models.User
	if err := ac.DB.Order("created_at DESC").Find(&users).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All users", gin.H{"users": users})
}

// GetUser -> one account by id
func (ac *AdminController) GetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("User not found"))
		return
	}

	var user models.User
	if err := ac.DB.First(&user, uint(id)).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("User not found"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "User detail", gin.H{"user": user})
}

// CreateUser -> admin creates an account directly
func (ac *AdminController) CreateUser(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if len(req.Password) < 8 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("Password must be at least 8 characters"))
		return
	}
	if !models.IsValidRole(req.Role) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("Valid role is required"))
		return
	}

	var existing models.User
	if err := ac.DB.Where("email = ?", strings.ToLower(req.Email)).First(&existing).Error; err == nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("Email already registered"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	user := models.User{
		Email:    strings.ToLower(req.Email),
		Password: string(hashed),
		Role:     req.Role,
	}
	if err := ac.DB.Create(&user).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "User created successfully", gin.H{"user": user})
}

// UpdateUser -> change email, role or password of an account
func (ac *AdminController) UpdateUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("User not found"))
		return
	}

	var req struct {
		Email    *string `json:"email"`
		Role     *string `json:"role"`
		Password *string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var user models.User
	if err := ac.DB.First(&user, uint(id)).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("User not found"))
		return
	}

	if req.Email != nil && *req.Email != "" {
		user.Email = strings.ToLower(*req.Email)
	}
	if req.Role != nil {
		if !models.IsValidRole(*req.Role) {
			utils.RespondError(c, http.StatusBadRequest, errors.New("Valid role is required"))
			return
		}
		user.Role = *req.Role
	}
	if req.Password != nil && strings.TrimSpace(*req.Password) != "" {
		if len(*req.Password) < 8 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("Password must be at least 8 characters"))
			return
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		user.Password = string(hashed)
	}

	if err := ac.DB.Save(&user).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "User updated successfully", gin.H{"user": user})
}

// DeleteUser -> remove an account; self-deletion is refused
func (ac *AdminController) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("User not found"))
		return
	}

	callerID, _, _ := currentActor(c)
	if uint(id) == callerID {
		utils.RespondError(c, http.StatusBadRequest, errors.New("You cannot delete your own account"))
		return
	}

	var user models.User
	if err := ac.DB.First(&user, uint(id)).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("User not found"))
		return
	}
	if err := ac.DB.Delete(&user).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "User deleted successfully", nil)
}

// GetStatistics -> aggregate counts for the admin dashboard
func (ac *AdminController) GetStatistics(c *gin.Context) {
	type countRow struct {
		Key   string `json:"key"`
		Count int64  `json:"count"`
	}

	var stats struct {
		Users struct {
			Total  int64      `json:"total"`
			ByRole []countRow `json:"by_role"`
		} `json:"users"`
		ChangeRequests struct {
			Total      int64      `json:"total"`
			ByStatus   []countRow `json:"by_status"`
			ByCategory []countRow `json:"by_category"`
		} `json:"change_requests"`
		RecentActivity struct {
			Users          []models.User          `json:"users"`
			ChangeRequests []models.ChangeRequest `json:"change_requests"`
		} `json:"recent_activity"`
	}

	ac.DB.Model(&models.User{}).Count(&stats.Users.Total)
	ac.DB.Model(&models.User{}).
		Select("role AS key, COUNT(*) AS count").
		Group("role").Order("count DESC").
		Scan(&stats.Users.ByRole)

	ac.DB.Model(&models.ChangeRequest{}).Count(&stats.ChangeRequests.Total)
	ac.DB.Model(&models.ChangeRequest{}).
		Select("status AS key, COUNT(*) AS count").
		Group("status").Order("count DESC").
		Scan(&stats.ChangeRequests.ByStatus)
	ac.DB.Model(&models.ChangeRequest{}).
		Select("category AS key, COUNT(*) AS count").
		Group("category").Order("count DESC").
		Scan(&stats.ChangeRequests.ByCategory)

	ac.DB.Order("created_at DESC").Limit(5).Find(&stats.RecentActivity.Users)
	ac.DB.Preload("CreatedBy").Order("created_at DESC").Limit(10).
		Find(&stats.RecentActivity.ChangeRequests)

	utils.RespondJSON(c, http.StatusOK, "System statistics", gin.H{"statistics": stats})
}

// GetAllChangeRequests -> unfiltered listing, Drafts included
func (ac *AdminController) GetAllChangeRequests(c *gin.Context) {
	var crs []models.ChangeRequest
	err := ac.DB.
		Preload("CreatedBy").
		Preload("SubmittedBy").
		Preload("ReviewedBy").
		Order("updated_at DESC").
		Find(&crs).Error
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All change requests", gin.H{"change_requests": crs})
}
