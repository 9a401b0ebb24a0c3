package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/scmsdev/scms-app/services"
	"github.com/scmsdev/scms-app/utils"
)

type ChangeRequestController struct {
	DB      *gorm.DB
	Service *services.ChangeRequestService
}

func NewChangeRequestController(db *gorm.DB, service *services.ChangeRequestService) *ChangeRequestController {
	return &ChangeRequestController{DB: db, Service: service}
}

// Create -> new change request in Draft (developer-level roles only)
func (cc *ChangeRequestController) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var input services.ChangeRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	cr, err := cc.Service.Create(actor, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Change request created", cr)
}

// List -> records visible to the caller (own / all-except-draft / all)
func (cc *ChangeRequestController) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	crs, err := cc.Service.List(actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of change requests", gin.H{
		"change_requests": crs,
	})
}

// Get -> detail of one record, 404 if absent, 403 if not visible
func (cc *ChangeRequestController) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := recordID(c)
	if !ok {
		return
	}

	cr, err := cc.Service.Get(actor, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Change request detail", cr)
}

// Update -> edit content fields, only while Draft and only by the creator
func (cc *ChangeRequestController) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := recordID(c)
	if !ok {
		return
	}

	var input services.ChangeRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	cr, err := cc.Service.Update(actor, id, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Change request updated", cr)
}

// Submit -> Draft to Pending
func (cc *ChangeRequestController) Submit(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := recordID(c)
	if !ok {
		return
	}

	cr, err := cc.Service.Submit(actor, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Change request submitted", cr)
}

// Approve -> Pending to Approved, optional comment
func (cc *ChangeRequestController) Approve(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := recordID(c)
	if !ok {
		return
	}

	var body struct {
		Comment string `json:"comment"`
	}
	// Body is optional for approvals.
	_ = c.ShouldBindJSON(&body)

	cr, err := cc.Service.Approve(actor, id, body.Comment)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Change request approved", cr)
}

// Reject -> Pending to Rejected, reason required (reason wins over comment)
func (cc *ChangeRequestController) Reject(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := recordID(c)
	if !ok {
		return
	}

	var body struct {
		Reason  string `json:"reason"`
		Comment string `json:"comment"`
	}
	_ = c.ShouldBindJSON(&body)

	cr, err := cc.Service.Reject(actor, id, body.Reason, body.Comment)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Change request rejected", cr)
}

// Delete -> hard delete, only while Draft and only by the creator
func (cc *ChangeRequestController) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := recordID(c)
	if !ok {
		return
	}

	if err := cc.Service.Delete(actor, id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "CR deleted successfully", nil)
}

// currentActor reads the identity the auth middleware stored.
func currentActor(c *gin.Context) (uint, string, bool) {
	userIDInterface, exists := c.Get("user_id")
	if !exists {
		return 0, "", false
	}
	userID, ok := userIDInterface.(uint)
	if !ok {
		return 0, "", false
	}

	roleInterface, exists := c.Get("role")
	if !exists {
		return 0, "", false
	}
	role, ok := roleInterface.(string)
	if !ok {
		return 0, "", false
	}
	return userID, role, true
}

func requireActor(c *gin.Context) (services.Actor, bool) {
	userID, role, ok := currentActor(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user identity not found in context"))
		return services.Actor{}, false
	}
	return services.Actor{ID: userID, Role: role}, true
}

// recordID parses the :id param; a malformed id is treated as not found.
func recordID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("CR not found"))
		return 0, false
	}
	return uint(id), true
}

// respondServiceError maps the engine's error kinds to HTTP exactly once.
func respondServiceError(c *gin.Context, err error) {
	serr, ok := services.AsServiceError(err)
	if !ok {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	var status int
	switch serr.Kind {
	case services.KindValidation, services.KindInvalidTransition:
		status = http.StatusBadRequest
	case services.KindUnauthenticated:
		status = http.StatusUnauthorized
	case services.KindForbidden:
		status = http.StatusForbidden
	case services.KindNotFound:
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
	}

	data := gin.H{"kind": serr.Kind}
	if len(serr.Fields) > 0 {
		data["fields"] = serr.Fields
	}
	utils.RespondJSON(c, status, serr.Message, data)
}
