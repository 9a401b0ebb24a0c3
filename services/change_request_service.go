package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/scmsdev/scms-app/models"
	"github.com/scmsdev/scms-app/utils"
)

// LifecycleHook observes committed lifecycle actions. Hooks run after the
// transaction commits and must never affect the request outcome; the
// notification writer and the websocket feed hang off of these.
type LifecycleHook func(action string, cr *models.ChangeRequest, actor Actor)

// ChangeRequestService is the lifecycle engine. All mutation of a change
// request goes through here; controllers only translate HTTP.
type ChangeRequestService struct {
	DB    *gorm.DB
	Seq   *SequenceService
	hooks []LifecycleHook
}

func NewChangeRequestService(db *gorm.DB, seq *SequenceService) *ChangeRequestService {
	return &ChangeRequestService{DB: db, Seq: seq}
}

func (s *ChangeRequestService) AddHook(hook LifecycleHook) {
	s.hooks = append(s.hooks, hook)
}

func (s *ChangeRequestService) emit(action string, cr *models.ChangeRequest, actor Actor) {
	for _, hook := range s.hooks {
		hook(action, cr, actor)
	}
}

// load fetches a record with its associations, mapping a missing row to
// NOT_FOUND.
func (s *ChangeRequestService) load(id uint) (*models.ChangeRequest, error) {
	var cr models.ChangeRequest
	err := s.DB.
		Preload("CreatedBy").
		Preload("SubmittedBy").
		Preload("ReviewedBy").
		Preload("Timeline", func(db *gorm.DB) *gorm.DB { return db.Order("timeline_entries.id ASC") }).
		Preload("Timeline.PerformedBy").
		First(&cr, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundf("CR not found")
	}
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

func appendTimeline(tx *gorm.DB, crID uint, action string, actorID uint, comment string, at time.Time) error {
	entry := models.TimelineEntry{
		ChangeRequestID: crID,
		Action:          action,
		PerformedByID:   actorID,
		Timestamp:       at,
		Comment:         comment,
	}
	return tx.Create(&entry).Error
}

// Create validates the input, assigns the next sequence code and persists
// the record in Draft, all inside one transaction so a failed insert rolls
// the counter increment back and a record is never saved without a code.
func (s *ChangeRequestService) Create(actor Actor, in ChangeRequestInput) (*models.ChangeRequest, error) {
	if !CanPerform(OpCreate, nil, actor) {
		return nil, Forbiddenf("Forbidden: Your role does not have permission for this action.")
	}
	if verr := ValidateChangeRequest(&in, true); verr != nil {
		return nil, verr
	}

	now := time.Now()
	cr := &models.ChangeRequest{
		Title:       *in.Title,
		Description: *in.Description,
		Category:    *in.Category,
		Priority:    models.PriorityMedium,
		Status:      models.StatusDraft,
		CreatedByID: actor.ID,
		Attachments: models.AttachmentList{},
	}
	if in.Priority != nil {
		cr.Priority = *in.Priority
	}
	if in.ImpactScope != nil {
		cr.ImpactScope = *in.ImpactScope
	}
	if in.ImplementationDate != nil {
		cr.ImplementationDate = in.ImplementationDate
	}
	if in.attachmentList != nil {
		cr.Attachments = models.AttachmentList(in.attachmentList)
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		number, err := s.Seq.NextCRNumber(tx, now.Year())
		if err != nil {
			return err
		}
		cr.CRNumber = number
		if err := tx.Create(cr).Error; err != nil {
			return err
		}
		return appendTimeline(tx, cr.ID, models.ActionCreated, actor.ID, "", now)
	})
	if err != nil {
		if serr, ok := AsServiceError(err); ok {
			return nil, serr
		}
		return nil, err
	}

	utils.InfoLogger.Printf("Change request %s created by user %d", cr.CRNumber, actor.ID)

	loaded, err := s.load(cr.ID)
	if err != nil {
		return nil, err
	}
	s.emit(models.ActionCreated, loaded, actor)
	return loaded, nil
}

// Get returns one record if the visibility rules allow the actor to see it.
func (s *ChangeRequestService) Get(actor Actor, id uint) (*models.ChangeRequest, error) {
	cr, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if !CanPerform(OpView, cr, actor) {
		return nil, Forbiddenf("Forbidden: You do not have permission to view this CR.")
	}
	return cr, nil
}

// List returns the records visible to the actor, most recently updated
// first.
func (s *ChangeRequestService) List(actor Actor) ([]models.ChangeRequest, error) {
	q := s.DB.
		Preload("CreatedBy").
		Preload("SubmittedBy").
		Preload("ReviewedBy")

	switch VisibilityScope(actor.Role) {
	case ScopeOwnOnly:
		q = q.Where("created_by_id = ?", actor.ID)
	case ScopeAllExceptDraft:
		q = q.Where("status <> ?", models.StatusDraft)
	}

	var crs []models.ChangeRequest
	if err := q.Order("updated_at DESC").Find(&crs).Error; err != nil {
		return nil, err
	}
	return crs, nil
}

// Update edits content fields of a Draft owned by the actor. Changed fields
// are validated; everything else is left alone. The write is guarded on
// status so an update racing with a submit loses cleanly.
func (s *ChangeRequestService) Update(actor Actor, id uint, in ChangeRequestInput) (*models.ChangeRequest, error) {
	cr, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if !models.IsDeveloperRole(actor.Role) {
		return nil, Forbiddenf("Forbidden: Your role does not have permission for this action.")
	}
	if cr.CreatedByID != actor.ID {
		return nil, Forbiddenf("Forbidden: You are not the creator of this CR.")
	}
	if cr.Status != models.StatusDraft {
		return nil, Forbiddenf("Forbidden: This CR is already under review and cannot be edited.")
	}
	if verr := ValidateChangeRequest(&in, false); verr != nil {
		return nil, verr
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Category != nil {
		updates["category"] = *in.Category
	}
	if in.Priority != nil {
		updates["priority"] = *in.Priority
	}
	if in.ImpactScope != nil {
		updates["impact_scope"] = *in.ImpactScope
	}
	if in.ImplementationDate != nil {
		updates["implementation_date"] = *in.ImplementationDate
	}
	if in.attachmentList != nil {
		updates["attachments"] = models.AttachmentList(in.attachmentList)
	}
	if len(updates) == 0 {
		return cr, nil
	}

	now := time.Now()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ChangeRequest{}).
			Where("id = ? AND status = ?", id, models.StatusDraft).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return Forbiddenf("Forbidden: This CR is already under review and cannot be edited.")
		}
		return appendTimeline(tx, id, models.ActionUpdated, actor.ID, "", now)
	})
	if err != nil {
		if serr, ok := AsServiceError(err); ok {
			return nil, serr
		}
		return nil, err
	}

	loaded, err := s.load(id)
	if err != nil {
		return nil, err
	}
	s.emit(models.ActionUpdated, loaded, actor)
	return loaded, nil
}

// Submit moves a Draft owned by the actor to Pending. The status guard in
// the WHERE clause serializes racing transitions: only the one that still
// sees Draft at commit time wins, the loser gets an invalid transition.
func (s *ChangeRequestService) Submit(actor Actor, id uint) (*models.ChangeRequest, error) {
	cr, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if !models.IsDeveloperRole(actor.Role) {
		return nil, Forbiddenf("Forbidden: Your role does not have permission for this action.")
	}
	if cr.CreatedByID != actor.ID {
		return nil, Forbiddenf("Forbidden: You are not the creator of this CR.")
	}
	if cr.Status != models.StatusDraft {
		return nil, InvalidTransitionf("This CR has already been submitted.")
	}

	now := time.Now()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ChangeRequest{}).
			Where("id = ? AND status = ?", id, models.StatusDraft).
			Updates(map[string]interface{}{
				"status":          models.StatusPending,
				"submitted_by_id": actor.ID,
				"submitted_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return InvalidTransitionf("This CR has already been submitted.")
		}
		return appendTimeline(tx, id, models.ActionSubmitted, actor.ID, "", now)
	})
	if err != nil {
		if serr, ok := AsServiceError(err); ok {
			return nil, serr
		}
		return nil, err
	}

	utils.InfoLogger.Printf("Change request %s submitted by user %d", cr.CRNumber, actor.ID)

	loaded, err := s.load(id)
	if err != nil {
		return nil, err
	}
	s.emit(models.ActionSubmitted, loaded, actor)
	return loaded, nil
}

// Approve moves a Pending record to Approved and fills the reviewer slot.
// The comment is optional; empty after trimming means no comment was
// supplied.
func (s *ChangeRequestService) Approve(actor Actor, id uint, comment string) (*models.ChangeRequest, error) {
	if !CanPerform(OpApprove, nil, actor) {
		return nil, Forbiddenf("Forbidden: Your role does not have approval permissions.")
	}
	cr, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if cr.Status != models.StatusPending {
		return nil, InvalidTransitionf("This CR is not pending approval.")
	}

	comment = trimmed(comment)
	now := time.Now()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":         models.StatusApproved,
			"reviewed_by_id": actor.ID,
			"reviewed_at":    now,
		}
		if comment != "" {
			updates["reviewer_comment"] = comment
		}
		res := tx.Model(&models.ChangeRequest{}).
			Where("id = ? AND status = ?", id, models.StatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return InvalidTransitionf("This CR is not pending approval.")
		}
		return appendTimeline(tx, id, models.ActionApproved, actor.ID, comment, now)
	})
	if err != nil {
		if serr, ok := AsServiceError(err); ok {
			return nil, serr
		}
		return nil, err
	}

	utils.InfoLogger.Printf("Change request %s approved by user %d", cr.CRNumber, actor.ID)

	loaded, err := s.load(id)
	if err != nil {
		return nil, err
	}
	s.emit(models.ActionApproved, loaded, actor)
	return loaded, nil
}

// Reject moves a Pending record to Rejected. A non-empty reason is
// mandatory; when both reason and comment are supplied the reason wins. The
// reason check runs before everything else so an empty reason is a 400
// regardless of who calls.
func (s *ChangeRequestService) Reject(actor Actor, id uint, reason, comment string) (*models.ChangeRequest, error) {
	text := trimmed(reason)
	if text == "" {
		text = trimmed(comment)
	}
	if text == "" {
		return nil, NewValidationError(FieldViolation{
			Field:   "reason",
			Message: "A rejection reason is required.",
		})
	}
	if !CanPerform(OpReject, nil, actor) {
		return nil, Forbiddenf("Forbidden: Your role does not have rejection permissions.")
	}
	cr, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if cr.Status != models.StatusPending {
		return nil, InvalidTransitionf("This CR is not pending rejection.")
	}

	now := time.Now()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ChangeRequest{}).
			Where("id = ? AND status = ?", id, models.StatusPending).
			Updates(map[string]interface{}{
				"status":           models.StatusRejected,
				"reviewed_by_id":   actor.ID,
				"reviewed_at":      now,
				"reviewer_comment": text,
				"rejection_reason": text,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return InvalidTransitionf("This CR is not pending rejection.")
		}
		return appendTimeline(tx, id, models.ActionRejected, actor.ID, text, now)
	})
	if err != nil {
		if serr, ok := AsServiceError(err); ok {
			return nil, serr
		}
		return nil, err
	}

	utils.InfoLogger.Printf("Change request %s rejected by user %d", cr.CRNumber, actor.ID)

	loaded, err := s.load(id)
	if err != nil {
		return nil, err
	}
	s.emit(models.ActionRejected, loaded, actor)
	return loaded, nil
}

// Delete hard-deletes a Draft owned by the actor, timeline included. Past
// Draft nothing is ever deleted.
func (s *ChangeRequestService) Delete(actor Actor, id uint) error {
	cr, err := s.load(id)
	if err != nil {
		return err
	}
	if !models.IsDeveloperRole(actor.Role) {
		return Forbiddenf("Forbidden: Your role does not have permission for this action.")
	}
	if cr.CreatedByID != actor.ID {
		return Forbiddenf("Forbidden: You are not the creator of this CR.")
	}
	if cr.Status != models.StatusDraft {
		return Forbiddenf("Forbidden: Cannot delete a CR that is already under review.")
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", id, models.StatusDraft).
			Delete(&models.ChangeRequest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return Forbiddenf("Forbidden: Cannot delete a CR that is already under review.")
		}
		if err := tx.Where("change_request_id = ?", id).Delete(&models.TimelineEntry{}).Error; err != nil {
			return err
		}
		return tx.Where("change_request_id = ?", id).Delete(&models.Notification{}).Error
	})
	if err != nil {
		if serr, ok := AsServiceError(err); ok {
			return serr
		}
		return err
	}

	utils.InfoLogger.Printf("Change request %s deleted by user %d", cr.CRNumber, actor.ID)
	s.emit(models.ActionDeleted, cr, actor)
	return nil
}
