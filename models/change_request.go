package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status values. The lifecycle is Draft -> Pending -> Approved/Rejected and
// never moves backwards.
const (
	StatusDraft    = "Draft"
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

const (
	CategoryNormal    = "Normal"
	CategoryStandard  = "Standard"
	CategoryEmergency = "Emergency"
)

const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// Timeline action tags. Closed and Reopened are part of the vocabulary for
// external tooling; the lifecycle engine itself never records them.
const (
	ActionCreated   = "Created"
	ActionUpdated   = "Updated"
	ActionSubmitted = "Submitted"
	ActionApproved  = "Approved"
	ActionRejected  = "Rejected"
	ActionDeleted   = "Deleted"
	ActionClosed    = "Closed"
	ActionReopened  = "Reopened"
)

// AttachmentList stores attachment references as a JSON array in a text
// column, same trick as the image_urls column we used before.
type AttachmentList []string

func (a AttachmentList) Value() (driver.Value, error) {
	if a == nil {
		a = AttachmentList{}
	}
	return json.Marshal(a)
}

func (a *AttachmentList) Scan(value interface{}) error {
	if value == nil {
		*a = AttachmentList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	}
	return fmt.Errorf("unsupported attachments column type %T", value)
}

type ChangeRequest struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	CRNumber string `gorm:"type:varchar(20);uniqueIndex;not null" json:"cr_number"`

	Title              string         `gorm:"type:varchar(500);not null" json:"title"`
	Description        string         `gorm:"type:text;not null" json:"description"`
	Category           string         `gorm:"type:varchar(20);not null;default:'Normal'" json:"category"`
	Priority           string         `gorm:"type:varchar(20);not null;default:'Medium'" json:"priority"`
	ImpactScope        string         `gorm:"type:text" json:"impact_scope"`
	Attachments        AttachmentList `gorm:"type:text" json:"attachments"`
	ImplementationDate *time.Time     `json:"implementation_date,omitempty"`

	Status string `gorm:"type:varchar(20);not null;default:'Draft';index:idx_status_creator" json:"status"`

	CreatedByID uint  `gorm:"not null;index:idx_status_creator" json:"created_by_id"`
	CreatedBy   *User `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`

	SubmittedByID *uint      `json:"submitted_by_id,omitempty"`
	SubmittedBy   *User      `gorm:"foreignKey:SubmittedByID" json:"submitted_by,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`

	// Single reviewer slot for both outcomes. RejectionReason is only set
	// when the outcome is Rejected.
	ReviewedByID    *uint      `gorm:"index" json:"reviewed_by_id,omitempty"`
	ReviewedBy      *User      `gorm:"foreignKey:ReviewedByID" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	ReviewerComment string     `gorm:"type:text" json:"reviewer_comment,omitempty"`
	RejectionReason string     `gorm:"type:text" json:"rejection_reason,omitempty"`

	Timeline []TimelineEntry `gorm:"foreignKey:ChangeRequestID" json:"timeline,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TimelineEntry is one audit record of a lifecycle action. Rows are append
// only; nothing in the codebase updates or deletes them while the parent
// record exists.
type TimelineEntry struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ChangeRequestID uint      `gorm:"not null;index" json:"change_request_id"`
	Action          string    `gorm:"type:varchar(20);not null" json:"action"`
	PerformedByID   uint      `gorm:"not null" json:"performed_by_id"`
	PerformedBy     *User     `gorm:"foreignKey:PerformedByID" json:"performed_by,omitempty"`
	Timestamp       time.Time `gorm:"not null" json:"timestamp"`
	Comment         string    `gorm:"type:text" json:"comment,omitempty"`
}
