package models

import "time"

type Notification struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"not null;index" json:"user_id"`
	User            *User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	ChangeRequestID *uint      `gorm:"index" json:"change_request_id,omitempty"`
	Message         string     `gorm:"type:text;not null" json:"message"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
}
