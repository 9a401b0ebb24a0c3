package services

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/scmsdev/scms-app/models"
)

// ChangeRequestInput carries the writable fields of a change request. Nil
// pointers mean "not supplied"; on update only supplied fields are checked
// and applied.
type ChangeRequestInput struct {
	Title              *string         `json:"title"`
	Description        *string         `json:"description"`
	Category           *string         `json:"category"`
	Priority           *string         `json:"priority"`
	ImpactScope        *string         `json:"impact_scope"`
	Attachments        json.RawMessage `json:"attachments"`
	ImplementationDate *time.Time      `json:"implementation_date"`

	// Filled in by ValidateChangeRequest.
	attachmentList []string
}

var validCategories = []string{models.CategoryNormal, models.CategoryStandard, models.CategoryEmergency}

var validPriorities = []string{models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical}

func trimmed(s string) string { return strings.TrimSpace(s) }

func isOneOf(value string, allowed []string) bool {
	for _, v := range allowed {
		if v == value {
			return true
		}
	}
	return false
}

// ValidateChangeRequest checks fields in priority order (title, description,
// category, priority, attachments) and reports every violation found, first
// failure first. full=true is the create path where required fields must be
// present; on update only the supplied fields are validated. String fields
// are trimmed in place.
func ValidateChangeRequest(in *ChangeRequestInput, full bool) *ServiceError {
	var violations []FieldViolation

	if in.Title != nil || full {
		if in.Title == nil {
			violations = append(violations, FieldViolation{Field: "title", Message: "Title is required"})
		} else {
			title := strings.TrimSpace(*in.Title)
			*in.Title = title
			switch {
			case title == "":
				violations = append(violations, FieldViolation{Field: "title", Message: "Title is required"})
			case len(title) < 10:
				violations = append(violations, FieldViolation{Field: "title", Message: "Title must be at least 10 characters"})
			case len(title) > 500:
				violations = append(violations, FieldViolation{Field: "title", Message: "Title cannot be more than 500 characters"})
			}
		}
	}

	if in.Description != nil || full {
		if in.Description == nil {
			violations = append(violations, FieldViolation{Field: "description", Message: "Description is required"})
		} else {
			desc := strings.TrimSpace(*in.Description)
			*in.Description = desc
			switch {
			case desc == "":
				violations = append(violations, FieldViolation{Field: "description", Message: "Description is required"})
			case len(desc) < 20:
				violations = append(violations, FieldViolation{Field: "description", Message: "Description must be at least 20 characters"})
			}
		}
	}

	if in.Category != nil || full {
		if in.Category == nil {
			violations = append(violations, FieldViolation{Field: "category", Message: "Category is required"})
		} else {
			category := strings.TrimSpace(*in.Category)
			*in.Category = category
			if !isOneOf(category, validCategories) {
				violations = append(violations, FieldViolation{Field: "category", Message: "Category must be one of Normal, Standard, Emergency"})
			}
		}
	}

	// Priority is optional everywhere; create defaults it to Medium.
	if in.Priority != nil {
		priority := strings.TrimSpace(*in.Priority)
		*in.Priority = priority
		if !isOneOf(priority, validPriorities) {
			violations = append(violations, FieldViolation{Field: "priority", Message: "Priority must be one of Low, Medium, High, Critical"})
		}
	}

	if len(in.Attachments) > 0 {
		list, ok := normalizeAttachments(in.Attachments)
		if !ok {
			violations = append(violations, FieldViolation{Field: "attachments", Message: "Attachments must be a string or a list of strings"})
		} else {
			in.attachmentList = list
		}
	}

	if len(violations) > 0 {
		return NewValidationError(violations...)
	}
	return nil
}

// normalizeAttachments accepts either a JSON array of strings or a bare
// string (treated as a one-element list) and drops empty entries.
func normalizeAttachments(raw json.RawMessage) ([]string, bool) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, a := range list {
			if trimmed := strings.TrimSpace(a); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out, true
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if trimmed := strings.TrimSpace(single); trimmed != "" {
			return []string{trimmed}, true
		}
		return []string{}, true
	}

	// JSON null means "not supplied".
	var null interface{}
	if err := json.Unmarshal(raw, &null); err == nil && null == nil {
		return nil, true
	}
	return nil, false
}
