package history

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// ReservedStatus cannot be used as a status name because activity buckets
// carry their label under this key.
const ReservedStatus = "label"

var (
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("history: validation failed")
	// ErrNotFound indicates an unknown application or status event.
	ErrNotFound = errors.New("history: not found")
	// ErrUnauthorized indicates the acting account does not own the application.
	ErrUnauthorized = errors.New("history: unauthorized")
	// ErrInvariantViolation indicates a mutation that would leave the history empty.
	ErrInvariantViolation = errors.New("history: invariant violation")
)

// StatusEvent is one dated status change within an application's history.
type StatusEvent struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Date   time.Time `json:"date"`
}

// Application is one tracked job application with its full status history.
// Status and Date always mirror the last element of History.
type Application struct {
	ID          string                           `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	OwnerID     string                           `gorm:"column:owner_id;size:190;not null;index:idx_applications_owner_date,priority:1" json:"owner"`
	CompanyName string                           `gorm:"column:company_name;size:320;not null" json:"companyName"`
	JobTitle    string                           `gorm:"column:job_title;size:320;not null" json:"jobTitle"`
	EmailUsed   string                           `gorm:"column:email_used;size:320;not null;default:''" json:"emailUsed"`
	Link        string                           `gorm:"column:link;size:2048;not null;default:''" json:"link,omitempty"`
	Status      string                           `gorm:"column:status;size:190;not null" json:"status"`
	Date        time.Time                        `gorm:"column:date;not null;index:idx_applications_owner_date,priority:2" json:"date"`
	History     datatypes.JSONSlice[StatusEvent] `gorm:"column:history;type:text;not null" json:"history"`
	CreatedAt   time.Time                        `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time                        `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (Application) TableName() string {
	return "applications"
}

// ApplicationInput carries the caller-supplied fields for a new application.
type ApplicationInput struct {
	OwnerID     string
	CompanyName string
	JobTitle    string
	EmailUsed   string
	Link        string
	Status      string
	Date        time.Time
}

// Latest returns the chronologically most recent event.
func (a *Application) Latest() (StatusEvent, bool) {
	if a == nil || len(a.History) == 0 {
		return StatusEvent{}, false
	}
	return a.History[len(a.History)-1], true
}

// ValidationError names the rejected input. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Reason
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalidf builds a ValidationError from a format string.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
