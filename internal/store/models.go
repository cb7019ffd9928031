package store

import (
	"encoding/json"
	"time"

	"safetycheck/api/internal/checklist"
)

type User struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	Role            string     `json:"role"`
	ApprovedBy      *string    `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	RejectedBy      *string    `json:"rejectedBy,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type Inspection struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	UserName    string     `json:"userName,omitempty"`
	Status      string     `json:"status"`
	Title       string     `json:"title"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	Location    string     `json:"location,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	// Populated by list queries only.
	ResponseCount int `json:"responseCount"`
	ImageCount    int `json:"imageCount"`
}

type Response struct {
	ID           int64  `json:"id"`
	InspectionID string `json:"inspectionId"`
	checklist.Response
	CreatedAt time.Time `json:"createdAt"`
}

type Image struct {
	ID           int64  `json:"id"`
	InspectionID string `json:"inspectionId"`
	checklist.Image
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
}

type AuditLogEntry struct {
	ID           int64           `json:"id"`
	InspectionID string          `json:"inspectionId"`
	UserID       string          `json:"userId"`
	Action       string          `json:"action"`
	Description  string          `json:"description"`
	OldValue     json.RawMessage `json:"oldValue,omitempty"`
	NewValue     json.RawMessage `json:"newValue,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// InspectionFilter narrows inspection listings. Empty fields are ignored.
type InspectionFilter struct {
	UserID string
	Status string
	Query  string
	Limit  int
	Offset int
}

// InspectionPatch carries the autosave fields. Nil fields are left alone.
type InspectionPatch struct {
	Title     *string
	Latitude  *float64
	Longitude *float64
	Location  *string
	Status    *string
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type InspectorCount struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Count  int    `json:"count"`
}
