package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditRecord is a fire-and-forget trace of one handled request. Writes are
// best-effort; retention is handled by a separate maintenance job.
type AuditRecord struct {
	ID uint `json:"id" gorm:"primaryKey"`

	UserID     *uint  `json:"user_id" gorm:"index"`
	Action     string `json:"action" gorm:"not null;size:100;index"`
	Method     string `json:"method" gorm:"not null;size:10"`
	Path       string `json:"path" gorm:"not null;size:500"`
	StatusCode int    `json:"status_code" gorm:"not null"`

	IP        *string        `json:"ip" gorm:"size:45"`
	UserAgent *string        `json:"user_agent" gorm:"type:text"`
	RequestID string         `json:"request_id" gorm:"not null;size:64;index"`
	Details   datatypes.JSON `json:"details" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (AuditRecord) TableName() string {
	return "audit_records"
}
