// internal/models/notification.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is an in-app event row for one party; the transport that
// delivers it (badge, email) lives outside the engine.
type Notification struct {
	BaseModel
	UserID          uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Type            string     `json:"type" gorm:"size:50;not null;index"`
	Title           string     `json:"title" gorm:"size:255;not null"`
	Message         string     `json:"message" gorm:"type:text"`
	DesignRequestID *uuid.UUID `json:"design_request_id,omitempty" gorm:"type:uuid;index"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
}

type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:255;not null"`
	ResourceType string     `json:"resource_type" gorm:"size:50;index"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid;index"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"size:500"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
}
