package models

import (
	"time"

	"gorm.io/datatypes"
)

// MaxSubmissionsPerEmail caps how many lead records may exist for one normalized email.
const MaxSubmissionsPerEmail = 2

// Lead is one accepted waitlist submission.
type Lead struct {
	BaseModel

	Email     string            `gorm:"size:320;not null;index" json:"email"`
	Role      string            `gorm:"type:text" json:"role"`
	UseCase   string            `gorm:"type:text" json:"useCase"`
	Challenge string            `gorm:"type:text" json:"challenge"`
	Count     string            `gorm:"type:text" json:"count"`
	Company   string            `gorm:"type:text" json:"company"`
	Meta      datatypes.JSONMap `json:"meta"`
	UserAgent string            `gorm:"type:text" json:"ua"`
	IP        string            `gorm:"size:64" json:"ip"`

	SubmittedAt time.Time `gorm:"not null;index" json:"ts"`
}
