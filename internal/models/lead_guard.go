package models

import "time"

// LeadGuard is a per-email lock row. Lead writers take it FOR UPDATE before counting
// existing leads so concurrent submissions for one email cannot both pass the cap.
type LeadGuard struct {
	Email     string `gorm:"primaryKey;size:320"`
	CreatedAt time.Time
}
