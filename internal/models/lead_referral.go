package models

import "time"

// LeadReferral records the latest referral source reported for an email. The row is keyed
// by the SHA-256 hex digest of the normalized email; the address itself is not stored.
type LeadReferral struct {
	EmailHash      string    `gorm:"primaryKey;size:64" json:"emailHash"`
	ReferralSource string    `gorm:"type:text" json:"referralSource"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
