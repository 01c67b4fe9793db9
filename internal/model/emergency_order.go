package model

import "time"

// EmergencyOrder represents an out-of-hours service request (SAT) pushed
// to the on-call roster. Ownership lives exclusively in ClaimedByID and is
// only ever mutated through the claim operation.
type EmergencyOrder struct {
	ID            int64  `gorm:"primaryKey"`
	ClientID      int64  `gorm:"index;not null"`
	Description   string `gorm:"size:1024"`
	ClaimedByID   *int64 `gorm:"index"`
	NotifyPending bool   `gorm:"not null;default:false"`
	Closed        bool   `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Associations
	Client    Client      `gorm:"constraint:OnDelete:CASCADE"`
	ClaimedBy *Technician `gorm:"foreignKey:ClaimedByID"`
}
