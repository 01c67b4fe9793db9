package model

import "time"

// PushToken holds the web push subscription of a technician's device.
type PushToken struct {
	Endpoint     string `gorm:"primaryKey"`
	P256DH       string `gorm:"column:p256dh;not null"`
	Auth         string `gorm:"not null"`
	TechnicianID int64  `gorm:"index;not null"`
	CreatedAt    time.Time `gorm:"not null"`

	// Associations
	Technician Technician `gorm:"constraint:OnDelete:CASCADE"`
}
