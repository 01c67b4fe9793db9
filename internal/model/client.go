package model

import "time"

// Client represents a serviced customer site.
type Client struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:256;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Technicians []*Technician `gorm:"many2many:technician_client_mapping;"`
}
