package model

import "time"

// Technician represents a field technician in the emergency roster.
type Technician struct {
	ID             int64  `gorm:"primaryKey"`
	Name           string `gorm:"size:256;not null"`
	OnCall         bool   `gorm:"not null;default:false"`
	Active         bool   `gorm:"not null;default:true"`
	CurrentOrderID *int64 `gorm:"index"` // Mirror of the at-most-one held emergency order
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Associations
	Clients      []*Client       `gorm:"many2many:technician_client_mapping;"`
	CurrentOrder *EmergencyOrder `gorm:"foreignKey:CurrentOrderID"`
}
