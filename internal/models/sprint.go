package models

import "time"

// SprintStatus is derived from dates and the explicit close action.
type SprintStatus string

const (
	SprintPlanned   SprintStatus = "PLANNED"
	SprintActive    SprintStatus = "ACTIVE"
	SprintCompleted SprintStatus = "COMPLETED"
)

// Sprint is a time-boxed container for issues.
type Sprint struct {
	ID        string    `gorm:"primaryKey;size:32"`
	ProjectID string    `gorm:"size:32;not null;index"`
	Name      string    `gorm:"size:128;not null"`
	Goal      string    `gorm:"type:text"`
	StartDate time.Time `gorm:"not null"`
	EndDate   time.Time `gorm:"not null"`
	ClosedAt  *time.Time
	Version   int64     `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

// Closed reports whether the sprint was explicitly closed.
func (s *Sprint) Closed() bool { return s.ClosedAt != nil }
