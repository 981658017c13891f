package models

import "time"

// Project owns issues and sprints and the issue key sequence.
type Project struct {
	ID   string `gorm:"primaryKey;size:32"`
	Key  string `gorm:"size:16;not null;uniqueIndex"`
	Name string `gorm:"size:128;not null"`
	// LastNumber is the highest issue number ever handed out; it never decreases.
	LastNumber int64     `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false"`
}
