package models

import (
	"strings"
)

// Tag statuses. Tags proposed by regular users stay pending until an admin
// approves them into the shared taxonomy.
const (
	TagStatusPending  = "pending"
	TagStatusApproved = "approved"
)

// Tag is a shared taxonomy entry applied to patterns.
type Tag struct {
	BaseModel

	Name        string `gorm:"type:varchar(80);uniqueIndex;not null" json:"name"`
	Status      string `gorm:"type:varchar(20);not null;index;default:pending" json:"status"`
	CreatedByID string `gorm:"type:uuid;not null;index" json:"created_by_id"`

	Patterns []Pattern `gorm:"many2many:pattern_tags;" json:"-"`
}

// Normalise lower-cases and trims the tag name so lookups stay case-insensitive.
func (t *Tag) Normalise() {
	t.Name = strings.ToLower(strings.TrimSpace(t.Name))
}
