package models

import (
	"gorm.io/datatypes"
)

// Pattern represents a sewing pattern in the catalog.
type Pattern struct {
	BaseModel

	Name        string  `gorm:"type:varchar(160);not null;index" json:"name"`
	Description string  `gorm:"type:text" json:"description,omitempty"`
	Designer    string  `gorm:"type:varchar(120)" json:"designer,omitempty"`
	Format      string  `gorm:"type:varchar(20);index" json:"format,omitempty"`
	Difficulty  int     `gorm:"default:0" json:"difficulty"`
	OwnerUserID string  `gorm:"type:uuid;not null;index" json:"owner_user_id"`

	// Measurements stores the size chart captured for the pattern (free-form JSON).
	Measurements datatypes.JSON `json:"measurements,omitempty"`

	Tags  []Tag         `gorm:"many2many:pattern_tags;" json:"tags,omitempty"`
	Files []PatternFile `gorm:"foreignKey:PatternID" json:"files,omitempty"`
}
