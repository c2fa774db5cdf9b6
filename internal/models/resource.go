package models

// Resource is the access-control handle for a protected business entity.
// ReferenceID points back at the entity's own primary key; when it is nil the
// resource id itself serves as the reference. Ownership never changes after
// creation.
type Resource struct {
	BaseModel

	Type        string  `gorm:"type:varchar(64);not null;uniqueIndex:idx_resource_type_reference,priority:1" json:"type"`
	OwnerID     string  `gorm:"type:uuid;not null;index" json:"owner_id"`
	ReferenceID *string `gorm:"type:uuid;uniqueIndex:idx_resource_type_reference,priority:2" json:"reference_id,omitempty"`
}

// TableName overrides the default table name for GORM.
func (Resource) TableName() string {
	return "access_resources"
}
