package models

import (
	"gorm.io/datatypes"
)

// AccessGrant stores the rights a non-owner user holds on a resource. At most
// one row exists per (resource, user) pair; rights accumulate inside the row.
type AccessGrant struct {
	BaseModel

	ResourceID  string         `gorm:"type:uuid;not null;uniqueIndex:idx_grant_resource_user,priority:1" json:"resource_id"`
	UserID      string         `gorm:"type:uuid;not null;uniqueIndex:idx_grant_resource_user,priority:2;index" json:"user_id"`
	Rights      datatypes.JSON `gorm:"not null" json:"rights"`
	GrantedByID *string        `gorm:"type:uuid" json:"granted_by_id,omitempty"`
}

// TableName overrides the default table name for GORM.
func (AccessGrant) TableName() string {
	return "access_grants"
}
