package models

// PatternFile records upload metadata for a file attached to a pattern.
// The blob itself lives in external storage; only the locator is kept here.
type PatternFile struct {
	BaseModel

	PatternID   string `gorm:"type:uuid;not null;index" json:"pattern_id"`
	FileName    string `gorm:"type:varchar(255);not null" json:"file_name"`
	ContentType string `gorm:"type:varchar(120)" json:"content_type,omitempty"`
	SizeBytes   int64  `gorm:"not null;default:0" json:"size_bytes"`
	Checksum    string `gorm:"type:varchar(64);index" json:"checksum,omitempty"`
	StoragePath string `gorm:"type:varchar(512);not null" json:"storage_path"`

	UploadedByID string `gorm:"type:uuid;not null;index" json:"uploaded_by_id"`
}
