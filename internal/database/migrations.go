package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/patternloft/patternloft/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Pattern{},
		&models.PatternFile{},
		&models.Tag{},
		&models.Resource{},
		&models.AccessGrant{},
	)
}

// AutoMigrateAndSeed convenience helper used during application start-up.
func AutoMigrateAndSeed(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := SeedData(db); err != nil {
		return fmt.Errorf("seed data: %w", err)
	}

	return nil
}

// SeedData inserts the default taxonomy tags every installation starts with.
func SeedData(db *gorm.DB) error {
	tags := []models.Tag{
		{BaseModel: models.BaseModel{ID: "tag-dress"}, Name: "dress", Status: models.TagStatusApproved, CreatedByID: "system"},
		{BaseModel: models.BaseModel{ID: "tag-trousers"}, Name: "trousers", Status: models.TagStatusApproved, CreatedByID: "system"},
		{BaseModel: models.BaseModel{ID: "tag-outerwear"}, Name: "outerwear", Status: models.TagStatusApproved, CreatedByID: "system"},
	}

	for _, tag := range tags {
		if err := db.Where(models.Tag{Name: tag.Name}).Attrs(tag).FirstOrCreate(&models.Tag{}).Error; err != nil {
			return err
		}
	}

	return nil
}
