package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/patternloft/patternloft/internal/access"
	"github.com/patternloft/patternloft/internal/models"
	apperrors "github.com/patternloft/patternloft/pkg/errors"
	"github.com/patternloft/patternloft/pkg/metrics"
	"github.com/patternloft/patternloft/pkg/validator"
)

// FileService records upload metadata for pattern files. Blobs live in
// external storage; this service only tracks their locators and gates access.
type FileService struct {
	db     *gorm.DB
	access *access.Service
}

// NewFileService constructs a file service.
func NewFileService(db *gorm.DB, accessSvc *access.Service) (*FileService, error) {
	if db == nil {
		return nil, errors.New("file service: db is required")
	}
	if accessSvc == nil {
		return nil, errors.New("file service: access service is required")
	}
	return &FileService{db: db, access: accessSvc}, nil
}

// AttachFileInput describes the metadata captured for an uploaded file.
type AttachFileInput struct {
	FileName    string `json:"file_name" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"max=120"`
	SizeBytes   int64  `json:"size_bytes" validate:"gte=0"`
	Checksum    string `json:"checksum" validate:"max=64"`
	StoragePath string `json:"storage_path" validate:"required,max=512"`
}

// Attach records an uploaded file against a pattern the user may write and
// registers a file-typed resource owned by the uploader.
func (s *FileService) Attach(ctx context.Context, userID, patternID string, input AttachFileInput) (*models.PatternFile, error) {
	ctx = ensureContext(ctx)

	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	pattern, err := s.loadPattern(ctx, patternID)
	if err != nil {
		return nil, err
	}

	resource, err := s.access.Registry().EnsureResource(ctx, access.TypePattern, pattern.ID, pattern.OwnerUserID)
	if err != nil {
		return nil, err
	}
	if err := s.access.AssertRights(ctx, userID, resource.ID, access.NewRightSet(access.RightWrite), true); err != nil {
		return nil, err
	}

	file := &models.PatternFile{
		PatternID:    pattern.ID,
		FileName:     strings.TrimSpace(input.FileName),
		ContentType:  strings.TrimSpace(input.ContentType),
		SizeBytes:    input.SizeBytes,
		Checksum:     strings.TrimSpace(input.Checksum),
		StoragePath:  strings.TrimSpace(input.StoragePath),
		UploadedByID: userID,
	}

	if err := s.db.WithContext(ctx).Create(file).Error; err != nil {
		return nil, fmt.Errorf("file service: create file: %w", err)
	}

	ref := file.ID
	if _, err := s.access.Registry().CreateResource(ctx, access.CreateResourceInput{
		ID:          file.ID,
		Type:        access.TypeFile,
		OwnerID:     userID,
		ReferenceID: &ref,
	}); err != nil {
		return nil, err
	}

	metrics.PatternUploads.Inc()
	return file, nil
}

// ListForPattern returns file metadata for a pattern the user may read.
func (s *FileService) ListForPattern(ctx context.Context, userID, patternID string) ([]models.PatternFile, error) {
	ctx = ensureContext(ctx)

	pattern, err := s.loadPattern(ctx, patternID)
	if err != nil {
		return nil, err
	}

	resource, err := s.access.Registry().EnsureResource(ctx, access.TypePattern, pattern.ID, pattern.OwnerUserID)
	if err != nil {
		return nil, err
	}
	if err := s.access.AssertRights(ctx, userID, resource.ID, access.NewRightSet(access.RightRead), true); err != nil {
		return nil, err
	}

	var files []models.PatternFile
	err = s.db.WithContext(ctx).
		Where("pattern_id = ?", pattern.ID).
		Order("created_at ASC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("file service: list files: %w", err)
	}
	return files, nil
}

// Delete removes a file row and cascades its access rows. The uploader owns
// the file resource, so owner bypass covers them; anyone else needs a delete
// grant on the file.
func (s *FileService) Delete(ctx context.Context, userID, fileID string) error {
	ctx = ensureContext(ctx)

	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return apperrors.NewBadRequest("file id is required")
	}

	var file models.PatternFile
	if err := s.db.WithContext(ctx).First(&file, "id = ?", fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("file service: load file: %w", err)
	}

	resource, err := s.access.Registry().EnsureResource(ctx, access.TypeFile, file.ID, file.UploadedByID)
	if err != nil {
		return err
	}
	if err := s.access.AssertRights(ctx, userID, resource.ID, access.NewRightSet(access.RightDelete), true); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&file).Error; err != nil {
			return fmt.Errorf("file service: delete file: %w", err)
		}
		return s.access.Registry().DeleteResourcesByReferenceTx(tx, file.ID, access.TypeFile)
	})
}

func (s *FileService) loadPattern(ctx context.Context, patternID string) (*models.Pattern, error) {
	patternID = strings.TrimSpace(patternID)
	if patternID == "" {
		return nil, apperrors.NewBadRequest("pattern id is required")
	}

	var pattern models.Pattern
	if err := s.db.WithContext(ctx).First(&pattern, "id = ?", patternID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("file service: load pattern: %w", err)
	}
	return &pattern, nil
}
