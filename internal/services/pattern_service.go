package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/patternloft/patternloft/internal/access"
	"github.com/patternloft/patternloft/internal/models"
	apperrors "github.com/patternloft/patternloft/pkg/errors"
	"github.com/patternloft/patternloft/pkg/validator"
)

// PatternService manages catalog patterns. All reads and mutations gate
// through the access layer; the service never inspects grant rows itself.
type PatternService struct {
	db     *gorm.DB
	access *access.Service
}

// NewPatternService constructs a pattern service.
func NewPatternService(db *gorm.DB, accessSvc *access.Service) (*PatternService, error) {
	if db == nil {
		return nil, errors.New("pattern service: db is required")
	}
	if accessSvc == nil {
		return nil, errors.New("pattern service: access service is required")
	}
	return &PatternService{db: db, access: accessSvc}, nil
}

// CreatePatternInput describes the payload for creating a pattern.
type CreatePatternInput struct {
	Name         string         `json:"name" validate:"required,max=160"`
	Description  string         `json:"description"`
	Designer     string         `json:"designer" validate:"max=120"`
	Format       string         `json:"format" validate:"max=20"`
	Difficulty   int            `json:"difficulty" validate:"gte=0,lte=5"`
	Measurements map[string]any `json:"measurements"`
}

// UpdatePatternInput describes mutable pattern fields.
type UpdatePatternInput struct {
	Name         string         `json:"name" validate:"max=160"`
	Description  *string        `json:"description"`
	Designer     *string        `json:"designer"`
	Format       *string        `json:"format"`
	Difficulty   *int           `json:"difficulty"`
	Measurements map[string]any `json:"measurements"`
}

// Create stores a new pattern and registers its access resource, reusing the
// pattern's id as the resource id.
func (s *PatternService) Create(ctx context.Context, ownerID string, input CreatePatternInput) (*models.Pattern, error) {
	ctx = ensureContext(ctx)

	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	measurements, err := encodeMeasurements(input.Measurements)
	if err != nil {
		return nil, err
	}

	pattern := &models.Pattern{
		Name:         strings.TrimSpace(input.Name),
		Description:  strings.TrimSpace(input.Description),
		Designer:     strings.TrimSpace(input.Designer),
		Format:       strings.ToLower(strings.TrimSpace(input.Format)),
		Difficulty:   input.Difficulty,
		OwnerUserID:  ownerID,
		Measurements: measurements,
	}

	if err := s.db.WithContext(ctx).Create(pattern).Error; err != nil {
		return nil, fmt.Errorf("pattern service: create pattern: %w", err)
	}

	ref := pattern.ID
	if _, err := s.access.Registry().CreateResource(ctx, access.CreateResourceInput{
		ID:          pattern.ID,
		Type:        access.TypePattern,
		OwnerID:     ownerID,
		ReferenceID: &ref,
	}); err != nil {
		return nil, err
	}

	return pattern, nil
}

// Get returns a pattern the user may read.
func (s *PatternService) Get(ctx context.Context, userID, patternID string) (*models.Pattern, error) {
	ctx = ensureContext(ctx)

	pattern, err := s.load(ctx, patternID)
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

	if err := s.db.WithContext(ctx).
		Preload("Tags").
		Preload("Files").
		First(pattern, "id = ?", pattern.ID).Error; err != nil {
		return nil, fmt.Errorf("pattern service: reload pattern: %w", err)
	}
	return pattern, nil
}

// Update modifies a pattern after a write-rights check.
func (s *PatternService) Update(ctx context.Context, userID, patternID string, input UpdatePatternInput) (*models.Pattern, error) {
	ctx = ensureContext(ctx)

	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	pattern, err := s.load(ctx, patternID)
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

	updates := map[string]any{}
	if name := strings.TrimSpace(input.Name); name != "" && name != pattern.Name {
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Designer != nil {
		updates["designer"] = strings.TrimSpace(*input.Designer)
	}
	if input.Format != nil {
		updates["format"] = strings.ToLower(strings.TrimSpace(*input.Format))
	}
	if input.Difficulty != nil {
		updates["difficulty"] = *input.Difficulty
	}
	if input.Measurements != nil {
		measurements, err := encodeMeasurements(input.Measurements)
		if err != nil {
			return nil, err
		}
		updates["measurements"] = measurements
	}

	if len(updates) == 0 {
		return pattern, nil
	}

	if err := s.db.WithContext(ctx).Model(pattern).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("pattern service: update pattern: %w", err)
	}

	if err := s.db.WithContext(ctx).First(pattern, "id = ?", pattern.ID).Error; err != nil {
		return nil, fmt.Errorf("pattern service: reload pattern: %w", err)
	}
	return pattern, nil
}

// Delete removes a pattern, its files, and every access row tied to them.
func (s *PatternService) Delete(ctx context.Context, userID, patternID string) error {
	ctx = ensureContext(ctx)

	pattern, err := s.load(ctx, patternID)
	if err != nil {
		return err
	}

	resource, err := s.access.Registry().EnsureResource(ctx, access.TypePattern, pattern.ID, pattern.OwnerUserID)
	if err != nil {
		return err
	}
	if err := s.access.AssertRights(ctx, userID, resource.ID, access.NewRightSet(access.RightDelete), true); err != nil {
		return err
	}

	var fileIDs []string
	err = s.db.WithContext(ctx).Model(&models.PatternFile{}).
		Where("pattern_id = ?", pattern.ID).
		Pluck("id", &fileIDs).Error
	if err != nil {
		return fmt.Errorf("pattern service: list files: %w", err)
	}

	// Entity rows and their access rows go in one transaction so a failure
	// never leaves grants pointing at a deleted pattern.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(pattern).Association("Tags").Clear(); err != nil {
			return fmt.Errorf("pattern service: clear tags: %w", err)
		}
		if err := tx.Where("pattern_id = ?", pattern.ID).Delete(&models.PatternFile{}).Error; err != nil {
			return fmt.Errorf("pattern service: delete files: %w", err)
		}
		if err := tx.Delete(pattern).Error; err != nil {
			return fmt.Errorf("pattern service: delete pattern: %w", err)
		}

		if err := s.access.Registry().DeleteResourcesByReferenceTx(tx, pattern.ID, access.TypePattern); err != nil {
			return err
		}
		for _, fileID := range fileIDs {
			if err := s.access.Registry().DeleteResourcesByReferenceTx(tx, fileID, access.TypeFile); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns patterns the user owns plus those shared with them.
func (s *PatternService) List(ctx context.Context, userID string) ([]models.Pattern, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	shared := s.db.WithContext(ctx).Table("access_resources").
		Select("access_resources.reference_id").
		Joins("JOIN access_grants ON access_grants.resource_id = access_resources.id").
		Where("access_grants.user_id = ? AND access_resources.type = ?", userID, access.TypePattern)

	var patterns []models.Pattern
	err := s.db.WithContext(ctx).
		Preload("Tags").
		Where("owner_user_id = ? OR id IN (?)", userID, shared).
		Order("created_at DESC").
		Find(&patterns).Error
	if err != nil {
		return nil, fmt.Errorf("pattern service: list patterns: %w", err)
	}
	return patterns, nil
}

// AssignTag links an approved tag to a pattern the user may write.
func (s *PatternService) AssignTag(ctx context.Context, userID, patternID, tagID string) error {
	ctx = ensureContext(ctx)

	pattern, err := s.load(ctx, patternID)
	if err != nil {
		return err
	}

	resource, err := s.access.Registry().EnsureResource(ctx, access.TypePattern, pattern.ID, pattern.OwnerUserID)
	if err != nil {
		return err
	}
	if err := s.access.AssertRights(ctx, userID, resource.ID, access.NewRightSet(access.RightWrite), true); err != nil {
		return err
	}

	var tag models.Tag
	if err := s.db.WithContext(ctx).First(&tag, "id = ?", tagID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("pattern service: load tag: %w", err)
	}
	if tag.Status != models.TagStatusApproved {
		return apperrors.NewBadRequest("tag is not approved")
	}

	if err := s.db.WithContext(ctx).Model(pattern).Association("Tags").Append(&tag); err != nil {
		return fmt.Errorf("pattern service: assign tag: %w", err)
	}
	return nil
}

// RemoveTag unlinks a tag from a pattern the user may write.
func (s *PatternService) RemoveTag(ctx context.Context, userID, patternID, tagID string) error {
	ctx = ensureContext(ctx)

	pattern, err := s.load(ctx, patternID)
	if err != nil {
		return err
	}

	resource, err := s.access.Registry().EnsureResource(ctx, access.TypePattern, pattern.ID, pattern.OwnerUserID)
	if err != nil {
		return err
	}
	if err := s.access.AssertRights(ctx, userID, resource.ID, access.NewRightSet(access.RightWrite), true); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(pattern).Association("Tags").Delete(&models.Tag{BaseModel: models.BaseModel{ID: tagID}}); err != nil {
		return fmt.Errorf("pattern service: remove tag: %w", err)
	}
	return nil
}

func (s *PatternService) load(ctx context.Context, patternID string) (*models.Pattern, error) {
	patternID = strings.TrimSpace(patternID)
	if patternID == "" {
		return nil, apperrors.NewBadRequest("pattern id is required")
	}

	var pattern models.Pattern
	if err := s.db.WithContext(ctx).First(&pattern, "id = ?", patternID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("pattern service: load pattern: %w", err)
	}
	return &pattern, nil
}

func encodeMeasurements(measurements map[string]any) (datatypes.JSON, error) {
	if len(measurements) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(measurements)
	if err != nil {
		return nil, apperrors.NewBadRequest("measurements must be JSON serialisable")
	}
	return datatypes.JSON(raw), nil
}
