package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/patternloft/patternloft/internal/access"
	"github.com/patternloft/patternloft/internal/database"
	"github.com/patternloft/patternloft/internal/models"
	apperrors "github.com/patternloft/patternloft/pkg/errors"
)

// TagService maintains the shared taxonomy. Proposals start pending; an admin
// approval publishes the tag and registers an access resource owned by the
// approving moderator.
type TagService struct {
	db     *gorm.DB
	access *access.Service
}

// NewTagService constructs a tag service.
func NewTagService(db *gorm.DB, accessSvc *access.Service) (*TagService, error) {
	if db == nil {
		return nil, errors.New("tag service: db is required")
	}
	if accessSvc == nil {
		return nil, errors.New("tag service: access service is required")
	}
	return &TagService{db: db, access: accessSvc}, nil
}

// Propose records a pending taxonomy entry.
func (s *TagService) Propose(ctx context.Context, userID, name string) (*models.Tag, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	tag := &models.Tag{
		Name:        name,
		Status:      models.TagStatusPending,
		CreatedByID: userID,
	}
	tag.Normalise()
	if tag.Name == "" {
		return nil, apperrors.NewBadRequest("tag name is required")
	}

	if err := s.db.WithContext(ctx).Create(tag).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("tag already exists")
		}
		return nil, fmt.Errorf("tag service: create tag: %w", err)
	}

	return tag, nil
}

// Approve publishes a pending tag into the shared taxonomy. The approving
// moderator becomes the owner of the tag's access resource.
func (s *TagService) Approve(ctx context.Context, approverID, tagID string) (*models.Tag, error) {
	ctx = ensureContext(ctx)

	approverID = strings.TrimSpace(approverID)
	if approverID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	tag, err := s.load(ctx, tagID)
	if err != nil {
		return nil, err
	}

	if tag.Status != models.TagStatusApproved {
		err := s.db.WithContext(ctx).Model(tag).Update("status", models.TagStatusApproved).Error
		if err != nil {
			return nil, fmt.Errorf("tag service: approve tag: %w", err)
		}
		tag.Status = models.TagStatusApproved
	}

	// Idempotent: re-approving finds the existing resource, keeping the
	// original approver as owner.
	if _, err := s.access.Registry().EnsureResource(ctx, access.TypeTag, tag.ID, approverID); err != nil {
		return nil, err
	}

	return tag, nil
}

// Delete removes a tag after a delete-rights check against its resource.
// Pending tags have no resource yet; their proposer is treated as owner.
func (s *TagService) Delete(ctx context.Context, userID, tagID string) error {
	ctx = ensureContext(ctx)

	tag, err := s.load(ctx, tagID)
	if err != nil {
		return err
	}

	resource, err := s.access.Registry().EnsureResource(ctx, access.TypeTag, tag.ID, tag.CreatedByID)
	if err != nil {
		return err
	}
	if err := s.access.AssertRights(ctx, userID, resource.ID, access.NewRightSet(access.RightDelete), true); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(tag).Association("Patterns").Clear(); err != nil {
			return fmt.Errorf("tag service: clear patterns: %w", err)
		}
		if err := tx.Delete(tag).Error; err != nil {
			return fmt.Errorf("tag service: delete tag: %w", err)
		}
		return s.access.Registry().DeleteResourcesByReferenceTx(tx, tag.ID, access.TypeTag)
	})
}

// List returns tags, optionally filtered by status.
func (s *TagService) List(ctx context.Context, status string) ([]models.Tag, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Order("name ASC")
	if status = strings.ToLower(strings.TrimSpace(status)); status != "" {
		query = query.Where("status = ?", status)
	}

	var tags []models.Tag
	if err := query.Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("tag service: list tags: %w", err)
	}
	return tags, nil
}

func (s *TagService) load(ctx context.Context, tagID string) (*models.Tag, error) {
	tagID = strings.TrimSpace(tagID)
	if tagID == "" {
		return nil, apperrors.NewBadRequest("tag id is required")
	}

	var tag models.Tag
	if err := s.db.WithContext(ctx).First(&tag, "id = ?", tagID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("tag service: load tag: %w", err)
	}
	return &tag, nil
}
