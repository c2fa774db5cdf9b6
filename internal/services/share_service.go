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
)

// ShareDTO represents one user's standing on a shared pattern.
type ShareDTO struct {
	UserID    string   `json:"user_id"`
	Username  string   `json:"username,omitempty"`
	Rights    []string `json:"rights"`
	GrantedBy string   `json:"granted_by,omitempty"`
}

// ShareService manages non-owner access to patterns on top of the access core.
type ShareService struct {
	db     *gorm.DB
	access *access.Service
}

// NewShareService constructs a share service.
func NewShareService(db *gorm.DB, accessSvc *access.Service) (*ShareService, error) {
	if db == nil {
		return nil, errors.New("share service: db is required")
	}
	if accessSvc == nil {
		return nil, errors.New("share service: access service is required")
	}
	return &ShareService{db: db, access: accessSvc}, nil
}

// ShareInput describes a grant or replace request.
type ShareInput struct {
	UserID  string   `json:"user_id" validate:"required"`
	Rights  []string `json:"rights" validate:"required,min=1"`
	Replace bool     `json:"replace"`
}

// List returns the grants issued on the pattern.
func (s *ShareService) List(ctx context.Context, requesterID, patternID string) ([]ShareDTO, error) {
	ctx = ensureContext(ctx)

	resourceID, err := s.ensureShareAccess(ctx, requesterID, patternID)
	if err != nil {
		return nil, err
	}

	grants, err := s.access.Entries(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return s.buildDTOs(ctx, grants)
}

// Share grants rights on the pattern to another user. With Replace the
// supplied rights overwrite anything previously accumulated; otherwise they
// merge into the existing grant.
func (s *ShareService) Share(ctx context.Context, requesterID, patternID string, input ShareInput) (*ShareDTO, error) {
	ctx = ensureContext(ctx)

	resourceID, err := s.ensureShareAccess(ctx, requesterID, patternID)
	if err != nil {
		return nil, err
	}

	targetID := strings.TrimSpace(input.UserID)
	if targetID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	var target models.User
	if err := s.db.WithContext(ctx).Select("id", "username").First(&target, "id = ?", targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewBadRequest("user not found")
		}
		return nil, fmt.Errorf("share service: load user: %w", err)
	}

	rights, err := access.ParseRights(input.Rights)
	if err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	var grant *models.AccessGrant
	if input.Replace {
		grant, err = s.access.Set(ctx, resourceID, targetID, rights, requesterID)
	} else {
		grant, err = s.access.Grant(ctx, resourceID, targetID, rights, requesterID)
	}
	if err != nil {
		return nil, err
	}

	held, err := access.RightsOf(grant)
	if err != nil {
		return nil, err
	}

	dto := &ShareDTO{
		UserID:   targetID,
		Username: target.Username,
		Rights:   held.Strings(),
	}
	if grant.GrantedByID != nil {
		dto.GrantedBy = *grant.GrantedByID
	}
	return dto, nil
}

// Unshare revokes the target user's grant on the pattern.
func (s *ShareService) Unshare(ctx context.Context, requesterID, patternID, targetUserID string) error {
	ctx = ensureContext(ctx)

	resourceID, err := s.ensureShareAccess(ctx, requesterID, patternID)
	if err != nil {
		return err
	}

	return s.access.Revoke(ctx, resourceID, targetUserID)
}

// ensureShareAccess resolves the pattern's resource and verifies the
// requester may manage sharing on it (write rights, owner included).
func (s *ShareService) ensureShareAccess(ctx context.Context, requesterID, patternID string) (string, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return "", apperrors.ErrUnauthorized
	}
	patternID = strings.TrimSpace(patternID)
	if patternID == "" {
		return "", apperrors.NewBadRequest("pattern id is required")
	}

	var pattern models.Pattern
	err := s.db.WithContext(ctx).
		Select("id", "owner_user_id").
		First(&pattern, "id = ?", patternID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("share service: load pattern: %w", err)
	}

	resource, err := s.access.Registry().EnsureResource(ctx, access.TypePattern, pattern.ID, pattern.OwnerUserID)
	if err != nil {
		return "", err
	}

	if err := s.access.AssertRights(ctx, requesterID, resource.ID, access.NewRightSet(access.RightWrite), true); err != nil {
		return "", err
	}
	return resource.ID, nil
}

func (s *ShareService) buildDTOs(ctx context.Context, grants []models.AccessGrant) ([]ShareDTO, error) {
	if len(grants) == 0 {
		return []ShareDTO{}, nil
	}

	userIDs := make([]string, 0, len(grants))
	for _, grant := range grants {
		userIDs = append(userIDs, grant.UserID)
	}

	var users []models.User
	err := s.db.WithContext(ctx).
		Select("id", "username").
		Where("id IN ?", normaliseIDs(userIDs)).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("share service: load users: %w", err)
	}

	usernames := make(map[string]string, len(users))
	for _, user := range users {
		usernames[user.ID] = user.Username
	}

	dtos := make([]ShareDTO, 0, len(grants))
	for _, grant := range grants {
		held, err := access.RightsOf(&grant)
		if err != nil {
			return nil, err
		}

		dto := ShareDTO{
			UserID:   grant.UserID,
			Username: usernames[grant.UserID],
			Rights:   held.Strings(),
		}
		if grant.GrantedByID != nil {
			dto.GrantedBy = *grant.GrantedByID
		}
		dtos = append(dtos, dto)
	}
	return dtos, nil
}
