package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/patternloft/patternloft/internal/database"
	"github.com/patternloft/patternloft/internal/models"
	apperrors "github.com/patternloft/patternloft/pkg/errors"
	"github.com/patternloft/patternloft/pkg/metrics"
)

// Service authorises actions on resources and maintains grant rows. It holds
// no caches or locks of its own; the backing store is the sole source of
// truth, so multiple instances are safe by construction.
type Service struct {
	db       *gorm.DB
	registry *Registry
}

// NewService constructs an access service sharing the registry's database.
func NewService(db *gorm.DB, registry *Registry) (*Service, error) {
	if db == nil {
		return nil, errors.New("access service: db is required")
	}
	if registry == nil {
		return nil, errors.New("access service: registry is required")
	}
	return &Service{db: db, registry: registry}, nil
}

// Registry exposes the underlying resource registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Grant merges the supplied rights into the user's grant on the resource,
// creating the row when absent. Existing rights are never lost; grantedBy is
// only updated when a new value is supplied. The read-modify-write runs in a
// transaction with the grant row locked on stores that support it.
func (s *Service) Grant(ctx context.Context, resourceID, userID string, rights RightSet, grantedBy string) (*models.AccessGrant, error) {
	ctx = ensureContext(ctx)

	if err := validatePair(resourceID, userID); err != nil {
		return nil, err
	}
	if err := validateRights(rights); err != nil {
		return nil, err
	}
	if _, err := s.registry.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}

	var grant models.AccessGrant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if tx.Dialector.Name() != "sqlite" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		err := query.First(&grant, "resource_id = ? AND user_id = ?", resourceID, userID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return s.createGrant(tx, &grant, resourceID, userID, rights, grantedBy)
		case err != nil:
			return fmt.Errorf("access service: load grant: %w", err)
		}

		existing, err := unmarshalRights(grant.Rights)
		if err != nil {
			return err
		}

		merged := existing.Union(rights)
		if merged.Equal(existing) && grantedBy == "" {
			return nil
		}

		raw, err := marshalRights(merged)
		if err != nil {
			return err
		}

		updates := map[string]any{"rights": raw}
		if grantedBy != "" {
			updates["granted_by_id"] = grantedBy
		}

		if err := tx.Model(&grant).Updates(updates).Error; err != nil {
			return fmt.Errorf("access service: update grant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &grant, nil
}

func (s *Service) createGrant(tx *gorm.DB, grant *models.AccessGrant, resourceID, userID string, rights RightSet, grantedBy string) error {
	raw, err := marshalRights(rights)
	if err != nil {
		return err
	}

	*grant = models.AccessGrant{
		ResourceID: resourceID,
		UserID:     userID,
		Rights:     raw,
	}
	if grantedBy != "" {
		grant.GrantedByID = &grantedBy
	}

	if err := tx.Create(grant).Error; err != nil {
		if database.IsUniqueViolation(err) {
			// Lost the insert race; the winner's row now exists, so merge into it.
			return s.mergeIntoExisting(tx, grant, resourceID, userID, rights, grantedBy)
		}
		return fmt.Errorf("access service: create grant: %w", err)
	}
	return nil
}

func (s *Service) mergeIntoExisting(tx *gorm.DB, grant *models.AccessGrant, resourceID, userID string, rights RightSet, grantedBy string) error {
	// The failed insert already stamped a generated id on the struct; clear
	// it so the lookup keys on the pair alone and finds the winner's row.
	*grant = models.AccessGrant{}
	if err := tx.First(grant, "resource_id = ? AND user_id = ?", resourceID, userID).Error; err != nil {
		return fmt.Errorf("access service: reload grant: %w", err)
	}

	existing, err := unmarshalRights(grant.Rights)
	if err != nil {
		return err
	}

	raw, err := marshalRights(existing.Union(rights))
	if err != nil {
		return err
	}

	updates := map[string]any{"rights": raw}
	if grantedBy != "" {
		updates["granted_by_id"] = grantedBy
	}

	if err := tx.Model(grant).Updates(updates).Error; err != nil {
		return fmt.Errorf("access service: merge grant: %w", err)
	}
	return nil
}

// Revoke removes the user's grant on the resource. Revoking an absent grant
// is a no-op, never an error.
func (s *Service) Revoke(ctx context.Context, resourceID, userID string) error {
	ctx = ensureContext(ctx)

	if err := validatePair(resourceID, userID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).
		Where("resource_id = ? AND user_id = ?", resourceID, userID).
		Delete(&models.AccessGrant{}).Error
	if err != nil {
		return fmt.Errorf("access service: revoke grant: %w", err)
	}
	return nil
}

// Set replaces the user's grant with exactly the supplied rights, discarding
// anything previously accumulated. Delete and create run in one transaction
// so the replacement is never observed half-applied.
func (s *Service) Set(ctx context.Context, resourceID, userID string, rights RightSet, grantedBy string) (*models.AccessGrant, error) {
	ctx = ensureContext(ctx)

	if err := validatePair(resourceID, userID); err != nil {
		return nil, err
	}
	if err := validateRights(rights); err != nil {
		return nil, err
	}
	if _, err := s.registry.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}

	raw, err := marshalRights(rights)
	if err != nil {
		return nil, err
	}

	grant := models.AccessGrant{
		ResourceID: resourceID,
		UserID:     userID,
		Rights:     raw,
	}
	if grantedBy != "" {
		grant.GrantedByID = &grantedBy
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("resource_id = ? AND user_id = ?", resourceID, userID).
			Delete(&models.AccessGrant{}).Error; err != nil {
			return fmt.Errorf("access service: clear grant: %w", err)
		}
		if err := tx.Create(&grant).Error; err != nil {
			return fmt.Errorf("access service: set grant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &grant, nil
}

// Entries returns every grant issued for the resource.
func (s *Service) Entries(ctx context.Context, resourceID string) ([]models.AccessGrant, error) {
	ctx = ensureContext(ctx)

	var grants []models.AccessGrant
	err := s.db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("created_at ASC").
		Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("access service: list entries: %w", err)
	}
	return grants, nil
}

// AccessibleBy returns every grant held by the user across resources.
func (s *Service) AccessibleBy(ctx context.Context, userID string) ([]models.AccessGrant, error) {
	ctx = ensureContext(ctx)

	var grants []models.AccessGrant
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("access service: list accessible: %w", err)
	}
	return grants, nil
}

// UserHasRights reports whether the user may act on the resource. A missing
// resource fails with ErrNotFound rather than a silent deny so callers can
// tell the two cases apart. With allowOwner the resource owner always passes,
// grant row or not; otherwise every required right must be present (AND
// semantics), and an empty requirement always passes.
func (s *Service) UserHasRights(ctx context.Context, userID, resourceID string, required RightSet, allowOwner bool) (bool, error) {
	ctx = ensureContext(ctx)

	resource, err := s.registry.GetResource(ctx, resourceID)
	if err != nil {
		metrics.RightsChecks.WithLabelValues("unknown", "error").Inc()
		return false, err
	}

	allowed, err := s.evaluate(ctx, resource, userID, required, allowOwner)
	switch {
	case err != nil:
		metrics.RightsChecks.WithLabelValues(resource.Type, "error").Inc()
		return false, err
	case allowed:
		metrics.RightsChecks.WithLabelValues(resource.Type, "allow").Inc()
	default:
		metrics.RightsChecks.WithLabelValues(resource.Type, "deny").Inc()
	}
	return allowed, nil
}

func (s *Service) evaluate(ctx context.Context, resource *models.Resource, userID string, required RightSet, allowOwner bool) (bool, error) {
	if allowOwner && resource.OwnerID == userID {
		return true, nil
	}
	if len(required) == 0 {
		return true, nil
	}

	var grant models.AccessGrant
	err := s.db.WithContext(ctx).
		First(&grant, "resource_id = ? AND user_id = ?", resource.ID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("access service: load grant: %w", err)
	}

	held, err := unmarshalRights(grant.Rights)
	if err != nil {
		return false, err
	}
	return held.ContainsAll(required), nil
}

// AssertRights is the enforcement gate feature services call before touching
// an entity: it fails with ErrForbidden when UserHasRights returns false.
func (s *Service) AssertRights(ctx context.Context, userID, resourceID string, required RightSet, allowOwner bool) error {
	ok, err := s.UserHasRights(ctx, userID, resourceID, required, allowOwner)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrForbidden
	}
	return nil
}

// RightsOf decodes the rights stored on a grant row.
func RightsOf(grant *models.AccessGrant) (RightSet, error) {
	if grant == nil {
		return RightSet{}, nil
	}
	return unmarshalRights(grant.Rights)
}

func validatePair(resourceID, userID string) error {
	if strings.TrimSpace(resourceID) == "" {
		return apperrors.NewBadRequest("resource id is required")
	}
	if strings.TrimSpace(userID) == "" {
		return apperrors.NewBadRequest("user id is required")
	}
	return nil
}

func validateRights(rights RightSet) error {
	if len(rights) == 0 {
		return apperrors.NewBadRequest("at least one right is required")
	}
	for right := range rights {
		if !right.Valid() {
			return apperrors.NewBadRequest(fmt.Sprintf("%s %q", ErrUnknownRight.Error(), right))
		}
	}
	return nil
}
