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
)

// Registry creates and resolves resource identities. It is the single
// authority mapping business entities onto the rows the rights layer keys on.
type Registry struct {
	db *gorm.DB
}

// NewRegistry constructs a resource registry backed by the provided database.
func NewRegistry(db *gorm.DB) (*Registry, error) {
	if db == nil {
		return nil, errors.New("access registry: db is required")
	}
	return &Registry{db: db}, nil
}

// CreateResourceInput describes an explicit resource registration.
type CreateResourceInput struct {
	ID          string // optional; generated when empty
	Type        ResourceType
	OwnerID     string
	ReferenceID *string
}

// CreateResource registers a new resource row. A caller-supplied ID lets the
// business entity's own primary key double as the resource id.
func (r *Registry) CreateResource(ctx context.Context, input CreateResourceInput) (*models.Resource, error) {
	ctx = ensureContext(ctx)

	resourceType := strings.TrimSpace(input.Type)
	if resourceType == "" {
		return nil, apperrors.NewBadRequest("resource type is required")
	}
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return nil, apperrors.NewBadRequest("resource owner is required")
	}

	resource := models.Resource{
		BaseModel:   models.BaseModel{ID: strings.TrimSpace(input.ID)},
		Type:        resourceType,
		OwnerID:     ownerID,
		ReferenceID: input.ReferenceID,
	}

	if err := r.db.WithContext(ctx).Create(&resource).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("resource already registered").WithInternal(err)
		}
		return nil, fmt.Errorf("access registry: create resource: %w", err)
	}

	return &resource, nil
}

// EnsureResource finds or creates the resource identified by (type, reference).
// The insert rides on the (type, reference_id) unique index: a racing caller's
// insert is dropped and the winner's row is fetched, so repeat calls with the
// same arguments are idempotent and the original owner stays authoritative.
func (r *Registry) EnsureResource(ctx context.Context, resourceType ResourceType, referenceID, ownerID string) (*models.Resource, error) {
	ctx = ensureContext(ctx)

	resourceType = strings.TrimSpace(resourceType)
	referenceID = strings.TrimSpace(referenceID)
	ownerID = strings.TrimSpace(ownerID)
	if resourceType == "" || referenceID == "" || ownerID == "" {
		return nil, apperrors.NewBadRequest("resource type, reference and owner are required")
	}

	candidate := models.Resource{
		BaseModel:   models.BaseModel{ID: referenceID},
		Type:        resourceType,
		OwnerID:     ownerID,
		ReferenceID: &referenceID,
	}

	createErr := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "type"}, {Name: "reference_id"}},
			DoNothing: true,
		}).
		Create(&candidate).Error
	if createErr != nil && !database.IsUniqueViolation(createErr) {
		return nil, fmt.Errorf("access registry: ensure resource: %w", createErr)
	}

	var resource models.Resource
	err := r.db.WithContext(ctx).
		First(&resource, "type = ? AND reference_id = ?", resourceType, referenceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) && createErr != nil {
			return nil, fmt.Errorf("access registry: ensure resource: %w", createErr)
		}
		return nil, fmt.Errorf("access registry: load resource: %w", err)
	}

	return &resource, nil
}

// GetResource loads a resource by id, failing with ErrNotFound when absent.
func (r *Registry) GetResource(ctx context.Context, resourceID string) (*models.Resource, error) {
	ctx = ensureContext(ctx)

	var resource models.Resource
	if err := r.db.WithContext(ctx).First(&resource, "id = ?", resourceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("access registry: load resource: %w", err)
	}
	return &resource, nil
}

// DeleteResource removes a resource together with every grant referencing it.
func (r *Registry) DeleteResource(ctx context.Context, resourceID string) error {
	ctx = ensureContext(ctx)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("resource_id = ?", resourceID).Delete(&models.AccessGrant{}).Error; err != nil {
			return fmt.Errorf("access registry: delete grants: %w", err)
		}

		res := tx.Where("id = ?", resourceID).Delete(&models.Resource{})
		if res.Error != nil {
			return fmt.Errorf("access registry: delete resource: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
}

// DeleteResourcesByReference removes every resource registered for the given
// business entity, grants first so no orphaned grant survives. Matching zero
// resources is not an error.
func (r *Registry) DeleteResourcesByReference(ctx context.Context, referenceID string, resourceType ResourceType) error {
	ctx = ensureContext(ctx)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.DeleteResourcesByReferenceTx(tx, referenceID, resourceType)
	})
}

// DeleteResourcesByReferenceTx runs the same cascade inside the caller's
// transaction, so entity rows and their access rows disappear atomically.
func (r *Registry) DeleteResourcesByReferenceTx(tx *gorm.DB, referenceID string, resourceType ResourceType) error {
	var resourceIDs []string
	err := tx.Model(&models.Resource{}).
		Where("type = ? AND reference_id = ?", resourceType, referenceID).
		Pluck("id", &resourceIDs).Error
	if err != nil {
		return fmt.Errorf("access registry: find resources by reference: %w", err)
	}
	if len(resourceIDs) == 0 {
		return nil
	}

	if err := tx.Where("resource_id IN ?", resourceIDs).Delete(&models.AccessGrant{}).Error; err != nil {
		return fmt.Errorf("access registry: delete grants by reference: %w", err)
	}
	if err := tx.Where("id IN ?", resourceIDs).Delete(&models.Resource{}).Error; err != nil {
		return fmt.Errorf("access registry: delete resources by reference: %w", err)
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
