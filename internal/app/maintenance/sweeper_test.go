package maintenance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/patternloft/patternloft/internal/access"
	testutil "github.com/patternloft/patternloft/internal/database/testutil"
	"github.com/patternloft/patternloft/internal/models"
)

func seedUser(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{
		BaseModel: models.BaseModel{ID: id},
		Username:  id,
		Email:     id + "@example.com",
		Password:  "hashed",
		IsActive:  true,
	}).Error)
}

func seedResource(t *testing.T, db *gorm.DB, id string, resourceType access.ResourceType, referenceID, ownerID string) {
	t.Helper()
	ref := referenceID
	require.NoError(t, db.Create(&models.Resource{
		BaseModel:   models.BaseModel{ID: id},
		Type:        resourceType,
		ReferenceID: &ref,
		OwnerID:     ownerID,
	}).Error)
}

func TestSweeperRemovesOrphanedResources(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	seedUser(t, db, "owner-1")
	seedUser(t, db, "user-2")

	pattern := models.Pattern{
		BaseModel:   models.BaseModel{ID: "pattern-live"},
		Name:        "Wrap Dress",
		OwnerUserID: "owner-1",
	}
	require.NoError(t, db.Create(&pattern).Error)

	// A live resource and one whose pattern row is gone.
	seedResource(t, db, "res-live", access.TypePattern, "pattern-live", "owner-1")
	seedResource(t, db, "res-orphan", access.TypePattern, "pattern-gone", "owner-1")

	require.NoError(t, db.Create(&models.AccessGrant{
		BaseModel:  models.BaseModel{ID: "grant-live"},
		ResourceID: "res-live",
		UserID:     "user-2",
		Rights:     []byte(`["read"]`),
	}).Error)
	require.NoError(t, db.Create(&models.AccessGrant{
		BaseModel:  models.BaseModel{ID: "grant-orphan"},
		ResourceID: "res-orphan",
		UserID:     "user-2",
		Rights:     []byte(`["read"]`),
	}).Error)

	sweeper := NewSweeper(db)
	stats, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Resources)

	var resources []models.Resource
	require.NoError(t, db.Find(&resources).Error)
	require.Len(t, resources, 1)
	require.Equal(t, "res-live", resources[0].ID)

	var grants []models.AccessGrant
	require.NoError(t, db.Find(&grants).Error)
	require.Len(t, grants, 1)
	require.Equal(t, "grant-live", grants[0].ID)
}

func TestSweeperRemovesGrantsForMissingUsers(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	seedUser(t, db, "owner-1")

	pattern := models.Pattern{
		BaseModel:   models.BaseModel{ID: "pattern-live"},
		Name:        "Wrap Dress",
		OwnerUserID: "owner-1",
	}
	require.NoError(t, db.Create(&pattern).Error)

	seedResource(t, db, "res-live", access.TypePattern, "pattern-live", "owner-1")

	require.NoError(t, db.Create(&models.AccessGrant{
		BaseModel:  models.BaseModel{ID: "grant-ghost"},
		ResourceID: "res-live",
		UserID:     "deleted-user",
		Rights:     []byte(`["read"]`),
	}).Error)

	sweeper := NewSweeper(db)
	stats, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.Resources)
	require.Equal(t, int64(1), stats.Grants)

	var count int64
	require.NoError(t, db.Model(&models.AccessGrant{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSweeperIsQuietWhenNothingIsOrphaned(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	seedUser(t, db, "owner-1")

	pattern := models.Pattern{
		BaseModel:   models.BaseModel{ID: "pattern-live"},
		Name:        "Wrap Dress",
		OwnerUserID: "owner-1",
	}
	require.NoError(t, db.Create(&pattern).Error)
	seedResource(t, db, "res-live", access.TypePattern, "pattern-live", "owner-1")

	sweeper := NewSweeper(db)
	stats, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepStats{}, stats)
}
