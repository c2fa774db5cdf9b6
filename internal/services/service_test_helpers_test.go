package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/patternloft/patternloft/internal/access"
	"github.com/patternloft/patternloft/internal/database/testutil"
	"github.com/patternloft/patternloft/internal/models"
)

type serviceFixture struct {
	db     *gorm.DB
	access *access.Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	registry, err := access.NewRegistry(db)
	require.NoError(t, err)

	accessSvc, err := access.NewService(db, registry)
	require.NoError(t, err)

	return &serviceFixture{db: db, access: accessSvc}
}

func (f *serviceFixture) createUser(t *testing.T, id, username string, admin bool) *models.User {
	t.Helper()

	user := &models.User{
		BaseModel: models.BaseModel{ID: id},
		Username:  username,
		Email:     username + "@example.com",
		Password:  "hashed",
		IsAdmin:   admin,
		IsActive:  true,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *serviceFixture) createPattern(t *testing.T, ownerID, name string) *models.Pattern {
	t.Helper()

	svc, err := NewPatternService(f.db, f.access)
	require.NoError(t, err)

	pattern, err := svc.Create(context.Background(), ownerID, CreatePatternInput{Name: name})
	require.NoError(t, err)
	return pattern
}
