package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/patternloft/patternloft/internal/access"
	"github.com/patternloft/patternloft/internal/models"
	apperrors "github.com/patternloft/patternloft/pkg/errors"
)

func TestPatternCreateRegistersResource(t *testing.T) {
	f := newServiceFixture(t)
	f.createUser(t, "owner-1", "maker", false)

	pattern := f.createPattern(t, "owner-1", "Wrap Dress")

	resource, err := f.access.Registry().GetResource(context.Background(), pattern.ID)
	require.NoError(t, err)
	require.Equal(t, access.TypePattern, resource.Type)
	require.Equal(t, "owner-1", resource.OwnerID)
	require.NotNil(t, resource.ReferenceID)
	require.Equal(t, pattern.ID, *resource.ReferenceID)
}

func TestPatternGetHonoursSharedRights(t *testing.T) {
	f := newServiceFixture(t)
	f.createUser(t, "owner-1", "maker", false)
	f.createUser(t, "user-2", "friend", false)

	svc, err := NewPatternService(f.db, f.access)
	require.NoError(t, err)

	pattern := f.createPattern(t, "owner-1", "Wrap Dress")

	// Stranger cannot read.
	_, err = svc.Get(context.Background(), "user-2", pattern.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	// A read grant opens the pattern up.
	_, err = f.access.Grant(context.Background(), pattern.ID, "user-2", access.NewRightSet(access.RightRead), "owner-1")
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), "user-2", pattern.ID)
	require.NoError(t, err)
	require.Equal(t, pattern.ID, got.ID)

	// Missing patterns surface as not-found, not forbidden.
	_, err = svc.Get(context.Background(), "user-2", "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPatternUpdateRequiresWriteRights(t *testing.T) {
	f := newServiceFixture(t)
	f.createUser(t, "owner-1", "maker", false)
	f.createUser(t, "user-2", "friend", false)

	svc, err := NewPatternService(f.db, f.access)
	require.NoError(t, err)

	pattern := f.createPattern(t, "owner-1", "Wrap Dress")

	_, err = svc.Update(context.Background(), "user-2", pattern.ID, UpdatePatternInput{Name: "Maxi Dress"})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	// Read alone is not enough: write is demanded for updates.
	_, err = f.access.Grant(context.Background(), pattern.ID, "user-2", access.NewRightSet(access.RightRead), "owner-1")
	require.NoError(t, err)
	_, err = svc.Update(context.Background(), "user-2", pattern.ID, UpdatePatternInput{Name: "Maxi Dress"})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.access.Grant(context.Background(), pattern.ID, "user-2", access.NewRightSet(access.RightWrite), "owner-1")
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), "user-2", pattern.ID, UpdatePatternInput{Name: "Maxi Dress"})
	require.NoError(t, err)
	require.Equal(t, "Maxi Dress", updated.Name)

	// The owner passes without any grant row.
	desc := "floaty summer dress"
	updated, err = svc.Update(context.Background(), "owner-1", pattern.ID, UpdatePatternInput{Description: &desc})
	require.NoError(t, err)
	require.Equal(t, desc, updated.Description)
}

func TestPatternDeleteCascadesAccessRows(t *testing.T) {
	f := newServiceFixture(t)
	f.createUser(t, "owner-1", "maker", false)
	f.createUser(t, "user-2", "friend", false)

	svc, err := NewPatternService(f.db, f.access)
	require.NoError(t, err)
	files, err := NewFileService(f.db, f.access)
	require.NoError(t, err)

	pattern := f.createPattern(t, "owner-1", "Wrap Dress")

	file, err := files.Attach(context.Background(), "owner-1", pattern.ID, AttachFileInput{
		FileName:    "wrap-dress.pdf",
		StoragePath: "patterns/wrap-dress.pdf",
	})
	require.NoError(t, err)

	_, err = f.access.Grant(context.Background(), pattern.ID, "user-2", access.NewRightSet(access.RightRead), "owner-1")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "owner-1", pattern.ID))

	_, err = f.access.Registry().GetResource(context.Background(), pattern.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.access.Registry().GetResource(context.Background(), file.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	var grants int64
	require.NoError(t, f.db.Model(&models.AccessGrant{}).Count(&grants).Error)
	require.Zero(t, grants)

	var remaining int64
	require.NoError(t, f.db.Model(&models.PatternFile{}).Count(&remaining).Error)
	require.Zero(t, remaining)
}

func TestPatternListIncludesSharedPatterns(t *testing.T) {
	f := newServiceFixture(t)
	f.createUser(t, "owner-1", "maker", false)
	f.createUser(t, "user-2", "friend", false)

	svc, err := NewPatternService(f.db, f.access)
	require.NoError(t, err)

	mine := f.createPattern(t, "user-2", "My Blouse")
	shared := f.createPattern(t, "owner-1", "Wrap Dress")
	f.createPattern(t, "owner-1", "Hidden Coat")

	_, err = f.access.Grant(context.Background(), shared.ID, "user-2", access.NewRightSet(access.RightRead), "owner-1")
	require.NoError(t, err)

	patterns, err := svc.List(context.Background(), "user-2")
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	ids := []string{patterns[0].ID, patterns[1].ID}
	require.ElementsMatch(t, []string{mine.ID, shared.ID}, ids)
}

func TestPatternTagAssignment(t *testing.T) {
	f := newServiceFixture(t)
	f.createUser(t, "owner-1", "maker", false)
	f.createUser(t, "admin-1", "moderator", true)

	patterns, err := NewPatternService(f.db, f.access)
	require.NoError(t, err)
	tags, err := NewTagService(f.db, f.access)
	require.NoError(t, err)

	pattern := f.createPattern(t, "owner-1", "Wrap Dress")

	pending, err := tags.Propose(context.Background(), "owner-1", "Dress")
	require.NoError(t, err)

	// Pending tags cannot be assigned.
	err = patterns.AssignTag(context.Background(), "owner-1", pattern.ID, pending.ID)
	require.Error(t, err)

	_, err = tags.Approve(context.Background(), "admin-1", pending.ID)
	require.NoError(t, err)

	require.NoError(t, patterns.AssignTag(context.Background(), "owner-1", pattern.ID, pending.ID))

	got, err := patterns.Get(context.Background(), "owner-1", pattern.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	require.Equal(t, "dress", got.Tags[0].Name)

	require.NoError(t, patterns.RemoveTag(context.Background(), "owner-1", pattern.ID, pending.ID))

	got, err = patterns.Get(context.Background(), "owner-1", pattern.ID)
	require.NoError(t, err)
	require.Empty(t, got.Tags)
}
