package repository

import (
	"context"
	"testing"

	"circles/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipRepository_Lifecycle(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	circle := createCircle(t, db, "Book Club", owner)

	m, err := repo.Get(ctx, circle.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, m)

	require.NoError(t, repo.Add(ctx, &models.CircleMembership{CircleID: circle.ID, UserID: bob.ID, Role: models.RoleMember}))
	err = repo.Add(ctx, &models.CircleMembership{CircleID: circle.ID, UserID: bob.ID, Role: models.RoleMember})
	requireCode(t, err, models.CodeConflict)
	assert.Equal(t, MsgAlreadyMember, err.Error())

	m, err = repo.Get(ctx, circle.ID, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, models.RoleMember, m.Role)
	require.NotNil(t, m.User)
	assert.Equal(t, "bob", m.User.Username)

	require.NoError(t, repo.UpdateRole(ctx, circle.ID, bob.ID, models.RoleModerator))
	m, err = repo.Get(ctx, circle.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, m.Role)

	requireCode(t, repo.UpdateRole(ctx, circle.ID, 999, models.RoleMember), models.CodeNotFound)

	require.NoError(t, repo.Remove(ctx, circle.ID, bob.ID))
	err = repo.Remove(ctx, circle.ID, bob.ID)
	requireCode(t, err, models.CodeNotFound)
	assert.Equal(t, "Member not found in this circle", err.Error())
}

func TestMembershipRepository_ListByCirclesOrdersOwnerFirst(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")
	a := createCircle(t, db, "A", alice, bob)
	b := createCircle(t, db, "B", carol)
	require.NoError(t, repo.UpdateRole(ctx, a.ID, bob.ID, models.RoleModerator))
	require.NoError(t, repo.Add(ctx, &models.CircleMembership{CircleID: a.ID, UserID: carol.ID, Role: models.RoleMember}))

	members, err := repo.ListByCircles(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, members, 4)

	assert.Equal(t, []models.Role{models.RoleOwner, models.RoleModerator, models.RoleMember},
		[]models.Role{members[0].Role, members[1].Role, members[2].Role})
	assert.Equal(t, "alice", members[0].User.Username)
	assert.Equal(t, b.ID, members[3].CircleID)

	none, err := repo.ListByCircles(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMembershipRepository_SecondOwnerRejected(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	circle := createCircle(t, db, "A", alice, bob)

	err := repo.UpdateRole(ctx, circle.ID, bob.ID, models.RoleOwner)
	requireCode(t, err, models.CodeConflict)
}
