package service

import (
	"context"
	"testing"

	"circles/internal/authz"
	"circles/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	f.user(t, "bob")
	carol := f.user(t, "carol")
	require.NoError(t, f.users.Deactivate(ctx, carol.ID))

	users, err := f.users.List(ctx, alice.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)
}

func TestUserService_SearchForCircle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	f.user(t, "bobby")
	f.user(t, "rob_b")
	gone := f.user(t, "bobcat")
	require.NoError(t, f.users.Deactivate(ctx, gone.ID))
	id := f.circle(t, "Club", alice, bob)

	users, err := f.users.SearchForCircle(ctx, alice.ID, id, "BOB")
	require.NoError(t, err)
	var names []string
	for _, u := range users {
		names = append(names, u.Username)
	}
	assert.Equal(t, []string{"bobby"}, names)

	users, err = f.users.SearchForCircle(ctx, alice.ID, id, "_")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "rob_b", users[0].Username)

	_, err = f.users.SearchForCircle(ctx, bob.ID, id, "bob")
	requireMessage(t, err, models.CodeForbidden, authz.MsgAddMemberRole)

	_, err = f.users.SearchForCircle(ctx, alice.ID, 999, "bob")
	requireCode(t, err, models.CodeNotFound)

	users, err = f.users.SearchForCircle(ctx, alice.ID, id, "  ")
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.NotNil(t, users)

	_, err = f.users.SearchForCircle(ctx, bob.ID, id, "")
	requireMessage(t, err, models.CodeForbidden, authz.MsgAddMemberRole)
}

func TestUserService_DeactivateRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	for i := 0; i < 2; i++ {
		_, err := f.auth.Login(ctx, LoginInput{Identifier: "alice", Password: "Secure1!pass"})
		require.NoError(t, err)
	}

	require.NoError(t, f.users.Deactivate(ctx, alice.ID))

	var sessions int64
	require.NoError(t, f.db.Model(&models.UserSession{}).Where("user_id = ?", alice.ID).Count(&sessions).Error)
	assert.Zero(t, sessions)

	var stored models.User
	require.NoError(t, f.db.First(&stored, alice.ID).Error)
	assert.False(t, stored.IsActive)

	requireCode(t, f.users.Deactivate(ctx, 999), models.CodeNotFound)
}
