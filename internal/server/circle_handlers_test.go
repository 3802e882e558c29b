package server

import (
	"fmt"
	"net/http"
	"testing"

	"circles/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookClubScenario(t *testing.T) {
	e := newTestEnv(t)
	alice, aliceToken := e.signUp("alice")
	bob, bobToken := e.signUp("bob")
	carol, carolToken := e.signUp("carol")

	club := e.createCircle(aliceToken, "Book Club")
	assert.Equal(t, "alice", club.OwnerName)
	assert.Equal(t, alice.ID, club.OwnerID)
	assert.Equal(t, 1, club.MemberCount)
	require.Len(t, club.Members, 1)
	assert.Equal(t, "👑", club.Members[0].Badge)
	assert.Equal(t, models.RoleOwner, club.Members[0].Role)

	resp := e.addMember(aliceToken, club.ID, bob.ID)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var added MemberActionResponse
	decode(t, resp, &added)
	assert.True(t, added.Success)
	assert.Equal(t, "Member added successfully", added.Message)
	require.NotNil(t, added.Member)
	assert.Equal(t, "bob", added.Member.Username)
	assert.Equal(t, "👤", added.Member.Badge)

	// A plain member cannot add anyone.
	resp = e.addMember(bobToken, club.ID, carol.ID)
	requireError(t, resp, http.StatusForbidden, models.CodeForbidden, "Only circle owners and moderators can add members")

	resp = e.do(http.MethodPut, fmt.Sprintf("/api/v1/circles/%d/members/%d/role", club.ID, bob.ID),
		map[string]string{"role": "moderator"}, aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var changed MemberActionResponse
	decode(t, resp, &changed)
	assert.Equal(t, "Role changed from member to moderator", changed.Message)
	require.NotNil(t, changed.Member)
	assert.Equal(t, "🛡️", changed.Member.Badge)

	resp = e.addMember(bobToken, club.ID, carol.ID)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.addMember(bobToken, club.ID, carol.ID)
	requireError(t, resp, http.StatusBadRequest, models.CodeConflict, "User is already a member of this circle")

	resp = e.do(http.MethodGet, fmt.Sprintf("/api/v1/circles/%d", club.ID), nil, carolToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view CircleDTO
	decode(t, resp, &view)
	assert.Equal(t, 3, view.MemberCount)
	badges := map[string]string{}
	for _, m := range view.Members {
		badges[m.Username] = m.Badge
	}
	assert.Equal(t, map[string]string{"alice": "👑", "bob": "🛡️", "carol": "👤"}, badges)

	resp = e.do(http.MethodDelete, fmt.Sprintf("/api/v1/circles/%d/members/%d", club.ID, alice.ID), nil, bobToken)
	requireError(t, resp, http.StatusForbidden, models.CodeForbidden, "Cannot remove the circle owner")

	resp = e.do(http.MethodDelete, fmt.Sprintf("/api/v1/circles/%d/members/%d", club.ID, carol.ID), nil, bobToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var removed MemberActionResponse
	decode(t, resp, &removed)
	assert.True(t, removed.Success)
	assert.Equal(t, "Member carol removed successfully", removed.Message)

	resp = e.do(http.MethodGet, fmt.Sprintf("/api/v1/circles/%d", club.ID), nil, carolToken)
	requireError(t, resp, http.StatusForbidden, models.CodeForbidden, "You are not a member of this circle")

	resp = e.do(http.MethodDelete, fmt.Sprintf("/api/v1/circles/%d/members/%d", club.ID, carol.ID), nil, aliceToken)
	requireError(t, resp, http.StatusNotFound, models.CodeNotFound, "Member not found in this circle")
}

func TestCircleCRUD(t *testing.T) {
	e := newTestEnv(t)
	_, aliceToken := e.signUp("alice")
	bob, bobToken := e.signUp("bob")

	club := e.createCircle(aliceToken, "Chess")
	e.createCircle(aliceToken, "Go Players")

	resp := e.do(http.MethodPost, "/api/v1/circles", map[string]string{"name": "chess"}, bobToken)
	requireError(t, resp, http.StatusBadRequest, models.CodeConflict, "")

	resp = e.do(http.MethodPost, "/api/v1/circles", map[string]string{"name": "   "}, bobToken)
	requireError(t, resp, http.StatusUnprocessableEntity, models.CodeValidation, "")

	resp = e.do(http.MethodGet, "/api/v1/circles/my", nil, aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []CircleDTO
	decode(t, resp, &mine)
	require.Len(t, mine, 2)
	assert.Equal(t, "Go Players", mine[0].Name)

	resp = e.do(http.MethodGet, "/api/v1/circles/my", nil, bobToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &mine)
	assert.Empty(t, mine)

	require.Equal(t, http.StatusCreated, e.addMember(aliceToken, club.ID, bob.ID).StatusCode)

	resp = e.do(http.MethodPut, fmt.Sprintf("/api/v1/circles/%d", club.ID),
		map[string]string{"name": "Renamed"}, bobToken)
	requireError(t, resp, http.StatusForbidden, models.CodeForbidden, "Only the circle owner can update it")

	resp = e.do(http.MethodPut, fmt.Sprintf("/api/v1/circles/%d", club.ID),
		map[string]string{"description": "Weekly games"}, aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated CircleDTO
	decode(t, resp, &updated)
	assert.Equal(t, "Chess", updated.Name)
	assert.Equal(t, "Weekly games", updated.Description)

	resp = e.do(http.MethodPut, fmt.Sprintf("/api/v1/circles/%d", club.ID),
		map[string]string{"name": "GO PLAYERS"}, aliceToken)
	requireError(t, resp, http.StatusBadRequest, models.CodeConflict, "")

	resp = e.do(http.MethodDelete, fmt.Sprintf("/api/v1/circles/%d", club.ID), nil, bobToken)
	requireError(t, resp, http.StatusForbidden, models.CodeForbidden, "Only the circle owner can delete it")

	resp = e.do(http.MethodDelete, fmt.Sprintf("/api/v1/circles/%d", club.ID), nil, aliceToken)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(http.MethodGet, fmt.Sprintf("/api/v1/circles/%d", club.ID), nil, aliceToken)
	requireError(t, resp, http.StatusNotFound, models.CodeNotFound, "")
}

func TestCircleRoutes_RejectBadInput(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.signUp("alice")
	club := e.createCircle(token, "Club")

	resp := e.do(http.MethodGet, "/api/v1/circles/abc", nil, token)
	requireError(t, resp, http.StatusUnprocessableEntity, models.CodeValidation, "Invalid ID")

	resp = e.do(http.MethodDelete, fmt.Sprintf("/api/v1/circles/%d/members/0", club.ID), nil, token)
	requireError(t, resp, http.StatusUnprocessableEntity, models.CodeValidation, "Invalid user ID")

	resp = e.do(http.MethodPost, fmt.Sprintf("/api/v1/circles/%d/members", club.ID), map[string]any{}, token)
	requireError(t, resp, http.StatusUnprocessableEntity, models.CodeValidation, "")

	resp = e.do(http.MethodPut, fmt.Sprintf("/api/v1/circles/%d/members/1/role", club.ID),
		map[string]string{"role": "admin"}, token)
	requireError(t, resp, http.StatusUnprocessableEntity, models.CodeValidation, "")

	bob := e.register("bob")
	require.Equal(t, http.StatusCreated, e.addMember(token, club.ID, bob.ID).StatusCode)
	resp = e.do(http.MethodPut, fmt.Sprintf("/api/v1/circles/%d/members/%d/role", club.ID, bob.ID),
		map[string]string{"role": "owner"}, token)
	requireError(t, resp, http.StatusUnprocessableEntity, models.CodeValidation, "Role can only be set to moderator or member")

	resp = e.do(http.MethodGet, "/api/v1/circles/my", nil, "")
	requireError(t, resp, http.StatusUnauthorized, models.CodeUnauthenticated, "")
}

func TestSearchUsers(t *testing.T) {
	e := newTestEnv(t)
	_, aliceToken := e.signUp("alice")
	bob := e.register("bob")
	e.register("bobby")
	e.register("carol")
	club := e.createCircle(aliceToken, "Club")
	require.Equal(t, http.StatusCreated, e.addMember(aliceToken, club.ID, bob.ID).StatusCode)

	resp := e.do(http.MethodGet, fmt.Sprintf("/api/v1/users/search?query=bob&circle_id=%d", club.ID), nil, aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var found []UserSearchDTO
	decode(t, resp, &found)
	require.Len(t, found, 1)
	assert.Equal(t, "bobby", found[0].Username)
	assert.False(t, found[0].IsAlreadyMember)

	resp = e.do(http.MethodGet, "/api/v1/users/search?query=bob", nil, aliceToken)
	requireError(t, resp, http.StatusUnprocessableEntity, models.CodeValidation, "")

	bobToken := e.login("bob")
	resp = e.do(http.MethodGet, fmt.Sprintf("/api/v1/users/search?query=car&circle_id=%d", club.ID), nil, bobToken)
	requireError(t, resp, http.StatusForbidden, models.CodeForbidden, "")

	resp = e.do(http.MethodGet, "/api/v1/users", nil, aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []UserDTO
	decode(t, resp, &users)
	assert.Len(t, users, 3)
	for _, u := range users {
		assert.NotEqual(t, "alice", u.Username)
	}
}
