package server

import (
	"fmt"

	"circles/internal/models"
	"circles/internal/service"

	"github.com/gofiber/fiber/v2"
)

type addMemberRequest struct {
	UserID uint `json:"user_id" validate:"required,gt=0"`
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,notblank"`
}

// AddMember handles POST /api/v1/circles/:id/members
// @Summary Add member
// @Description Owners and moderators add an existing active user as a plain member.
// @Tags members
// @Accept json
// @Produce json
// @Param id path int true "Circle ID"
// @Param request body addMemberRequest true "User to add"
// @Success 201 {object} MemberActionResponse
// @Failure 400 {object} models.ErrorResponse "Already a member"
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /circles/{id}/members [post]
func (s *Server) AddMember(c *fiber.Ctx) error {
	circleID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req addMemberRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	member, err := s.membershipService.Add(c.UserContext(), service.MemberInput{
		CircleID: circleID,
		ActorID:  currentUserID(c),
		UserID:   req.UserID,
	})
	if err != nil {
		return respondError(c, err)
	}

	dto := newMemberDTO(member)
	return c.Status(fiber.StatusCreated).JSON(MemberActionResponse{
		Success: true,
		Message: "Member added successfully",
		Member:  &dto,
	})
}

// RemoveMember handles DELETE /api/v1/circles/:id/members/:userId
// @Summary Remove member
// @Description Owners remove anyone but themselves; moderators remove plain members only.
// @Tags members
// @Produce json
// @Param id path int true "Circle ID"
// @Param userId path int true "User ID"
// @Success 200 {object} MemberActionResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /circles/{id}/members/{userId} [delete]
func (s *Server) RemoveMember(c *fiber.Ctx) error {
	circleID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	removed, err := s.membershipService.Remove(c.UserContext(), service.MemberInput{
		CircleID: circleID,
		ActorID:  currentUserID(c),
		UserID:   userID,
	})
	if err != nil {
		return respondError(c, err)
	}

	dto := newMemberDTO(removed)
	return c.JSON(MemberActionResponse{
		Success: true,
		Message: fmt.Sprintf("Member %s removed successfully", dto.Username),
	})
}

// UpdateMemberRole handles PUT /api/v1/circles/:id/members/:userId/role
// @Summary Change member role
// @Description Owner only. The role may be set to moderator or member.
// @Tags members
// @Accept json
// @Produce json
// @Param id path int true "Circle ID"
// @Param userId path int true "User ID"
// @Param request body updateRoleRequest true "New role"
// @Success 200 {object} MemberActionResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /circles/{id}/members/{userId}/role [put]
func (s *Server) UpdateMemberRole(c *fiber.Ctx) error {
	circleID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	var req updateRoleRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		return respondError(c, err)
	}

	change, err := s.membershipService.ChangeRole(c.UserContext(), service.ChangeRoleInput{
		MemberInput: service.MemberInput{
			CircleID: circleID,
			ActorID:  currentUserID(c),
			UserID:   userID,
		},
		Role: role,
	})
	if err != nil {
		return respondError(c, err)
	}

	dto := newMemberDTO(change.Member)
	return c.JSON(MemberActionResponse{
		Success: true,
		Message: fmt.Sprintf("Role changed from %s to %s", change.OldRole, change.NewRole),
		Member:  &dto,
	})
}
