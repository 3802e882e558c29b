package server

import (
	"circles/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListUsers handles GET /api/v1/users
// @Summary List users
// @Description Active users other than the caller.
// @Tags users
// @Produce json
// @Param limit query int false "Max results" default(100)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} UserDTO
// @Failure 401 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /users [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 100)
	users, err := s.userService.List(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newUserDTOs(users))
}

// SearchUsers handles GET /api/v1/users/search
// @Summary Search users to add to a circle
// @Description Owners and moderators only. Existing members and the caller are excluded.
// @Tags users
// @Produce json
// @Param query query string true "Username substring"
// @Param circle_id query int true "Circle ID"
// @Success 200 {array} UserSearchDTO
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /users/search [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	circleID := c.QueryInt("circle_id", 0)
	if circleID <= 0 {
		return respondError(c, models.NewValidationError("circle_id is required"))
	}

	users, err := s.userService.SearchForCircle(c.UserContext(), currentUserID(c), uint(circleID), c.Query("query"))
	if err != nil {
		return respondError(c, err)
	}

	out := make([]UserSearchDTO, 0, len(users))
	for _, u := range users {
		out = append(out, UserSearchDTO{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
		})
	}
	return c.JSON(out)
}

// DeactivateMe handles DELETE /api/v1/users/me
// @Summary Deactivate account
// @Description Marks the caller inactive and ends all of their sessions.
// @Tags users
// @Produce json
// @Success 200 {object} object{success=bool}
// @Failure 401 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /users/me [delete]
func (s *Server) DeactivateMe(c *fiber.Ctx) error {
	if err := s.userService.Deactivate(c.UserContext(), currentUserID(c)); err != nil {
		return respondError(c, err)
	}
	s.clearSessionCookie(c)
	return c.JSON(fiber.Map{"success": true})
}
