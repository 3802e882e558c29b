package server

import (
	"circles/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createCircleRequest struct {
	Name        string `json:"name" validate:"required,notblank,max=50"`
	Description string `json:"description" validate:"max=255"`
}

type updateCircleRequest struct {
	Name        *string `json:"name" validate:"omitnil,notblank,max=50"`
	Description *string `json:"description" validate:"omitnil,max=255"`
}

// GetMyCircles handles GET /api/v1/circles/my
// @Summary My circles
// @Description Circles the caller belongs to, newest first, with members and badges.
// @Tags circles
// @Produce json
// @Success 200 {array} CircleDTO
// @Failure 401 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /circles/my [get]
func (s *Server) GetMyCircles(c *fiber.Ctx) error {
	circles, err := s.circleService.ListMine(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	out := make([]CircleDTO, 0, len(circles))
	for i := range circles {
		out = append(out, newCircleDTO(&circles[i]))
	}
	return c.JSON(out)
}

// CreateCircle handles POST /api/v1/circles
// @Summary Create circle
// @Description The caller becomes the owner and first member.
// @Tags circles
// @Accept json
// @Produce json
// @Param request body createCircleRequest true "Circle"
// @Success 201 {object} CircleDTO
// @Failure 400 {object} models.ErrorResponse "Name taken"
// @Failure 422 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /circles [post]
func (s *Server) CreateCircle(c *fiber.Ctx) error {
	var req createCircleRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	details, err := s.circleService.Create(c.UserContext(), service.CreateCircleInput{
		OwnerID:     currentUserID(c),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newCircleDTO(details))
}

// GetCircle handles GET /api/v1/circles/:id
// @Summary Get circle
// @Description Members only.
// @Tags circles
// @Produce json
// @Param id path int true "Circle ID"
// @Success 200 {object} CircleDTO
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /circles/{id} [get]
func (s *Server) GetCircle(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	details, err := s.circleService.Get(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newCircleDTO(details))
}

// UpdateCircle handles PUT /api/v1/circles/:id
// @Summary Update circle
// @Description Owner only. Omitted fields are left unchanged.
// @Tags circles
// @Accept json
// @Produce json
// @Param id path int true "Circle ID"
// @Param request body updateCircleRequest true "Changes"
// @Success 200 {object} CircleDTO
// @Failure 400 {object} models.ErrorResponse "Name taken"
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /circles/{id} [put]
func (s *Server) UpdateCircle(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req updateCircleRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	details, err := s.circleService.Update(c.UserContext(), service.UpdateCircleInput{
		CircleID:    id,
		ActorID:     currentUserID(c),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newCircleDTO(details))
}

// DeleteCircle handles DELETE /api/v1/circles/:id
// @Summary Delete circle
// @Description Owner only. Removes the circle's posts and memberships.
// @Tags circles
// @Param id path int true "Circle ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /circles/{id} [delete]
func (s *Server) DeleteCircle(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.circleService.Delete(c.UserContext(), id, currentUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
