package server

import (
	"circles/internal/models"
	"circles/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Title    string `json:"title" validate:"required,notblank,max=100"`
	Content  string `json:"content" validate:"required,notblank"`
	CircleID *uint  `json:"circle_id" validate:"omitnil,gt=0"`
}

// GetFeed handles GET /api/v1/posts/feed
// @Summary Feed
// @Description Posts from the caller's circles, newest first.
// @Tags posts
// @Produce json
// @Param limit query int false "Max results" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} PostDTO
// @Failure 401 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /posts/feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	posts, err := s.postService.Feed(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newPostDTOs(posts))
}

// CreatePost handles POST /api/v1/posts
// @Summary Create post
// @Description Without circle_id the post is public; with it the caller must be a member.
// @Tags posts
// @Accept json
// @Produce json
// @Param request body createPostRequest true "Post"
// @Success 201 {object} PostDTO
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.Create(c.UserContext(), service.CreatePostInput{
		AuthorID: currentUserID(c),
		Title:    req.Title,
		Content:  req.Content,
		CircleID: req.CircleID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newPostDTO(post))
}

// GetPost handles GET /api/v1/posts/:id
// @Summary Get post
// @Description Circle posts are visible to members only.
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} PostDTO
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.Get(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newPostDTO(post))
}

// DeletePost handles DELETE /api/v1/posts/:id
// @Summary Delete post
// @Description The author, or an owner or moderator of the post's circle.
// @Tags posts
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.Delete(c.UserContext(), id, currentUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func newPostDTOs(posts []models.Post) []PostDTO {
	out := make([]PostDTO, 0, len(posts))
	for i := range posts {
		out = append(out, newPostDTO(&posts[i]))
	}
	return out
}
