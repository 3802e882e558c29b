package server

import (
	"circles/internal/middleware"
	"circles/internal/service"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password"`
	FullName string `json:"full_name" validate:"max=100"`
}

type loginRequest struct {
	// Username accepts a username or an email address.
	Username string `json:"username" validate:"required,notblank"`
	Password string `json:"password" validate:"required"`
}

// Register handles POST /api/v1/auth/register
// @Summary Register
// @Description Create an active account. Usernames and emails are unique regardless of case.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body registerRequest true "Registration"
// @Success 201 {object} SessionResponse
// @Failure 400 {object} models.ErrorResponse "Username or email taken"
// @Failure 422 {object} models.ErrorResponse
// @Failure 429 {object} object{error=string}
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.Register(c.UserContext(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(SessionResponse{
		Success:  true,
		Username: user.Username,
		User:     newUserDTO(user),
	})
}

// Login handles POST /api/v1/auth/login
// @Summary Log in
// @Description Verify credentials, create a server-side session and set the session cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Credentials"
// @Success 200 {object} SessionResponse
// @Failure 401 {object} models.ErrorResponse "Invalid credentials"
// @Failure 403 {object} models.ErrorResponse "Account is inactive"
// @Failure 422 {object} models.ErrorResponse
// @Failure 429 {object} object{error=string}
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.authService.Login(c.UserContext(), service.LoginInput{
		Identifier: req.Username,
		Password:   req.Password,
		IPAddress:  c.IP(),
		UserAgent:  c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return respondError(c, err)
	}

	s.setSessionCookie(c, result.Token, result.TTL)
	return c.JSON(SessionResponse{
		Success:      true,
		Username:     result.User.Username,
		SessionToken: result.Token,
		User:         newUserDTO(result.User),
	})
}

// Logout handles POST /api/v1/auth/logout
// @Summary Log out
// @Description Delete the current session if any and clear the cookie. Always succeeds.
// @Tags auth
// @Produce json
// @Success 200 {object} object{success=bool,message=string}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	token := middleware.SessionToken(c, s.config.SessionCookieName)
	if err := s.authService.Logout(c.UserContext(), token); err != nil {
		return respondError(c, err)
	}

	s.clearSessionCookie(c)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

// Me handles GET /api/v1/auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} object{user=UserDTO}
// @Failure 401 {object} models.ErrorResponse
// @Security SessionCookie
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"user": newUserDTO(currentUser(c))})
}
