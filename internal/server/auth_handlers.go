package server

import (
	"time"

	"crabber/internal/cache"
	"crabber/internal/models"
	"crabber/internal/service"
	"crabber/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type deleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}

// Signup handles POST /api/auth/signup
// @Summary Crab signup
// @Description Register a new crab and return a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.SignupInput true "Signup request"
// @Success 201 {object} object{token=string,crab=models.Crab}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req service.SignupInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	crab, err := s.crabService.Signup(c.UserContext(), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	token, err := s.generateToken(crab)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"crab":  crab,
	})
}

// Login handles POST /api/auth/login
// @Summary Crab login
// @Description Authenticate with email and password and return a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} object{token=string,crab=models.Crab}
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	if err := validation.Struct(&req); err != nil {
		return models.RespondWithAppError(c, err)
	}

	crab, err := s.crabService.Authenticate(c.UserContext(), validation.NormalizeEmail(req.Email), req.Password)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	token, err := s.generateToken(crab)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"token": token,
		"crab":  crab,
	})
}

// Logout handles POST /api/auth/logout by revoking the session token.
// @Summary Crab logout
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	jti, _ := c.Locals(jtiLocal).(string)
	expiry, _ := c.Locals(expiryLocal).(time.Time)
	if jti == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Only session tokens can be logged out"))
	}

	if err := cache.Revoke(c.UserContext(), jti, time.Until(expiry)); err != nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(err))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetMe handles GET /api/me
// @Summary Current crab
// @Tags crabs
// @Security BearerAuth
// @Success 200 {object} models.Crab
// @Router /me [get]
func (s *Server) GetMe(c *fiber.Ctx) error {
	v := viewer(c)
	crab, err := s.crabRepo.GetByID(c.UserContext(), v.ID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(crab)
}

// DeleteAccount handles DELETE /api/account
// @Summary Delete the signed-in account
// @Tags settings
// @Security BearerAuth
// @Param request body object{password=string} true "Password confirmation"
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Router /account [delete]
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	var req deleteAccountRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	if err := validation.Struct(&req); err != nil {
		return models.RespondWithAppError(c, err)
	}
	if err := s.crabService.DeleteAccount(c.UserContext(), viewer(c), req.Password); err != nil {
		return models.RespondWithAppError(c, err)
	}
	if jti, ok := c.Locals(jtiLocal).(string); ok && jti != "" {
		expiry, _ := c.Locals(expiryLocal).(time.Time)
		_ = cache.Revoke(c.UserContext(), jti, time.Until(expiry))
	}
	return c.SendStatus(fiber.StatusNoContent)
}
