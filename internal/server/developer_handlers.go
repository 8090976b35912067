package server

import (
	"crabber/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetDeveloperKeys handles GET /api/developer/keys
// @Summary List developer keys
// @Tags developer
// @Security BearerAuth
// @Success 200 {array} models.DeveloperKey
// @Router /developer/keys [get]
func (s *Server) GetDeveloperKeys(c *fiber.Ctx) error {
	keys, err := s.developerService.ListDeveloperKeys(c.UserContext(), viewer(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(keys)
}

// CreateDeveloperKey handles POST /api/developer/keys
// @Summary Create a developer key
// @Tags developer
// @Security BearerAuth
// @Success 201 {object} models.DeveloperKey
// @Router /developer/keys [post]
func (s *Server) CreateDeveloperKey(c *fiber.Ctx) error {
	key, err := s.developerService.CreateDeveloperKey(c.UserContext(), viewer(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(key)
}

// DeleteDeveloperKey handles DELETE /api/developer/keys/:id
// @Summary Delete a developer key
// @Tags developer
// @Security BearerAuth
// @Param id path int true "Key ID"
// @Success 204
// @Router /developer/keys/{id} [delete]
func (s *Server) DeleteDeveloperKey(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.developerService.DeleteDeveloperKey(c.UserContext(), viewer(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetAccessTokens handles GET /api/developer/tokens
// @Summary List access tokens
// @Tags developer
// @Security BearerAuth
// @Success 200 {array} models.AccessToken
// @Router /developer/tokens [get]
func (s *Server) GetAccessTokens(c *fiber.Ctx) error {
	tokens, err := s.developerService.ListAccessTokens(c.UserContext(), viewer(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(tokens)
}

// CreateAccessToken handles POST /api/developer/tokens
// @Summary Create an access token
// @Description The key authenticates API calls with "Authorization: Token <key>".
// @Tags developer
// @Security BearerAuth
// @Success 201 {object} models.AccessToken
// @Router /developer/tokens [post]
func (s *Server) CreateAccessToken(c *fiber.Ctx) error {
	token, err := s.developerService.CreateAccessToken(c.UserContext(), viewer(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(token)
}

// DeleteAccessToken handles DELETE /api/developer/tokens/:id
// @Summary Revoke an access token
// @Tags developer
// @Security BearerAuth
// @Param id path int true "Token ID"
// @Success 204
// @Router /developer/tokens/{id} [delete]
func (s *Server) DeleteAccessToken(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.developerService.DeleteAccessToken(c.UserContext(), viewer(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
