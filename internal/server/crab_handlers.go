package server

import (
	"crabber/internal/feed"
	"crabber/internal/models"
	"crabber/internal/service"

	"github.com/gofiber/fiber/v2"
)

// profile resolves :username for the viewer, writing a 404 when hidden.
func (s *Server) profile(c *fiber.Ctx) (*models.Crab, error) {
	crab, err := s.feed.Crab(c.UserContext(), viewer(c), c.Params("username"))
	if err != nil {
		_ = models.RespondWithAppError(c, err)
		return nil, errResponseWritten
	}
	return crab, nil
}

// GetCrab handles GET /api/crabs/:username
// @Summary Crab profile
// @Tags crabs
// @Param username path string true "Username"
// @Success 200 {object} models.Crab
// @Failure 404 {object} models.ErrorResponse
// @Router /crabs/{username} [get]
func (s *Server) GetCrab(c *fiber.Ctx) error {
	crab, err := s.profile(c)
	if err != nil {
		return nil
	}
	return c.JSON(crab)
}

// GetCrabMolts handles GET /api/crabs/:username/molts
// @Summary Crab's molts
// @Tags crabs
// @Param username path string true "Username"
// @Success 200 {object} moltPage
// @Router /crabs/{username}/molts [get]
func (s *Server) GetCrabMolts(c *fiber.Ctx) error {
	crab, err := s.profile(c)
	if err != nil {
		return nil
	}
	return s.listMolts(c, feed.ProfileMolts(crab.ID))
}

// GetCrabReplies handles GET /api/crabs/:username/replies
// @Summary Crab's replies
// @Tags crabs
// @Param username path string true "Username"
// @Success 200 {object} moltPage
// @Router /crabs/{username}/replies [get]
func (s *Server) GetCrabReplies(c *fiber.Ctx) error {
	crab, err := s.profile(c)
	if err != nil {
		return nil
	}
	return s.listMolts(c, feed.ProfileReplies(crab.ID))
}

// GetCrabLikes handles GET /api/crabs/:username/likes
// @Summary Molts a crab liked
// @Tags crabs
// @Param username path string true "Username"
// @Success 200 {object} moltPage
// @Router /crabs/{username}/likes [get]
func (s *Server) GetCrabLikes(c *fiber.Ctx) error {
	crab, err := s.profile(c)
	if err != nil {
		return nil
	}
	return s.listMolts(c, feed.ProfileLikes(crab.ID))
}

// GetFollowing handles GET /api/crabs/:username/following
// @Summary Crabs a crab follows
// @Tags crabs
// @Param username path string true "Username"
// @Router /crabs/{username}/following [get]
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	crab, err := s.profile(c)
	if err != nil {
		return nil
	}
	return s.listCrabs(c, feed.Following(crab.ID))
}

// GetFollowers handles GET /api/crabs/:username/followers
// @Summary A crab's followers
// @Tags crabs
// @Param username path string true "Username"
// @Router /crabs/{username}/followers [get]
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	crab, err := s.profile(c)
	if err != nil {
		return nil
	}
	return s.listCrabs(c, feed.Followers(crab.ID))
}

// GetMutuals handles GET /api/crabs/:username/mutuals
// @Summary Followers of a crab whom the viewer follows
// @Tags crabs
// @Security BearerAuth
// @Param username path string true "Username"
// @Router /crabs/{username}/mutuals [get]
func (s *Server) GetMutuals(c *fiber.Ctx) error {
	crab, err := s.profile(c)
	if err != nil {
		return nil
	}
	return s.listCrabs(c, feed.Mutuals(viewer(c).ID, crab.ID))
}

// Follow handles POST /api/crabs/:username/follow
// @Summary Follow a crab
// @Tags crabs
// @Security BearerAuth
// @Param username path string true "Username"
// @Success 204
// @Router /crabs/{username}/follow [post]
func (s *Server) Follow(c *fiber.Ctx) error {
	if err := s.crabService.Follow(c.UserContext(), viewer(c), c.Params("username")); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Unfollow handles DELETE /api/crabs/:username/follow
// @Summary Unfollow a crab
// @Tags crabs
// @Security BearerAuth
// @Param username path string true "Username"
// @Success 204
// @Router /crabs/{username}/follow [delete]
func (s *Server) Unfollow(c *fiber.Ctx) error {
	if err := s.crabService.Unfollow(c.UserContext(), viewer(c), c.Params("username")); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Block handles POST /api/crabs/:username/block
// @Summary Block a crab
// @Tags crabs
// @Security BearerAuth
// @Param username path string true "Username"
// @Success 204
// @Router /crabs/{username}/block [post]
func (s *Server) Block(c *fiber.Ctx) error {
	if err := s.crabService.Block(c.UserContext(), viewer(c), c.Params("username")); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Unblock handles DELETE /api/crabs/:username/block
// @Summary Unblock a crab
// @Tags crabs
// @Security BearerAuth
// @Param username path string true "Username"
// @Success 204
// @Router /crabs/{username}/block [delete]
func (s *Server) Unblock(c *fiber.Ctx) error {
	if err := s.crabService.Unblock(c.UserContext(), viewer(c), c.Params("username")); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UpdateProfile handles PUT /api/settings/profile
// @Summary Update the signed-in crab's profile
// @Tags settings
// @Security BearerAuth
// @Param request body service.UpdateProfileInput true "Profile"
// @Success 200 {object} models.Crab
// @Router /settings/profile [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	crab, err := s.crabService.UpdateProfile(c.UserContext(), viewer(c), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(crab)
}

// GetPreferences handles GET /api/settings/preferences
// @Summary Display preferences
// @Tags settings
// @Security BearerAuth
// @Success 200 {object} map[string]bool
// @Router /settings/preferences [get]
func (s *Server) GetPreferences(c *fiber.Ctx) error {
	crab, err := s.crabRepo.GetByID(c.UserContext(), viewer(c).ID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	prefs := make(map[string]bool, len(models.KnownPreferences))
	for _, key := range models.KnownPreferences {
		prefs[key] = crab.Preference(key, false)
	}
	return c.JSON(prefs)
}

// SetPreferences handles PUT /api/settings/preferences
// @Summary Update display preferences
// @Tags settings
// @Security BearerAuth
// @Param request body map[string]bool true "Preferences to change"
// @Success 200 {object} map[string]bool
// @Router /settings/preferences [put]
func (s *Server) SetPreferences(c *fiber.Ctx) error {
	var req map[string]bool
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	prefs, err := s.crabService.SetPreferences(c.UserContext(), viewer(c), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(prefs)
}
