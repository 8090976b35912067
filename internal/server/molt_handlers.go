package server

import (
	"crabber/internal/feed"
	"crabber/internal/models"
	"crabber/internal/service"
	"crabber/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type editMoltRequest struct {
	Content string `json:"content"`
}

// CreateMolt handles POST /api/molts
// @Summary Post a molt, reply or quote
// @Tags molts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body service.CreateMoltInput true "Molt"
// @Success 201 {object} models.Molt
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /molts [post]
func (s *Server) CreateMolt(c *fiber.Ctx) error {
	var req service.CreateMoltInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	if err := validation.Struct(&req); err != nil {
		return models.RespondWithAppError(c, err)
	}

	molt, err := s.moltService.Create(c.UserContext(), viewer(c), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(molt)
}

// GetMolt handles GET /api/molts/:id
// @Summary Get a molt
// @Tags molts
// @Param id path int true "Molt ID"
// @Success 200 {object} models.Molt
// @Failure 404 {object} models.ErrorResponse
// @Router /molts/{id} [get]
func (s *Server) GetMolt(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	molt, err := s.feed.Molt(c.UserContext(), viewer(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(molt)
}

// EditMolt handles PUT /api/molts/:id
// @Summary Edit a molt
// @Tags molts
// @Security BearerAuth
// @Param id path int true "Molt ID"
// @Param request body object{content=string} true "New content"
// @Success 200 {object} models.Molt
// @Failure 403 {object} models.ErrorResponse
// @Router /molts/{id} [put]
func (s *Server) EditMolt(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req editMoltRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	molt, err := s.moltService.Edit(c.UserContext(), viewer(c), id, req.Content)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(molt)
}

// DeleteMolt handles DELETE /api/molts/:id
// @Summary Delete a molt
// @Tags molts
// @Security BearerAuth
// @Param id path int true "Molt ID"
// @Success 204
// @Router /molts/{id} [delete]
func (s *Server) DeleteMolt(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.moltService.Delete(c.UserContext(), viewer(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// thread lists molts hanging off a visible molt.
func (s *Server) thread(c *fiber.Ctx, query func(uint) feed.MoltQuery) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if _, err := s.feed.Molt(c.UserContext(), viewer(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return s.listMolts(c, query(id))
}

// GetReplies handles GET /api/molts/:id/replies
// @Summary Replies to a molt
// @Tags molts
// @Param id path int true "Molt ID"
// @Success 200 {object} moltPage
// @Router /molts/{id}/replies [get]
func (s *Server) GetReplies(c *fiber.Ctx) error {
	return s.thread(c, feed.RepliesOf)
}

// GetQuotes handles GET /api/molts/:id/quotes
// @Summary Molts quoting a molt
// @Tags molts
// @Param id path int true "Molt ID"
// @Success 200 {object} moltPage
// @Router /molts/{id}/quotes [get]
func (s *Server) GetQuotes(c *fiber.Ctx) error {
	return s.thread(c, feed.QuotesOf)
}

// relate runs a like/bookmark style action against :id.
func (s *Server) relate(c *fiber.Ctx, action func(*fiber.Ctx, uint) error) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := action(c, id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Like handles POST /api/molts/:id/like
// @Summary Like a molt
// @Tags molts
// @Security BearerAuth
// @Param id path int true "Molt ID"
// @Success 204
// @Router /molts/{id}/like [post]
func (s *Server) Like(c *fiber.Ctx) error {
	return s.relate(c, func(c *fiber.Ctx, id uint) error {
		return s.moltService.Like(c.UserContext(), viewer(c), id)
	})
}

// Unlike handles DELETE /api/molts/:id/like
// @Summary Remove a like
// @Tags molts
// @Security BearerAuth
// @Param id path int true "Molt ID"
// @Success 204
// @Router /molts/{id}/like [delete]
func (s *Server) Unlike(c *fiber.Ctx) error {
	return s.relate(c, func(c *fiber.Ctx, id uint) error {
		return s.moltService.Unlike(c.UserContext(), viewer(c), id)
	})
}

// Bookmark handles POST /api/molts/:id/bookmark
// @Summary Bookmark a molt
// @Tags molts
// @Security BearerAuth
// @Param id path int true "Molt ID"
// @Success 204
// @Router /molts/{id}/bookmark [post]
func (s *Server) Bookmark(c *fiber.Ctx) error {
	return s.relate(c, func(c *fiber.Ctx, id uint) error {
		return s.moltService.Bookmark(c.UserContext(), viewer(c), id)
	})
}

// Unbookmark handles DELETE /api/molts/:id/bookmark
// @Summary Remove a bookmark
// @Tags molts
// @Security BearerAuth
// @Param id path int true "Molt ID"
// @Success 204
// @Router /molts/{id}/bookmark [delete]
func (s *Server) Unbookmark(c *fiber.Ctx) error {
	return s.relate(c, func(c *fiber.Ctx, id uint) error {
		return s.moltService.Unbookmark(c.UserContext(), viewer(c), id)
	})
}

// Remolt handles POST /api/molts/:id/remolt
// @Summary Remolt a molt
// @Tags molts
// @Security BearerAuth
// @Param id path int true "Molt ID"
// @Success 201 {object} models.Molt
// @Router /molts/{id}/remolt [post]
func (s *Server) Remolt(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	molt, err := s.moltService.Remolt(c.UserContext(), viewer(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(molt)
}
