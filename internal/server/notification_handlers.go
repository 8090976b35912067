package server

import (
	"crabber/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications. Viewing the inbox marks
// everything in it read; the returned page still shows the prior read state.
// @Summary Notifications
// @Tags notifications
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	req, err := s.parsePage(c)
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	v := viewer(c)

	page, err := s.notifications.List(ctx, v, req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if err := s.notifications.MarkAllRead(ctx, v.ID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// GetUnreadCount handles GET /api/notifications/unread
// @Summary Unread notification count
// @Tags notifications
// @Security BearerAuth
// @Success 200 {object} object{count=int}
// @Router /notifications/unread [get]
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	count, err := s.notifications.UnreadCount(c.UserContext(), viewer(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
// @Summary Mark one notification read
// @Tags notifications
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 204
// @Router /notifications/{id}/read [post]
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.notifications.MarkRead(c.UserContext(), viewer(c).ID, id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
