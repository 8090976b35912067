package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"crabber/internal/models"
	"crabber/internal/pagination"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "username" -> "username".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if prefix, ok := strings.CutSuffix(param, "Id"); ok {
		return strings.ToLower(prefix) + " ID"
	}
	return param
}

// parsePage reads page, size and the optional anchor_at/anchor_id pair.
// Invalid numbers fall back to the first page; a malformed anchor is a 400.
func (s *Server) parsePage(c *fiber.Ctx) (pagination.Request, error) {
	req := pagination.NewRequest(c.QueryInt("page", 1), c.QueryInt("size", s.config.MoltsPerPage))

	at := c.Query("anchor_at")
	if at == "" {
		return req, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid anchor_at"))
		return req, errResponseWritten
	}
	id, err := strconv.ParseUint(c.Query("anchor_id"), 10, 32)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid anchor_id"))
		return req, errResponseWritten
	}
	req.Anchor = &pagination.Anchor{At: ts, ID: uint(id)}
	return req, nil
}

// bindJSON parses the request body into dst.
func bindJSON(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// moltPage is a page of molts plus the anchor that keeps later pages stable.
type moltPage struct {
	pagination.Page[*models.Molt]
	Anchor *pagination.Anchor `json:"anchor,omitempty"`
}
