package server

import (
	"strconv"
	"strings"
	"time"

	"crabber/internal/cache"
	"crabber/internal/feed"
	"crabber/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultTrendingLimit = 5
	maxTrendingLimit     = 50
)

// listMolts renders one page of q for the current viewer. The first page of
// an anchored listing returns the anchor to send back for later pages.
func (s *Server) listMolts(c *fiber.Ctx, q feed.MoltQuery) error {
	req, err := s.parsePage(c)
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	v := viewer(c)

	if req.Anchor == nil {
		if req.Anchor, err = s.feed.AnchorFor(ctx, v, q); err != nil {
			return models.RespondWithAppError(c, err)
		}
	}

	page, err := s.feed.Molts(ctx, v, q, req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(moltPage{Page: page, Anchor: req.Anchor})
}

// listCrabs renders one page of q for the current viewer.
func (s *Server) listCrabs(c *fiber.Ctx, q feed.CrabQuery) error {
	req, err := s.parsePage(c)
	if err != nil {
		return nil
	}
	page, err := s.feed.Crabs(c.UserContext(), viewer(c), q, req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// GetTimeline handles GET /api/timeline
// @Summary Home timeline
// @Description Molts by the viewer and the crabs they follow
// @Tags feed
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Param anchor_at query string false "Anchor timestamp from the first page"
// @Param anchor_id query int false "Anchor molt ID from the first page"
// @Success 200 {object} moltPage
// @Router /timeline [get]
func (s *Server) GetTimeline(c *fiber.Ctx) error {
	return s.listMolts(c, feed.TimelineFor(viewer(c).ID))
}

// GetTimelineSince handles GET /api/timeline/since?since=<RFC3339 or unix seconds>
// @Summary Count new timeline molts
// @Tags feed
// @Security BearerAuth
// @Param since query string true "Timestamp"
// @Success 200 {object} object{count=int}
// @Router /timeline/since [get]
func (s *Server) GetTimelineSince(c *fiber.Ctx) error {
	since, ok := parseTimestamp(c.Query("since"))
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid since timestamp"))
	}
	v := viewer(c)
	count, err := s.feed.CountSince(c.UserContext(), v, feed.TimelineFor(v.ID), since)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts, true
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0), true
	}
	return time.Time{}, false
}

// GetWild handles GET /api/wild
// @Summary Wild West
// @Description Every visible top-level molt
// @Tags feed
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Success 200 {object} moltPage
// @Router /wild [get]
func (s *Server) GetWild(c *fiber.Ctx) error {
	return s.listMolts(c, feed.GlobalFeed())
}

// GetCrabtag handles GET /api/crabtags/:tag
// @Summary Molts with a crabtag
// @Tags feed
// @Param tag path string true "Crabtag"
// @Success 200 {object} moltPage
// @Router /crabtags/{tag} [get]
func (s *Server) GetCrabtag(c *fiber.Ctx) error {
	tag := feed.NormalizeTag(c.Params("tag"))
	if tag == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid crabtag"))
	}
	return s.listMolts(c, feed.TagFeed(tag))
}

// GetTrending handles GET /api/trending
// @Summary Trending crabtags
// @Tags feed
// @Param limit query int false "Number of tags"
// @Success 200 {array} feed.TagCount
// @Router /trending [get]
func (s *Server) GetTrending(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultTrendingLimit)
	if limit <= 0 {
		limit = defaultTrendingLimit
	}
	if limit > maxTrendingLimit {
		limit = maxTrendingLimit
	}
	tags, err := s.feed.Trending(c.UserContext(), viewer(c), limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(tags)
}

// Search handles GET /api/search?q=&type=molts|crabs
// @Summary Search molts or crabs
// @Tags feed
// @Param q query string true "Search text"
// @Param type query string false "molts (default) or crabs"
// @Success 200 {object} moltPage
// @Router /search [get]
func (s *Server) Search(c *fiber.Ctx) error {
	text := strings.TrimSpace(c.Query("q"))
	if text == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Search query is required"))
	}
	switch c.Query("type", "molts") {
	case "molts":
		return s.listMolts(c, feed.SearchMolts(text))
	case "crabs":
		return s.listCrabs(c, feed.SearchCrabs(text))
	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("type must be molts or crabs"))
	}
}

// GetBookmarks handles GET /api/bookmarks
// @Summary Bookmarked molts
// @Tags feed
// @Security BearerAuth
// @Success 200 {object} moltPage
// @Router /bookmarks [get]
func (s *Server) GetBookmarks(c *fiber.Ctx) error {
	return s.listMolts(c, feed.BookmarksFor(viewer(c).ID))
}

// GetStats handles GET /api/stats
// @Summary Site statistics
// @Tags feed
// @Success 200 {object} feed.Stats
// @Router /stats [get]
func (s *Server) GetStats(c *fiber.Ctx) error {
	ctx := c.UserContext()
	v := viewer(c)

	var stats *feed.Stats
	fetch := func() error {
		var err error
		stats, err = s.feed.Stats(ctx, v)
		return err
	}

	var err error
	if v.Anonymous() {
		err = cache.Aside(ctx, cache.StatsKey(), &stats, cache.StatsTTL, fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(stats)
}

// GetFeatured handles GET /api/featured
// @Summary Featured crab and molt for the landing page
// @Tags feed
// @Success 200 {object} object{crab=models.Crab,molt=models.Molt}
// @Router /featured [get]
func (s *Server) GetFeatured(c *fiber.Ctx) error {
	ctx := c.UserContext()
	v := viewer(c)
	out := fiber.Map{}

	if name := s.config.FeaturedCrabUsername; name != "" {
		crab, err := s.feed.Crab(ctx, v, name)
		switch {
		case err == nil:
			out["crab"] = crab
		case !models.IsNotFound(err):
			return models.RespondWithAppError(c, err)
		}
	}
	if id := s.config.FeaturedMoltID; id != 0 {
		molt, err := s.feed.Molt(ctx, v, id)
		switch {
		case err == nil:
			out["molt"] = molt
		case !models.IsNotFound(err):
			return models.RespondWithAppError(c, err)
		}
	}
	return c.JSON(out)
}
