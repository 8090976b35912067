package feed

import (
	"context"
	"time"

	"crabber/internal/cache"
	"crabber/internal/models"
	"crabber/internal/observability"
	"crabber/internal/visibility"

	"gorm.io/gorm"
)

// TagCount is a crabtag with the number of visible molts using it in the window.
type TagCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count" gorm:"column:molt_count"`
}

// Stats is the site overview.
type Stats struct {
	Crabs         int64          `json:"crab_count"`
	Molts         int64          `json:"molt_count"`
	DeletedMolts  int64          `json:"deleted_molt_count"`
	Likes         int64          `json:"like_count"`
	MostFollowed  *models.Crab   `json:"most_followed,omitempty"`
	Newest        *models.Crab   `json:"newest_crab,omitempty"`
	MostLiked     *models.Molt   `json:"most_liked,omitempty"`
	MostReplied   *models.Molt   `json:"most_replied,omitempty"`
	TrendingTag   *TagCount      `json:"trending_tag,omitempty"`
	TrendingMolts []*models.Molt `json:"trending_molts"`
}

// Stats computes the overview as seen by v. Deleted molts count toward the
// molt totals but never appear as items.
func (e *Engine) Stats(ctx context.Context, v *visibility.Viewer) (*Stats, error) {
	span, ctx := observability.NewSpan(ctx, "feed.Stats")
	defer span.End()
	defer observability.TrackFeedQuery("stats")()

	stats := &Stats{TrendingMolts: []*models.Molt{}}
	err := e.read(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&models.Crab{}).Scopes(visibility.Crabs(v)).Count(&stats.Crabs).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Molt{}).Scopes(visibility.MoltsIncludingDeleted(v)).Count(&stats.Molts).Error; err != nil {
			return err
		}
		err := tx.Model(&models.Molt{}).Scopes(visibility.MoltsIncludingDeleted(v)).
			Where("molts.deleted = ?", true).
			Count(&stats.DeletedMolts).Error
		if err != nil {
			return err
		}
		err = tx.Model(&models.Like{}).
			Where("likes.molt_id IN (?)", tx.Model(&models.Molt{}).Scopes(visibility.Molts(v)).Select("molts.id")).
			Where("likes.crab_id IN (?)", tx.Model(&models.Crab{}).Scopes(visibility.Crabs(v)).Select("crabs.id")).
			Count(&stats.Likes).Error
		if err != nil {
			return err
		}

		if stats.MostFollowed, err = e.topCrab(tx, v, "follower_count DESC, crabs.created_at ASC, crabs.id ASC"); err != nil {
			return err
		}
		if stats.Newest, err = e.topCrab(tx, v, "crabs.created_at DESC, crabs.id DESC"); err != nil {
			return err
		}
		if stats.MostLiked, err = e.topMolt(tx, v, Originals(), "like_count"); err != nil {
			return err
		}
		if stats.MostReplied, err = e.topMolt(tx, v, Originals(), "reply_count"); err != nil {
			return err
		}

		tags, err := e.trending(tx, v, 1)
		if err != nil {
			return err
		}
		if len(tags) > 0 {
			stats.TrendingTag = &tags[0]
			stats.TrendingMolts, err = e.topMolts(tx, v, TagFeed(tags[0].Name), "like_count", 3)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return stats, nil
}

func (e *Engine) topCrab(tx *gorm.DB, v *visibility.Viewer, order string) (*models.Crab, error) {
	var crabs []*models.Crab
	err := withCrabDetails(tx.Model(&models.Crab{}).Scopes(visibility.Crabs(v))).
		Order(order).
		Limit(1).
		Find(&crabs).Error
	if err != nil || len(crabs) == 0 {
		return nil, err
	}
	return crabs[0], nil
}

// topMolt returns the molt in q with the highest positive value of metric.
func (e *Engine) topMolt(tx *gorm.DB, v *visibility.Viewer, q MoltQuery, metric string) (*models.Molt, error) {
	molts, err := e.topMolts(tx, v, q, metric, 1)
	if err != nil || len(molts) == 0 {
		return nil, err
	}
	if metric == "like_count" && molts[0].LikeCount == 0 || metric == "reply_count" && molts[0].ReplyCount == 0 {
		return nil, nil
	}
	return molts[0], nil
}

func (e *Engine) topMolts(tx *gorm.DB, v *visibility.Viewer, q MoltQuery, metric string, limit int) ([]*models.Molt, error) {
	var molts []*models.Molt
	err := withMoltDetails(visibleMolts(tx, v, q), v).
		Order(metric + " DESC, " + newestFirst).
		Limit(limit).
		Find(&molts).Error
	if err != nil {
		return nil, err
	}
	if err := visibility.Resolve(tx, v, molts); err != nil {
		return nil, err
	}
	if molts == nil {
		molts = []*models.Molt{}
	}
	return molts, nil
}

// Trending returns the crabtags used by the most visible molts inside the
// trending window. Ties go to the tag with the more recent molt. The
// anonymous list is cached in Redis when a TTL is configured.
func (e *Engine) Trending(ctx context.Context, v *visibility.Viewer, limit int) ([]TagCount, error) {
	fetch := func(dest *[]TagCount) func() error {
		return func() error {
			tags, err := e.trending(e.db.WithContext(ctx), v, limit)
			*dest = tags
			return err
		}
	}

	var tags []TagCount
	if v.Anonymous() && e.trendingTTL > 0 {
		err := cache.Aside(ctx, cache.TrendingKey(limit), &tags, e.trendingTTL, fetch(&tags))
		return tags, err
	}
	err := fetch(&tags)()
	return tags, err
}

func (e *Engine) trending(tx *gorm.DB, v *visibility.Viewer, limit int) ([]TagCount, error) {
	since := e.now().Add(-e.trendingWindow).UTC().Truncate(time.Second)

	tags := []TagCount{}
	err := tx.Table("crabtags").
		Select("crabtags.name AS name, COUNT(molts.id) AS molt_count").
		Joins("JOIN molt_crabtags ON molt_crabtags.crabtag_id = crabtags.id").
		Joins("JOIN molts ON molts.id = molt_crabtags.molt_id").
		Scopes(visibility.Molts(v)).
		Where("molts.created_at >= ?", since).
		Group("crabtags.id, crabtags.name").
		Order("molt_count DESC, MAX(molts.created_at) DESC, crabtags.name ASC").
		Limit(limit).
		Scan(&tags).Error
	return tags, err
}
