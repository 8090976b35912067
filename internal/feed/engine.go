package feed

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"crabber/internal/models"
	"crabber/internal/observability"
	"crabber/internal/pagination"
	"crabber/internal/visibility"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const moltColumns = `molts.*,
	(SELECT COUNT(*) FROM likes lc JOIN crabs lcc ON lcc.id = lc.crab_id
		WHERE lc.molt_id = molts.id AND lcc.status = ?) AS like_count,
	(SELECT COUNT(*) FROM molts rc JOIN crabs rcc ON rcc.id = rc.author_id
		WHERE rc.parent_id = molts.id AND rc.deleted = ? AND rcc.status = ?) AS reply_count,
	EXISTS (SELECT 1 FROM likes vl WHERE vl.molt_id = molts.id AND vl.crab_id = ?) AS liked,
	EXISTS (SELECT 1 FROM bookmarks vb WHERE vb.molt_id = molts.id AND vb.crab_id = ?) AS bookmarked`

const crabColumns = `crabs.*,
	(SELECT COUNT(*) FROM follows fr JOIN crabs frc ON frc.id = fr.follower_id
		WHERE fr.followee_id = crabs.id AND frc.status = ?) AS follower_count,
	(SELECT COUNT(*) FROM follows fe JOIN crabs fec ON fec.id = fe.followee_id
		WHERE fe.follower_id = crabs.id AND fec.status = ?) AS following_count`

// Engine materialises queries against the store for a viewer.
type Engine struct {
	db             *gorm.DB
	trendingWindow time.Duration
	trendingTTL    time.Duration
	now            func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTrendingWindow sets how far back trending crabtags are counted.
func WithTrendingWindow(d time.Duration) Option {
	return func(e *Engine) { e.trendingWindow = d }
}

// WithTrendingCache sets how long the anonymous trending list is cached.
// Zero disables caching.
func WithTrendingCache(ttl time.Duration) Option {
	return func(e *Engine) { e.trendingTTL = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine reading from db.
func NewEngine(db *gorm.DB, opts ...Option) *Engine {
	e := &Engine{
		db:             db,
		trendingWindow: 7 * 24 * time.Hour,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// read runs fn in one read-only transaction so that counts, pages and
// tombstone resolution observe the same snapshot.
func (e *Engine) read(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db := e.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		return db.Transaction(fn, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	}
	return db.Transaction(fn)
}

func withMoltDetails(db *gorm.DB, v *visibility.Viewer) *gorm.DB {
	viewerID := v.CrabID()
	return db.
		Select(moltColumns, models.StatusActive, false, models.StatusActive, viewerID, viewerID).
		Preload("Author").
		Preload("Card").
		Preload("Parent.Author").
		Preload("Quoted.Author").
		Preload("Quoted.Card").
		Preload("RemoltOf.Author").
		Preload("RemoltOf.Card")
}

func withCrabDetails(db *gorm.DB) *gorm.DB {
	return db.Select(crabColumns, models.StatusActive, models.StatusActive)
}

func visibleMolts(tx *gorm.DB, v *visibility.Viewer, q MoltQuery) *gorm.DB {
	return q.apply(tx.Model(&models.Molt{})).Scopes(visibility.Molts(v))
}

// Molts returns one page of q as seen by v. Invisible referenced molts
// come back as tombstones.
func (e *Engine) Molts(ctx context.Context, v *visibility.Viewer, q MoltQuery, req pagination.Request) (pagination.Page[*models.Molt], error) {
	span, ctx := observability.NewSpan(ctx, "feed.Molts",
		attribute.String("feed.listing", q.Name()),
		attribute.Int("feed.page", req.Number),
	)
	defer span.End()
	defer observability.TrackFeedQuery(q.Name())()

	var page pagination.Page[*models.Molt]
	err := e.read(ctx, func(tx *gorm.DB) error {
		base := visibleMolts(tx, v, q)
		if req.Anchor != nil && q.Anchored() {
			base = base.Where("(molts.created_at < ? OR (molts.created_at = ? AND molts.id <= ?))",
				req.Anchor.At, req.Anchor.At, req.Anchor.ID)
		}

		var err error
		page, err = pagination.Find[*models.Molt](base, req, func(db *gorm.DB) *gorm.DB {
			return q.ordered(withMoltDetails(db, v))
		})
		if err != nil {
			return err
		}
		return visibility.Resolve(tx, v, page.Items)
	})
	if err != nil {
		span.SetError(err)
		return pagination.Page[*models.Molt]{}, err
	}
	return page, nil
}

// Crabs returns one page of q as seen by v.
func (e *Engine) Crabs(ctx context.Context, v *visibility.Viewer, q CrabQuery, req pagination.Request) (pagination.Page[*models.Crab], error) {
	span, ctx := observability.NewSpan(ctx, "feed.Crabs", attribute.String("feed.listing", q.Name()))
	defer span.End()
	defer observability.TrackFeedQuery(q.Name())()

	var page pagination.Page[*models.Crab]
	err := e.read(ctx, func(tx *gorm.DB) error {
		base := q.apply(tx.Model(&models.Crab{})).Scopes(visibility.Crabs(v))
		var err error
		page, err = pagination.Find[*models.Crab](base, req, func(db *gorm.DB) *gorm.DB {
			return q.ordered(withCrabDetails(db))
		})
		return err
	})
	if err != nil {
		span.SetError(err)
		return pagination.Page[*models.Crab]{}, err
	}
	return page, nil
}

// Molt returns a single molt with counts, or NOT_FOUND when v may not see it.
func (e *Engine) Molt(ctx context.Context, v *visibility.Viewer, id uint) (*models.Molt, error) {
	var molt models.Molt
	err := e.read(ctx, func(tx *gorm.DB) error {
		err := withMoltDetails(tx.Model(&models.Molt{}).Scopes(visibility.Molts(v)), v).
			Where("molts.id = ?", id).
			Take(&molt).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Molt", id)
		}
		if err != nil {
			return err
		}
		return visibility.Resolve(tx, v, []*models.Molt{&molt})
	})
	if err != nil {
		return nil, err
	}
	return &molt, nil
}

// Crab returns a profile by username, or NOT_FOUND when v may not see it.
func (e *Engine) Crab(ctx context.Context, v *visibility.Viewer, username string) (*models.Crab, error) {
	var crab models.Crab
	err := withCrabDetails(e.db.WithContext(ctx).Model(&models.Crab{}).Scopes(visibility.Crabs(v))).
		Where("LOWER(crabs.username) = ?", strings.ToLower(username)).
		Take(&crab).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Crab", username)
	}
	if err != nil {
		return nil, err
	}
	return &crab, nil
}

// CountSince counts visible molts in q newer than since.
func (e *Engine) CountSince(ctx context.Context, v *visibility.Viewer, q MoltQuery, since time.Time) (int64, error) {
	var count int64
	err := visibleMolts(e.db.WithContext(ctx), v, q).
		Where("molts.created_at > ?", since).
		Count(&count).Error
	return count, err
}

// AnchorFor pins paging to the newest visible molt in q.
func (e *Engine) AnchorFor(ctx context.Context, v *visibility.Viewer, q MoltQuery) (*pagination.Anchor, error) {
	if !q.Anchored() {
		return nil, nil
	}
	var newest models.Molt
	err := visibleMolts(e.db.WithContext(ctx), v, q).
		Select("molts.id", "molts.created_at").
		Order(newestFirst).
		Take(&newest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pagination.Anchor{At: newest.CreatedAt, ID: newest.ID}, nil
}
