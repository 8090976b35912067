package repository

import (
	"context"

	"crabber/internal/models"
	"crabber/internal/visibility"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RelationRepository manages the pairwise relations between crabs and molts.
// Every add is idempotent: the bool result reports whether a new row was written.
type RelationRepository interface {
	Like(ctx context.Context, crabID, moltID uint) (bool, error)
	Unlike(ctx context.Context, crabID, moltID uint) error
	Bookmark(ctx context.Context, crabID, moltID uint) (bool, error)
	Unbookmark(ctx context.Context, crabID, moltID uint) error
	Follow(ctx context.Context, followerID, followeeID uint) (bool, error)
	Unfollow(ctx context.Context, followerID, followeeID uint) error
	Block(ctx context.Context, blockerID, blockedID uint) (bool, error)
	Unblock(ctx context.Context, blockerID, blockedID uint) error
	IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error)
	IsBlockedEither(ctx context.Context, a, b uint) (bool, error)
	HasBlocked(ctx context.Context, blockerID, blockedID uint) (bool, error)
}

type relationRepository struct {
	db *gorm.DB
}

// NewRelationRepository creates a new relation repository
func NewRelationRepository(db *gorm.DB) RelationRepository {
	return &relationRepository{db: db}
}

func (r *relationRepository) insert(ctx context.Context, row interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *relationRepository) Like(ctx context.Context, crabID, moltID uint) (bool, error) {
	return r.insert(ctx, &models.Like{CrabID: crabID, MoltID: moltID})
}

func (r *relationRepository) Unlike(ctx context.Context, crabID, moltID uint) error {
	return r.db.WithContext(ctx).Where("crab_id = ? AND molt_id = ?", crabID, moltID).Delete(&models.Like{}).Error
}

func (r *relationRepository) Bookmark(ctx context.Context, crabID, moltID uint) (bool, error) {
	return r.insert(ctx, &models.Bookmark{CrabID: crabID, MoltID: moltID})
}

func (r *relationRepository) Unbookmark(ctx context.Context, crabID, moltID uint) error {
	return r.db.WithContext(ctx).Where("crab_id = ? AND molt_id = ?", crabID, moltID).Delete(&models.Bookmark{}).Error
}

func (r *relationRepository) Follow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return r.insert(ctx, &models.Follow{FollowerID: followerID, FolloweeID: followeeID})
}

func (r *relationRepository) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	return r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{}).Error
}

// Block records the block and severs follows in both directions.
func (r *relationRepository) Block(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Block{BlockerID: blockerID, BlockedID: blockedID})
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0
		return tx.Where("(follower_id = ? AND followee_id = ?) OR (follower_id = ? AND followee_id = ?)",
			blockerID, blockedID, blockedID, blockerID).
			Delete(&models.Follow{}).Error
	})
	return created, err
}

func (r *relationRepository) Unblock(ctx context.Context, blockerID, blockedID uint) error {
	return r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.Block{}).Error
}

func (r *relationRepository) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	return count > 0, err
}

func (r *relationRepository) IsBlockedEither(ctx context.Context, a, b uint) (bool, error) {
	return visibility.Blocked(r.db.WithContext(ctx), a, b)
}

func (r *relationRepository) HasBlocked(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Block{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error
	return count > 0, err
}
