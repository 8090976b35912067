// Package notify records and lists notifications. Each triggering event
// notifies its recipient at most once, identified by (recipient, type, source).
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"crabber/internal/middleware"
	"crabber/internal/models"
	"crabber/internal/observability"
	"crabber/internal/pagination"
	"crabber/internal/visibility"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Engine creates notifications and serves a crab's inbox.
type Engine struct {
	db *gorm.DB
}

// NewEngine returns a notification engine backed by db.
func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// Reply notifies the author of the replied-to molt.
func (e *Engine) Reply(ctx context.Context, reply *models.Molt, parentAuthorID uint) error {
	return e.record(ctx, &models.Notification{
		RecipientID: parentAuthorID,
		ActorID:     reply.AuthorID,
		Type:        models.NotificationReply,
		SourceKey:   fmt.Sprintf("molt:%d", reply.ID),
		MoltID:      &reply.ID,
	})
}

// Like notifies the author of a liked molt. Liking again after an unlike
// maps to the same source and creates nothing.
func (e *Engine) Like(ctx context.Context, actorID uint, molt *models.Molt) error {
	return e.record(ctx, &models.Notification{
		RecipientID: molt.AuthorID,
		ActorID:     actorID,
		Type:        models.NotificationLike,
		SourceKey:   fmt.Sprintf("like:%d:%d", actorID, molt.ID),
		MoltID:      &molt.ID,
	})
}

// Follow notifies the followed crab.
func (e *Engine) Follow(ctx context.Context, followerID, followeeID uint) error {
	return e.record(ctx, &models.Notification{
		RecipientID: followeeID,
		ActorID:     followerID,
		Type:        models.NotificationFollow,
		SourceKey:   fmt.Sprintf("follow:%d", followerID),
	})
}

// Mention notifies every crab mentioned in molt. Re-running it for an
// edited molt only notifies newly added mentions.
func (e *Engine) Mention(ctx context.Context, molt *models.Molt, mentionedIDs []uint) error {
	for _, id := range mentionedIDs {
		err := e.record(ctx, &models.Notification{
			RecipientID: id,
			ActorID:     molt.AuthorID,
			Type:        models.NotificationMention,
			SourceKey:   fmt.Sprintf("molt:%d", molt.ID),
			MoltID:      &molt.ID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) record(ctx context.Context, n *models.Notification) error {
	if n.RecipientID == 0 || n.RecipientID == n.ActorID {
		return nil
	}

	db := e.db.WithContext(ctx)
	blocked, err := visibility.Blocked(db, n.RecipientID, n.ActorID)
	if err != nil {
		return fmt.Errorf("check block: %w", err)
	}
	if blocked {
		return nil
	}

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(n)
	if res.Error != nil {
		return fmt.Errorf("create notification: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		observability.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
		middleware.Logger.DebugContext(ctx, "notification created",
			slog.String("type", string(n.Type)),
			slog.Uint64("recipient_id", uint64(n.RecipientID)),
		)
	}
	return nil
}

// inbox scopes notifications of v to those whose actor and molt v may still see.
func inbox(db *gorm.DB, v *visibility.Viewer) *gorm.DB {
	return db.Model(&models.Notification{}).
		Where("notifications.recipient_id = ?", v.CrabID()).
		Where("notifications.actor_id IN (?)",
			db.Model(&models.Crab{}).Scopes(visibility.Crabs(v)).Select("crabs.id")).
		Where("(notifications.molt_id IS NULL OR notifications.molt_id IN (?))",
			db.Model(&models.Molt{}).Scopes(visibility.Molts(v)).Select("molts.id"))
}

// List returns a page of v's notifications, newest first.
func (e *Engine) List(ctx context.Context, v *visibility.Viewer, req pagination.Request) (pagination.Page[*models.Notification], error) {
	if v.Anonymous() {
		return pagination.Empty[*models.Notification](req, 0), nil
	}
	db := e.db.WithContext(ctx)
	return pagination.Find[*models.Notification](inbox(db, v), req, func(q *gorm.DB) *gorm.DB {
		return q.Order("notifications.created_at DESC, notifications.id DESC").
			Preload("Actor").
			Preload("Molt.Author")
	})
}

// UnreadCount counts v's unread, still-visible notifications.
func (e *Engine) UnreadCount(ctx context.Context, v *visibility.Viewer) (int64, error) {
	if v.Anonymous() {
		return 0, nil
	}
	var count int64
	err := inbox(e.db.WithContext(ctx), v).Where("notifications.read = ?", false).Count(&count).Error
	return count, err
}

// MarkAllRead marks every notification of recipientID as read.
func (e *Engine) MarkAllRead(ctx context.Context, recipientID uint) error {
	return e.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Update("read", true).Error
}

// MarkRead marks one notification read; it must belong to recipientID.
func (e *Engine) MarkRead(ctx context.Context, recipientID, id uint) error {
	res := e.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	return nil
}
