// Package service holds the write paths: posting, relations between crabs,
// account lifecycle and API credentials. Reads go through internal/feed.
package service

import (
	"context"
	"log/slog"

	"crabber/internal/middleware"
	"crabber/internal/models"
	"crabber/internal/visibility"
)

// Notifier receives the events that notify other crabs.
type Notifier interface {
	Reply(ctx context.Context, reply *models.Molt, parentAuthorID uint) error
	Like(ctx context.Context, actorID uint, molt *models.Molt) error
	Follow(ctx context.Context, followerID, followeeID uint) error
	Mention(ctx context.Context, molt *models.Molt, mentionedIDs []uint) error
}

// Reader loads single molts and crabs as a viewer sees them.
type Reader interface {
	Molt(ctx context.Context, v *visibility.Viewer, id uint) (*models.Molt, error)
	Crab(ctx context.Context, v *visibility.Viewer, username string) (*models.Crab, error)
}

// notifyFailed logs a notification error. The write that triggered it has
// already committed and stays successful.
func notifyFailed(ctx context.Context, kind string, err error) {
	if err != nil {
		middleware.Logger.WarnContext(ctx, "notification failed",
			slog.String("type", kind),
			slog.String("error", err.Error()),
		)
	}
}

func requireViewer(v *visibility.Viewer) error {
	if v.Anonymous() {
		return models.NewUnauthorizedError("sign in required")
	}
	return nil
}
