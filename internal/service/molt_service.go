package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"crabber/internal/models"
	"crabber/internal/repository"
	"crabber/internal/visibility"
)

type MoltService struct {
	molts     repository.MoltRepository
	crabs     repository.CrabRepository
	relations repository.RelationRepository
	cards     repository.CardRepository
	reader    Reader
	notifier  Notifier
	charLimit int
}

type CreateMoltInput struct {
	Content  string `json:"content"`
	ImageURL string `json:"image_url" validate:"omitempty,http_url"`
	ParentID *uint  `json:"parent_id"`
	QuotedID *uint  `json:"quoted_id"`
}

func NewMoltService(
	molts repository.MoltRepository,
	crabs repository.CrabRepository,
	relations repository.RelationRepository,
	cards repository.CardRepository,
	reader Reader,
	notifier Notifier,
	charLimit int,
) *MoltService {
	return &MoltService{
		molts:     molts,
		crabs:     crabs,
		relations: relations,
		cards:     cards,
		reader:    reader,
		notifier:  notifier,
		charLimit: charLimit,
	}
}

func (s *MoltService) checkContent(content string, allowEmpty bool) error {
	if content == "" && !allowEmpty {
		return models.NewValidationError("Molt cannot be empty")
	}
	if n := utf8.RuneCountInString(content); n > s.charLimit {
		return models.NewValidationError(fmt.Sprintf("Molt too long (max %d characters)", s.charLimit))
	}
	return nil
}

// Create posts a molt, reply or quote for v. Replying to or quoting a molt v
// cannot see fails with NOT_FOUND.
func (s *MoltService) Create(ctx context.Context, v *visibility.Viewer, in CreateMoltInput) (*models.Molt, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if err := s.checkContent(content, in.ImageURL != ""); err != nil {
		return nil, err
	}
	if in.ParentID != nil && in.QuotedID != nil {
		return nil, models.NewValidationError("A molt cannot both reply and quote")
	}

	var parent *models.Molt
	if in.ParentID != nil {
		p, err := s.reader.Molt(ctx, v, *in.ParentID)
		if err != nil {
			return nil, err
		}
		parent = p
	}
	if in.QuotedID != nil {
		if _, err := s.reader.Molt(ctx, v, *in.QuotedID); err != nil {
			return nil, err
		}
	}

	molt := &models.Molt{
		AuthorID: v.ID,
		Content:  content,
		ImageURL: in.ImageURL,
		ParentID: in.ParentID,
		QuotedID: in.QuotedID,
	}
	if link := FirstURL(content); link != "" {
		card, err := s.cards.FindOrCreate(ctx, link)
		if err != nil {
			return nil, fmt.Errorf("queue card: %w", err)
		}
		molt.CardID = &card.ID
	}

	mentioned, err := s.crabs.ActiveIDsByUsernames(ctx, ExtractMentions(content))
	if err != nil {
		return nil, err
	}
	if err := s.molts.Create(ctx, molt, ExtractTags(content), mentioned); err != nil {
		return nil, err
	}

	if parent != nil {
		notifyFailed(ctx, "reply", s.notifier.Reply(ctx, molt, parent.AuthorID))
	}
	notifyFailed(ctx, "mention", s.notifier.Mention(ctx, molt, mentioned))

	return s.reader.Molt(ctx, v, molt.ID)
}

// owned loads a live molt and checks that v wrote it.
func (s *MoltService) owned(ctx context.Context, v *visibility.Viewer, id uint) (*models.Molt, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	molt, err := s.molts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if molt.Deleted {
		return nil, models.NewNotFoundError("Molt", id)
	}
	if molt.AuthorID != v.ID {
		return nil, models.NewForbiddenError("You can only change your own molts")
	}
	return molt, nil
}

// Edit replaces the text of v's molt. Tags and mentions are re-extracted;
// crabs already notified of a mention are not notified again.
func (s *MoltService) Edit(ctx context.Context, v *visibility.Viewer, id uint, content string) (*models.Molt, error) {
	molt, err := s.owned(ctx, v, id)
	if err != nil {
		return nil, err
	}
	if molt.IsRemolt() {
		return nil, models.NewValidationError("Remolts cannot be edited")
	}
	content = strings.TrimSpace(content)
	if err := s.checkContent(content, molt.ImageURL != ""); err != nil {
		return nil, err
	}

	mentioned, err := s.crabs.ActiveIDsByUsernames(ctx, ExtractMentions(content))
	if err != nil {
		return nil, err
	}
	molt.Content = content
	if err := s.molts.UpdateContent(ctx, molt, ExtractTags(content), mentioned); err != nil {
		return nil, err
	}
	notifyFailed(ctx, "mention", s.notifier.Mention(ctx, molt, mentioned))

	return s.reader.Molt(ctx, v, molt.ID)
}

// Delete soft-deletes v's molt. Replies to it remain and show a tombstone.
func (s *MoltService) Delete(ctx context.Context, v *visibility.Viewer, id uint) error {
	molt, err := s.owned(ctx, v, id)
	if err != nil {
		return err
	}
	return s.molts.SoftDelete(ctx, molt.ID)
}

// Like records v's like. Liking twice is a no-op and never notifies twice.
func (s *MoltService) Like(ctx context.Context, v *visibility.Viewer, id uint) error {
	if err := requireViewer(v); err != nil {
		return err
	}
	molt, err := s.reader.Molt(ctx, v, id)
	if err != nil {
		return err
	}
	created, err := s.relations.Like(ctx, v.ID, molt.ID)
	if err != nil {
		return err
	}
	if created {
		notifyFailed(ctx, "like", s.notifier.Like(ctx, v.ID, molt))
	}
	return nil
}

func (s *MoltService) Unlike(ctx context.Context, v *visibility.Viewer, id uint) error {
	if err := requireViewer(v); err != nil {
		return err
	}
	return s.relations.Unlike(ctx, v.ID, id)
}

func (s *MoltService) Bookmark(ctx context.Context, v *visibility.Viewer, id uint) error {
	if err := requireViewer(v); err != nil {
		return err
	}
	if _, err := s.reader.Molt(ctx, v, id); err != nil {
		return err
	}
	_, err := s.relations.Bookmark(ctx, v.ID, id)
	return err
}

func (s *MoltService) Unbookmark(ctx context.Context, v *visibility.Viewer, id uint) error {
	if err := requireViewer(v); err != nil {
		return err
	}
	return s.relations.Unbookmark(ctx, v.ID, id)
}

// Remolt reposts a molt into v's followers' timelines. Remolting a remolt
// reposts the original, and a crab holds at most one live remolt per molt.
func (s *MoltService) Remolt(ctx context.Context, v *visibility.Viewer, id uint) (*models.Molt, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	original, err := s.reader.Molt(ctx, v, id)
	if err != nil {
		return nil, err
	}
	if original.RemoltOfID != nil {
		if original.RemoltOf == nil || original.RemoltOf.Unavailable {
			return nil, models.NewNotFoundError("Molt", *original.RemoltOfID)
		}
		original = original.RemoltOf
	}

	existing, err := s.molts.FindRemolt(ctx, v.ID, original.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.reader.Molt(ctx, v, existing.ID)
	}

	remolt := &models.Molt{AuthorID: v.ID, RemoltOfID: &original.ID}
	if err := s.molts.Create(ctx, remolt, nil, nil); err != nil {
		return nil, err
	}
	return s.reader.Molt(ctx, v, remolt.ID)
}
