// Package seed fills a database with demo crabs, molts and relations.
// It is intended for development and testing only.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"crabber/internal/database"
	"crabber/internal/feed"
	"crabber/internal/middleware"
	"crabber/internal/models"
	"crabber/internal/notify"
	"crabber/internal/repository"
	"crabber/internal/service"
	"crabber/internal/visibility"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded crab.
const DemoPassword = "Crabber-Demo-Pass1!"

//go:embed presets.yml
var builtinPresets []byte

// Preset describes how much demo data to create.
type Preset struct {
	Crabs        int      `yaml:"crabs"`
	MoltsPerCrab int      `yaml:"molts_per_crab"`
	FollowRatio  float64  `yaml:"follow_ratio"`
	LikeRatio    float64  `yaml:"like_ratio"`
	ReplyRatio   float64  `yaml:"reply_ratio"`
	LinkRatio    float64  `yaml:"link_ratio"`
	Tags         []string `yaml:"tags"`
}

func (p Preset) validate() error {
	if p.Crabs < 1 {
		return fmt.Errorf("crabs must be positive")
	}
	if p.MoltsPerCrab < 0 {
		return fmt.Errorf("molts_per_crab must not be negative")
	}
	for _, r := range []float64{p.FollowRatio, p.LikeRatio, p.ReplyRatio, p.LinkRatio} {
		if r < 0 || r > 1 {
			return fmt.Errorf("ratios must be within [0, 1], got %v", r)
		}
	}
	return nil
}

// LoadPresets parses a presets document.
func LoadPresets(r io.Reader) (map[string]Preset, error) {
	var doc struct {
		Presets map[string]Preset `yaml:"presets"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}
	for name, p := range doc.Presets {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
	}
	return doc.Presets, nil
}

// BuiltinPresets returns the presets shipped with the binary.
func BuiltinPresets() (map[string]Preset, error) {
	return LoadPresets(bytes.NewReader(builtinPresets))
}

// Result counts what a run created.
type Result struct {
	Crabs   int
	Molts   int
	Replies int
	Follows int
	Likes   int
}

// Seeder writes demo data through the same services the API uses, so
// tags, mentions, cards and notifications come out consistent.
type Seeder struct {
	db     *gorm.DB
	crabs  repository.CrabRepository
	molts  *service.MoltService
	social *service.CrabService
	faker  *gofakeit.Faker
}

// NewSeeder returns a seeder whose output is deterministic for a given seed.
func NewSeeder(db *gorm.DB, seed int64, charLimit int) *Seeder {
	crabs := repository.NewCrabRepository(db)
	relations := repository.NewRelationRepository(db)
	reader := feed.NewEngine(db)
	notifier := notify.NewEngine(db)
	return &Seeder{
		db:     db,
		crabs:  crabs,
		molts:  service.NewMoltService(repository.NewMoltRepository(db), crabs, relations, repository.NewCardRepository(db), reader, notifier, charLimit),
		social: service.NewCrabService(crabs, relations, reader, notifier, true),
		faker:  gofakeit.New(seed),
	}
}

// ClearAll deletes every row of every table.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tables := database.PersistentModels()
	slices.Reverse(tables)
	db := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range tables {
		if err := db.Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}

var nonWord = regexp.MustCompile(`\W+`)

// Apply creates the crabs, molts and relations described by p.
func (s *Seeder) Apply(ctx context.Context, p Preset) (*Result, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	crabs := make([]*models.Crab, 0, p.Crabs)
	for i := range p.Crabs {
		name := nonWord.ReplaceAllString(s.faker.Username(), "")
		if len(name) > 24 {
			name = name[:24]
		}
		crab := &models.Crab{
			Username:     fmt.Sprintf("%s_%d", strings.ToLower(name), i),
			DisplayName:  s.faker.Name(),
			Email:        fmt.Sprintf("crab%d@seed.crabber.local", i),
			PasswordHash: string(hash),
			Description:  s.faker.Sentence(10),
			Location:     s.faker.City(),
			Status:       models.StatusActive,
			Preferences:  map[string]bool{},
		}
		if err := s.crabs.Create(ctx, crab); err != nil {
			return nil, fmt.Errorf("create crab: %w", err)
		}
		crabs = append(crabs, crab)
		res.Crabs++
	}

	for _, follower := range crabs {
		for _, followee := range crabs {
			if follower.ID == followee.ID || !s.chance(p.FollowRatio) {
				continue
			}
			if err := s.social.Follow(ctx, visibility.NewViewer(follower), followee.Username); err != nil {
				return nil, fmt.Errorf("follow: %w", err)
			}
			res.Follows++
		}
	}

	var posted []*models.Molt
	for range p.MoltsPerCrab {
		for _, author := range crabs {
			in := service.CreateMoltInput{Content: s.content(p, crabs)}
			if len(posted) > 0 && s.chance(p.ReplyRatio) {
				parent := posted[s.faker.Number(0, len(posted)-1)]
				in.ParentID = &parent.ID
			}
			molt, err := s.molts.Create(ctx, visibility.NewViewer(author), in)
			if err != nil {
				return nil, fmt.Errorf("create molt: %w", err)
			}
			posted = append(posted, molt)
			res.Molts++
			if in.ParentID != nil {
				res.Replies++
			}
		}
	}

	for _, crab := range crabs {
		for _, molt := range posted {
			if molt.AuthorID == crab.ID || !s.chance(p.LikeRatio) {
				continue
			}
			if err := s.molts.Like(ctx, visibility.NewViewer(crab), molt.ID); err != nil {
				return nil, fmt.Errorf("like: %w", err)
			}
			res.Likes++
		}
	}

	middleware.Logger.InfoContext(ctx, "seeding completed",
		slog.Int("crabs", res.Crabs),
		slog.Int("molts", res.Molts),
		slog.Int("replies", res.Replies),
		slog.Int("follows", res.Follows),
		slog.Int("likes", res.Likes),
	)
	return res, nil
}

func (s *Seeder) chance(ratio float64) bool {
	return ratio > 0 && s.faker.Float64Range(0, 1) < ratio
}

// content builds a short molt that sometimes carries a crabtag, a mention or a link.
func (s *Seeder) content(p Preset, crabs []*models.Crab) string {
	parts := []string{s.faker.Sentence(s.faker.Number(4, 10))}
	if len(p.Tags) > 0 && s.chance(0.5) {
		parts = append(parts, "%"+p.Tags[s.faker.Number(0, len(p.Tags)-1)])
	}
	if s.chance(0.15) {
		parts = append(parts, "@"+crabs[s.faker.Number(0, len(crabs)-1)].Username)
	}
	if s.chance(p.LinkRatio) {
		parts = append(parts, s.faker.URL())
	}
	return strings.Join(parts, " ")
}
