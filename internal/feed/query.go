// Package feed builds and materialises the ordered molt and crab sequences
// behind every listing: timelines, profiles, tags, search and bookmarks.
//
// A query is a plain value holding predicates and an ordering key. Nothing
// touches the database until an Engine materialises it, at which point the
// visibility scope is applied and the result is paginated.
package feed

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	newestFirst = "molts.created_at DESC, molts.id DESC"
	oldestFirst = "molts.created_at ASC, molts.id ASC"

	followeesOf = "SELECT followee_id FROM follows WHERE follower_id = ?"
)

type predicate struct {
	sql  string
	args []interface{}
}

// query is the shared, copy-on-write core of MoltQuery and CrabQuery.
type query struct {
	name      string
	joins     []predicate
	wheres    []predicate
	order     string
	orderArgs []interface{}
	anchored  bool
}

func (q query) where(sql string, args ...interface{}) query {
	q.wheres = append(append([]predicate(nil), q.wheres...), predicate{sql, args})
	return q
}

func (q query) join(sql string, args ...interface{}) query {
	q.joins = append(append([]predicate(nil), q.joins...), predicate{sql, args})
	return q
}

func (q query) apply(db *gorm.DB) *gorm.DB {
	for _, j := range q.joins {
		db = db.Joins(j.sql, j.args...)
	}
	for _, w := range q.wheres {
		db = db.Where(w.sql, w.args...)
	}
	return db
}

func (q query) ordered(db *gorm.DB) *gorm.DB {
	if len(q.orderArgs) == 0 {
		return db.Order(q.order)
	}
	return db.Order(clause.OrderBy{
		Expression: clause.Expr{SQL: q.order, Vars: q.orderArgs, WithoutParentheses: true},
	})
}

// MoltQuery is an unmaterialised, ordered sequence of molts.
type MoltQuery struct {
	query
}

// Name identifies the listing, for logs and metrics.
func (q MoltQuery) Name() string { return q.name }

// Where narrows the query further.
func (q MoltQuery) Where(sql string, args ...interface{}) MoltQuery {
	q.query = q.query.where(sql, args...)
	return q
}

// Anchored reports whether the ordering is by molt time, so an anchor applies.
func (q MoltQuery) Anchored() bool { return q.anchored }

func newMoltQuery(name string) MoltQuery {
	return MoltQuery{query{name: name, order: newestFirst, anchored: true}}
}

// CrabQuery is an unmaterialised, ordered sequence of crabs.
type CrabQuery struct {
	query
}

// Name identifies the listing, for logs and metrics.
func (q CrabQuery) Name() string { return q.name }

// TimelineFor is the home timeline of crabID: their own molts and those of
// the crabs they follow, remolts included. Replies only appear when the
// parent's author is also in that set.
func TimelineFor(crabID uint) MoltQuery {
	return newMoltQuery("timeline").
		Where("(molts.author_id = ? OR molts.author_id IN ("+followeesOf+"))", crabID, crabID).
		Where("(molts.parent_id IS NULL OR molts.parent_id IN (SELECT p.id FROM molts p WHERE p.author_id = ? OR p.author_id IN ("+followeesOf+")))", crabID, crabID)
}

// GlobalFeed is the "Wild West": every top-level, non-quote molt.
func GlobalFeed() MoltQuery {
	return newMoltQuery("wild").
		Where("molts.parent_id IS NULL AND molts.quoted_id IS NULL")
}

// Originals is every authored molt, replies and quotes included. Remolt rows
// carry no content or likes of their own and are left out.
func Originals() MoltQuery {
	return newMoltQuery("originals").
		Where("molts.remolt_of_id IS NULL")
}

// ProfileMolts lists a crab's top-level molts, quotes and remolts.
func ProfileMolts(crabID uint) MoltQuery {
	return newMoltQuery("profile_molts").
		Where("molts.author_id = ? AND molts.parent_id IS NULL", crabID)
}

// ProfileReplies lists a crab's replies.
func ProfileReplies(crabID uint) MoltQuery {
	return newMoltQuery("profile_replies").
		Where("molts.author_id = ? AND molts.parent_id IS NOT NULL", crabID)
}

// ProfileLikes lists the molts a crab liked, most recent like first.
func ProfileLikes(crabID uint) MoltQuery {
	q := newMoltQuery("profile_likes")
	q.query = q.join("JOIN likes ON likes.molt_id = molts.id AND likes.crab_id = ?", crabID)
	q.order = "likes.created_at DESC, likes.id DESC"
	q.anchored = false
	return q
}

// BookmarksFor lists a crab's bookmarks, most recently saved first.
func BookmarksFor(crabID uint) MoltQuery {
	q := newMoltQuery("bookmarks")
	q.query = q.join("JOIN bookmarks ON bookmarks.molt_id = molts.id AND bookmarks.crab_id = ?", crabID)
	q.order = "bookmarks.created_at DESC, bookmarks.id DESC"
	q.anchored = false
	return q
}

// TagFeed lists molts carrying the crabtag.
func TagFeed(tag string) MoltQuery {
	return newMoltQuery("crabtag").
		Where(`molts.id IN (SELECT mt.molt_id FROM molt_crabtags mt
			JOIN crabtags t ON t.id = mt.crabtag_id WHERE t.name = ?)`, NormalizeTag(tag))
}

// SearchMolts matches content case-insensitively.
func SearchMolts(text string) MoltQuery {
	return newMoltQuery("search_molts").
		Where(`LOWER(molts.content) LIKE ? ESCAPE '\'`, likePattern(text))
}

// RepliesOf lists the direct replies to a molt, oldest first.
func RepliesOf(moltID uint) MoltQuery {
	q := newMoltQuery("replies").Where("molts.parent_id = ?", moltID)
	q.order = oldestFirst
	q.anchored = false
	return q
}

// QuotesOf lists the molts quoting a molt, oldest first.
func QuotesOf(moltID uint) MoltQuery {
	q := newMoltQuery("quotes").Where("molts.quoted_id = ?", moltID)
	q.order = oldestFirst
	q.anchored = false
	return q
}

// SearchCrabs matches username or display name case-insensitively. An exact
// username match sorts first, then newest accounts.
func SearchCrabs(text string) CrabQuery {
	pattern := likePattern(text)
	q := CrabQuery{query{name: "search_crabs"}}
	q.query = q.where(`(LOWER(crabs.username) LIKE ? ESCAPE '\' OR LOWER(crabs.display_name) LIKE ? ESCAPE '\')`, pattern, pattern)
	q.order = "CASE WHEN LOWER(crabs.username) = ? THEN 0 ELSE 1 END, crabs.created_at DESC, crabs.id DESC"
	q.orderArgs = []interface{}{strings.ToLower(strings.TrimSpace(text))}
	return q
}

// Following lists the crabs crabID follows, most recent follow first.
func Following(crabID uint) CrabQuery {
	q := CrabQuery{query{name: "following"}}
	q.query = q.join("JOIN follows ON follows.followee_id = crabs.id AND follows.follower_id = ?", crabID)
	q.order = "follows.created_at DESC, follows.id DESC"
	return q
}

// Followers lists the crabs following crabID, most recent follow first.
func Followers(crabID uint) CrabQuery {
	q := CrabQuery{query{name: "followers"}}
	q.query = q.join("JOIN follows ON follows.follower_id = crabs.id AND follows.followee_id = ?", crabID)
	q.order = "follows.created_at DESC, follows.id DESC"
	return q
}

// Mutuals lists followers of crabID whom viewerID also follows.
func Mutuals(viewerID, crabID uint) CrabQuery {
	q := Followers(crabID)
	q.name = "mutuals"
	q.query = q.where("crabs.id IN ("+followeesOf+")", viewerID)
	return q
}

// NormalizeTag lower-cases a crabtag and strips a leading %.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "%"))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(text string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(text))) + "%"
}
