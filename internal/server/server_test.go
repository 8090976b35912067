package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"crabber/internal/cache"
	"crabber/internal/config"
	"crabber/internal/models"
	"crabber/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                 "test",
		Port:                "8375",
		JWTSecret:           "test-secret-that-is-long-enough-for-hs256",
		AllowedOrigins:      "http://localhost:3000",
		MoltsPerPage:        20,
		MoltCharLimit:       240,
		RegistrationEnabled: true,
		TrendingWindowHours: 24 * 7,
		APIMaxDeveloperKeys: 2,
		APIMaxAccessTokens:  2,
	}
}

type harness struct {
	t   *testing.T
	db  *gorm.DB
	srv *Server
	app *fiber.App
	fx  *testutil.Fixtures
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	db := testutil.NewTestDB(t)
	srv, err := NewServerWithDeps(testConfig(), db, nil)
	require.NoError(t, err)
	return &harness{t: t, db: db, srv: srv, app: srv.NewApp(), fx: testutil.NewFixtures(t, db)}
}

func (h *harness) token(crab *models.Crab) string {
	h.t.Helper()
	tok, err := h.srv.generateToken(crab)
	require.NoError(h.t, err)
	return "Bearer " + tok
}

// do sends a request and decodes a JSON response body into out when given.
func (h *harness) do(method, path, auth string, body any, out any) int {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type pageBody struct {
	Items []struct {
		ID      uint   `json:"id"`
		Type    string `json:"type"`
		Content string `json:"content"`
	} `json:"items"`
	HasMore bool  `json:"has_more"`
	Total   int64 `json:"total"`
	Anchor  *struct {
		At time.Time `json:"at"`
		ID uint      `json:"id"`
	} `json:"anchor"`
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, fiber.StatusOK, h.do("GET", "/health/live", "", nil, nil))

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	assert.Equal(t, fiber.StatusOK, h.do("GET", "/health/ready", "", nil, &ready))
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, "unavailable", ready.Checks["redis"])
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)

	signup := map[string]string{
		"username": "alice",
		"email":    "Alice@Example.com",
		"password": "Sup3r-Secret-Pass!",
	}
	var created struct {
		Token string      `json:"token"`
		Crab  models.Crab `json:"crab"`
	}
	require.Equal(t, fiber.StatusCreated, h.do("POST", "/api/auth/signup", "", signup, &created))
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "alice", created.Crab.Username)

	var me models.Crab
	assert.Equal(t, fiber.StatusOK, h.do("GET", "/api/me", "Bearer "+created.Token, nil, &me))
	assert.Equal(t, created.Crab.ID, me.ID)

	var errBody models.ErrorResponse
	assert.Equal(t, fiber.StatusBadRequest, h.do("POST", "/api/auth/signup", "", signup, &errBody))
	assert.Equal(t, "That username is taken", errBody.Error)

	wrong := map[string]string{"email": "alice@example.com", "password": "nope"}
	assert.Equal(t, fiber.StatusUnauthorized, h.do("POST", "/api/auth/login", "", wrong, nil))

	login := map[string]string{"email": "ALICE@example.com", "password": "Sup3r-Secret-Pass!"}
	var loggedIn struct {
		Token string `json:"token"`
	}
	assert.Equal(t, fiber.StatusOK, h.do("POST", "/api/auth/login", "", login, &loggedIn))
	assert.NotEmpty(t, loggedIn.Token)
}

func TestAuthRejections(t *testing.T) {
	h := newHarness(t)
	alice := h.fx.Crab("alice")
	mallory := h.fx.CrabWithStatus("mallory", models.StatusBanned)
	gone := h.fx.CrabWithStatus("gone", models.StatusDeleted)

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"Anonymous", "", fiber.StatusUnauthorized},
		{"Garbage Bearer", "Bearer not-a-jwt", fiber.StatusUnauthorized},
		{"Unknown Scheme", "Basic abc", fiber.StatusUnauthorized},
		{"Unknown Access Token", "Token nope", fiber.StatusUnauthorized},
		{"Banned Crab", h.token(mallory), fiber.StatusForbidden},
		{"Deleted Crab", h.token(gone), fiber.StatusUnauthorized},
		{"Active Crab", h.token(alice), fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, h.do("GET", "/api/me", tt.auth, nil, nil))
		})
	}

	// Public routes still reject bad credentials rather than ignoring them.
	assert.Equal(t, fiber.StatusUnauthorized, h.do("GET", "/api/wild", "Bearer not-a-jwt", nil, nil))
	assert.Equal(t, fiber.StatusOK, h.do("GET", "/api/wild", "", nil, nil))
}

func TestBlockHidesBothWays(t *testing.T) {
	h := newHarness(t)
	alice := h.fx.Crab("alice")
	bob := h.fx.Crab("bob")
	bobsMolt := h.fx.Molt(bob, "hello from bob")

	assert.Equal(t, fiber.StatusOK, h.do("GET", "/api/crabs/alice", h.token(bob), nil, nil))
	require.Equal(t, fiber.StatusNoContent, h.do("POST", "/api/crabs/bob/block", h.token(alice), nil, nil))
	// Blocking twice is a no-op.
	require.Equal(t, fiber.StatusNoContent, h.do("POST", "/api/crabs/bob/block", h.token(alice), nil, nil))

	assert.Equal(t, fiber.StatusNotFound, h.do("GET", "/api/crabs/alice", h.token(bob), nil, nil))
	assert.Equal(t, fiber.StatusNotFound, h.do("GET", fmt.Sprintf("/api/molts/%d", bobsMolt.ID), h.token(alice), nil, nil))
	assert.Equal(t, fiber.StatusOK, h.do("GET", fmt.Sprintf("/api/molts/%d", bobsMolt.ID), "", nil, nil))

	var wild pageBody
	require.Equal(t, fiber.StatusOK, h.do("GET", "/api/wild", h.token(alice), nil, &wild))
	assert.Empty(t, wild.Items)
	assert.Zero(t, wild.Total)
}

func TestBannedProfileIsNotFound(t *testing.T) {
	h := newHarness(t)
	h.fx.CrabWithStatus("mallory", models.StatusBanned)

	var body models.ErrorResponse
	assert.Equal(t, fiber.StatusNotFound, h.do("GET", "/api/crabs/mallory", "", nil, &body))
	assert.Equal(t, models.CodeNotFound, body.Code)
	assert.Equal(t, fiber.StatusNotFound, h.do("GET", "/api/crabs/mallory/molts", "", nil, nil))
}

func TestLikeNotifiesOnce(t *testing.T) {
	h := newHarness(t)
	alice := h.fx.Crab("alice")
	bob := h.fx.Crab("bob")
	molt := h.fx.Molt(alice, "like me")

	path := fmt.Sprintf("/api/molts/%d/like", molt.ID)
	assert.Equal(t, fiber.StatusNoContent, h.do("POST", path, h.token(bob), nil, nil))
	assert.Equal(t, fiber.StatusNoContent, h.do("POST", path, h.token(bob), nil, nil))

	var unread struct {
		Count int64 `json:"count"`
	}
	require.Equal(t, fiber.StatusOK, h.do("GET", "/api/notifications/unread", h.token(alice), nil, &unread))
	assert.Equal(t, int64(1), unread.Count)

	var inbox pageBody
	require.Equal(t, fiber.StatusOK, h.do("GET", "/api/notifications", h.token(alice), nil, &inbox))
	require.Len(t, inbox.Items, 1)
	assert.Equal(t, "like", inbox.Items[0].Type)

	require.Equal(t, fiber.StatusOK, h.do("GET", "/api/notifications/unread", h.token(alice), nil, &unread))
	assert.Zero(t, unread.Count)

	var got struct {
		LikeCount int  `json:"like_count"`
		Liked     bool `json:"liked"`
	}
	require.Equal(t, fiber.StatusOK, h.do("GET", fmt.Sprintf("/api/molts/%d", molt.ID), h.token(bob), nil, &got))
	assert.Equal(t, 1, got.LikeCount)
	assert.True(t, got.Liked)
}

func TestWildPagingIsAnchored(t *testing.T) {
	h := newHarness(t)
	alice := h.fx.Crab("alice")
	first := h.fx.Molt(alice, "one")
	h.fx.Molt(alice, "two")
	h.fx.Molt(alice, "three")

	var page1 pageBody
	require.Equal(t, fiber.StatusOK, h.do("GET", "/api/wild?size=2", "", nil, &page1))
	require.Len(t, page1.Items, 2)
	assert.True(t, page1.HasMore)
	require.NotNil(t, page1.Anchor)

	// A molt posted while paging does not shift page two.
	h.fx.Molt(alice, "four")

	q := url.Values{}
	q.Set("page", "2")
	q.Set("size", "2")
	q.Set("anchor_at", page1.Anchor.At.Format(time.RFC3339Nano))
	q.Set("anchor_id", fmt.Sprint(page1.Anchor.ID))
	var page2 pageBody
	require.Equal(t, fiber.StatusOK, h.do("GET", "/api/wild?"+q.Encode(), "", nil, &page2))
	require.Len(t, page2.Items, 1)
	assert.Equal(t, first.ID, page2.Items[0].ID)
	assert.False(t, page2.HasMore)
	assert.Equal(t, int64(3), page2.Total)

	assert.Equal(t, fiber.StatusBadRequest, h.do("GET", "/api/wild?anchor_at=yesterday", "", nil, nil))
}

func TestCreateAndEditMolt(t *testing.T) {
	h := newHarness(t)
	alice := h.fx.Crab("alice")
	bob := h.fx.Crab("bob")

	var molt struct {
		ID      uint   `json:"id"`
		Content string `json:"content"`
		Edited  bool   `json:"edited"`
	}
	body := map[string]any{"content": "hi @bob %crabs"}
	require.Equal(t, fiber.StatusCreated, h.do("POST", "/api/molts", h.token(alice), body, &molt))
	assert.Equal(t, "hi @bob %crabs", molt.Content)

	var tagged pageBody
	require.Equal(t, fiber.StatusOK, h.do("GET", "/api/crabtags/CRABS", "", nil, &tagged))
	require.Len(t, tagged.Items, 1)

	path := fmt.Sprintf("/api/molts/%d", molt.ID)
	assert.Equal(t, fiber.StatusForbidden, h.do("PUT", path, h.token(bob), map[string]string{"content": "mine now"}, nil))
	require.Equal(t, fiber.StatusOK, h.do("PUT", path, h.token(alice), map[string]string{"content": "edited"}, &molt))
	assert.True(t, molt.Edited)

	assert.Equal(t, fiber.StatusBadRequest, h.do("POST", "/api/molts", h.token(alice), map[string]any{"content": "   "}, nil))
	assert.Equal(t, fiber.StatusBadRequest, h.do("GET", "/api/molts/abc", "", nil, nil))
	assert.Equal(t, fiber.StatusUnauthorized, h.do("POST", "/api/molts", "", body, nil))

	require.Equal(t, fiber.StatusNoContent, h.do("DELETE", path, h.token(alice), nil, nil))
	assert.Equal(t, fiber.StatusNotFound, h.do("GET", path, "", nil, nil))
}

func TestAccessTokenAuth(t *testing.T) {
	h := newHarness(t)
	alice := h.fx.Crab("alice")

	var token models.AccessToken
	require.Equal(t, fiber.StatusCreated, h.do("POST", "/api/developer/tokens", h.token(alice), nil, &token))
	require.NotEmpty(t, token.Key)

	var me models.Crab
	assert.Equal(t, fiber.StatusOK, h.do("GET", "/api/me", "Token "+token.Key, nil, &me))
	assert.Equal(t, alice.ID, me.ID)

	// Access tokens are not sessions and cannot be logged out.
	assert.Equal(t, fiber.StatusBadRequest, h.do("POST", "/api/auth/logout", "Token "+token.Key, nil, nil))

	require.Equal(t, fiber.StatusCreated, h.do("POST", "/api/developer/tokens", h.token(alice), nil, nil))
	assert.Equal(t, fiber.StatusBadRequest, h.do("POST", "/api/developer/tokens", h.token(alice), nil, nil))

	require.Equal(t, fiber.StatusNoContent,
		h.do("DELETE", fmt.Sprintf("/api/developer/tokens/%d", token.ID), h.token(alice), nil, nil))
	assert.Equal(t, fiber.StatusUnauthorized, h.do("GET", "/api/me", "Token "+token.Key, nil, nil))
}

func TestPreferences(t *testing.T) {
	h := newHarness(t)
	alice := h.fx.Crab("alice")

	var prefs map[string]bool
	require.Equal(t, fiber.StatusOK, h.do("PUT", "/api/settings/preferences", h.token(alice),
		map[string]bool{models.PrefLightMode: true}, &prefs))
	assert.True(t, prefs[models.PrefLightMode])

	assert.Equal(t, fiber.StatusBadRequest, h.do("PUT", "/api/settings/preferences", h.token(alice),
		map[string]bool{"dark_patterns": true}, nil))

	prefs = nil
	require.Equal(t, fiber.StatusOK, h.do("GET", "/api/settings/preferences", h.token(alice), nil, &prefs))
	assert.Len(t, prefs, len(models.KnownPreferences))
	assert.True(t, prefs[models.PrefLightMode])
	assert.False(t, prefs[models.PrefSpookyMode])
}

func TestLogoutRevokesToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})

	t.Setenv("APP_ENV", "test")
	db := testutil.NewTestDB(t)
	srv, err := NewServerWithDeps(testConfig(), db, rdb)
	require.NoError(t, err)
	h := &harness{t: t, db: db, srv: srv, app: srv.NewApp(), fx: testutil.NewFixtures(t, db)}

	auth := h.token(h.fx.Crab("alice"))
	require.Equal(t, fiber.StatusOK, h.do("GET", "/api/me", auth, nil, nil))
	require.Equal(t, fiber.StatusNoContent, h.do("POST", "/api/auth/logout", auth, nil, nil))

	var body models.ErrorResponse
	assert.Equal(t, fiber.StatusUnauthorized, h.do("GET", "/api/me", auth, nil, &body))
	assert.Equal(t, "Token has been revoked", body.Error)
}

func TestHumanizeParam(t *testing.T) {
	assert.Equal(t, "ID", humanizeParam("id"))
	assert.Equal(t, "molt ID", humanizeParam("moltId"))
	assert.Equal(t, "username", humanizeParam("username"))
}

func TestFeatured(t *testing.T) {
	h := newHarness(t)
	alice := h.fx.Crab("alice")
	molt := h.fx.Molt(alice, "welcome to the reef")
	h.srv.config.FeaturedCrabUsername = "alice"
	h.srv.config.FeaturedMoltID = molt.ID

	var out struct {
		Crab *models.Crab `json:"crab"`
		Molt *struct {
			ID uint `json:"id"`
		} `json:"molt"`
	}
	require.Equal(t, fiber.StatusOK, h.do("GET", "/api/featured", "", nil, &out))
	require.NotNil(t, out.Crab)
	require.NotNil(t, out.Molt)
	assert.Equal(t, "alice", out.Crab.Username)
	assert.Equal(t, molt.ID, out.Molt.ID)

	h.fx.SetStatus(alice, models.StatusBanned)
	out.Crab, out.Molt = nil, nil
	require.Equal(t, fiber.StatusOK, h.do("GET", "/api/featured", "", nil, &out))
	assert.Nil(t, out.Crab)
	assert.Nil(t, out.Molt)
}
