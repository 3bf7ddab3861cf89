package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/primal-host/primal-site/internal/auth"
	"github.com/primal-host/primal-site/internal/config"
	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/events"
	"github.com/primal-host/primal-site/internal/mailer"
	"github.com/primal-host/primal-site/internal/media"
	"github.com/primal-host/primal-site/internal/store"
	"github.com/primal-host/primal-site/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const adminKey = "test-admin-key"

type site struct {
	srv   *Server
	store *store.Memory
	deps  Deps
}

func newSite(t *testing.T) site {
	t.Helper()
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	cfg := &config.Config{
		ListenAddr:        ":0",
		AdminKey:          adminKey,
		AdminPasswordHash: hash,
		JWTSecret:         "jwt-secret",
		SiteURL:           "https://example.test",
	}
	log := zaptest.NewLogger(t)
	st := store.NewMemory()
	d, err := NewDeps(cfg, Backends{
		Store:    st,
		Media:    media.NewMemory(),
		Changes:  events.NewMemoryLog(),
		Notifier: mailer.NewLog(log),
	}, log)
	require.NoError(t, err)
	t.Cleanup(d.Events.Shutdown)
	return site{srv: New(cfg, d), store: st, deps: d}
}

func (s site) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func items(t *testing.T, body map[string]any) []map[string]any {
	t.Helper()
	raw, ok := body["items"].([]any)
	require.True(t, ok, "items missing: %v", body)
	out := make([]map[string]any, len(raw))
	for i, r := range raw {
		out[i] = r.(map[string]any)
	}
	return out
}

func TestHomeFallsBackToDefaultHeadline(t *testing.T) {
	s := newSite(t)
	rec := s.do(t, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Professional IT Services &amp; Microsoft 365 Solutions")
}

func TestHealth(t *testing.T) {
	s := newSite(t)
	rec := s.do(t, http.MethodGet, "/_health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "memory", decode(t, rec)["store"])
}

func TestPublicContent(t *testing.T) {
	s := newSite(t)

	rec := s.do(t, http.MethodGet, "/api/content/hero", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "defaults", body["source"])

	hero := s.deps.Registry.MustGet(content.TypeHero)
	storetest.Seed(s.store, hero, content.Fields{"headline": "Stored headline"})
	body = decode(t, s.do(t, http.MethodGet, "/api/content/hero", "", ""))
	assert.Equal(t, "store", body["source"])
	assert.Equal(t, "Stored headline", items(t, body)[0]["headline"])

	body = decode(t, s.do(t, http.MethodGet, "/api/content/section_headings", "", ""))
	assert.Len(t, items(t, body), len(content.BuiltinDefaults().For(content.TypeSectionHeadings)))

	rec = s.do(t, http.MethodGet, "/api/content/form_submissions", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContactAPI(t *testing.T) {
	s := newSite(t)
	submissions := s.deps.Registry.MustGet(content.TypeFormSubmissions)

	rec := s.do(t, http.MethodPost, "/api/contact", `{"name":"","email":"a@b.co","message":"hi"}`, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "idle_with_errors", body["state"])
	assert.Equal(t, "Name is required", body["errors"].(map[string]any)["name"])
	rows, err := s.store.Select(t.Context(), submissions, store.Query{})
	require.NoError(t, err)
	assert.Empty(t, rows, "invalid submission must not be stored")

	rec = s.do(t, http.MethodPost, "/api/contact", `{"name":"Ada","email":"ada@example.com","message":"Need M365"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "submitted", body["state"])
	assert.InDelta(t, 5000, body["reset_after_ms"], 100)

	rows, err = s.store.Select(t.Context(), submissions, store.Query{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada", rows[0].Get("full_name"))
	assert.False(t, rows[0].Bool("is_read"))
}

func TestContactFormPage(t *testing.T) {
	s := newSite(t)
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader("name=Ada&email=ada%40example.com&message=Hello"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Thank you!")
	assert.Contains(t, rec.Body.String(), `http-equiv="refresh"`)
}

func TestAdminRequiresAuth(t *testing.T) {
	s := newSite(t)

	rec := s.do(t, http.MethodGet, "/admin/api/menu", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AuthRequired", decode(t, rec)["error"])

	rec = s.do(t, http.MethodGet, "/admin/api/menu", "", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "InvalidToken", decode(t, rec)["error"])

	rec = s.do(t, http.MethodGet, "/admin/api/menu", "", adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	menu := decode(t, rec)["menu"].([]any)
	assert.Len(t, menu, len(s.deps.Registry.Public()))
}

func TestQueryTokenOnlyOpensEventStream(t *testing.T) {
	s := newSite(t)

	rec := s.do(t, http.MethodGet, "/admin/api/menu?access_token="+adminKey, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AuthRequired", decode(t, rec)["error"])

	rec = s.do(t, http.MethodGet, "/admin/api/events", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/api/events?access_token=wrong", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "InvalidToken", decode(t, rec)["error"])
}

func TestLoginAndRefresh(t *testing.T) {
	s := newSite(t)

	rec := s.do(t, http.MethodPost, "/admin/api/session", `{"password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/admin/api/session", `{"password":"hunter2"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	pair := decode(t, rec)
	access := pair["accessJwt"].(string)
	refresh := pair["refreshJwt"].(string)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/admin/api/dashboard", "", access).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/admin/api/dashboard", "", refresh).Code)

	rec = s.do(t, http.MethodPost, "/admin/api/session/refresh", "", refresh)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["accessJwt"])
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/admin/api/session/refresh", "", access).Code)
}

func TestCreateNavigationItemAppearsLast(t *testing.T) {
	s := newSite(t)
	nav := s.deps.Registry.MustGet(content.TypeNavigation)
	storetest.Seed(s.store, nav,
		content.Fields{"label": "Home", "href": "/"},
		content.Fields{"label": "About", "href": "/about"},
	)

	rec := s.do(t, http.MethodPost, "/admin/api/content/navigation", `{"fields":{"label":"Pricing","href":"/pricing"}}`, adminKey)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	list := items(t, decode(t, rec))
	require.Len(t, list, 3)
	assert.Equal(t, "Pricing", list[2]["label"])
	assert.EqualValues(t, 3, list[2]["position"])

	public := items(t, decode(t, s.do(t, http.MethodGet, "/api/content/navigation", "", "")))
	require.Len(t, public, 3)
	assert.Equal(t, "Pricing", public[2]["label"])
}

func TestCreateValidationKeepsForm(t *testing.T) {
	s := newSite(t)
	rec := s.do(t, http.MethodPost, "/admin/api/content/navigation", `{"fields":{"label":"","href":"/x"}}`, adminKey)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ValidationFailed", body["error"])
	form := body["view"].(map[string]any)["form"].(map[string]any)
	assert.Equal(t, "/x", form["values"].(map[string]any)["href"])
	assert.Contains(t, form["errors"], "label")
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	s := newSite(t)
	team := s.deps.Registry.MustGet(content.TypeTeam)
	seeded := storetest.Seed(s.store, team, content.Fields{"name": "Ada", "title": "Founder"})
	path := "/admin/api/content/team/" + seeded[0].ID

	rec := s.do(t, http.MethodDelete, path, "", adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, decode(t, rec)["confirm"])
	rows, _ := s.store.Select(t.Context(), team, store.Query{})
	assert.Len(t, rows, 1)

	rec = s.do(t, http.MethodDelete, path+"?confirm=true", "", adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, items(t, decode(t, rec)))

	rec = s.do(t, http.MethodDelete, path+"?confirm=true", "", adminKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSectionHeadingsCannotBeCreated(t *testing.T) {
	s := newSite(t)
	rec := s.do(t, http.MethodPost, "/admin/api/content/section_headings",
		`{"fields":{"section_key":"new","title":"New"}}`, adminKey)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NotAllowed", decode(t, rec)["error"])
}

func TestStaleUpdateConflicts(t *testing.T) {
	s := newSite(t)
	nav := s.deps.Registry.MustGet(content.TypeNavigation)
	seeded := storetest.Seed(s.store, nav, content.Fields{"label": "Home", "href": "/"})

	path := "/admin/api/content/navigation/" + seeded[0].ID
	rec := s.do(t, http.MethodPatch, path, `{"fields":{"label":"Start"},"updatedAt":"2000-01-01T00:00:00Z"}`, adminKey)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "This item was changed in another session. Reload it and try again.", body["message"])

	stamp := seeded[0].UpdatedAt.Format(time.RFC3339Nano)
	rec = s.do(t, http.MethodPatch, path, `{"fields":{"label":"Start"},"updatedAt":"`+stamp+`"}`, adminKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Start", items(t, decode(t, rec))[0]["label"])
}

func TestHidingTeamRemovesItFromAboutPage(t *testing.T) {
	s := newSite(t)
	storetest.Seed(s.store, s.deps.Registry.MustGet(content.TypeTeam), content.Fields{"name": "Ada Lovelace", "title": "Founder"})

	assert.Contains(t, s.do(t, http.MethodGet, "/about", "", "").Body.String(), "Ada Lovelace")

	rec := s.do(t, http.MethodPut, "/admin/api/settings/team", `{"visible":false}`, adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["visible"])

	assert.NotContains(t, s.do(t, http.MethodGet, "/about", "", "").Body.String(), "Ada Lovelace")

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, "/admin/api/settings/bogus", `{"visible":false}`, adminKey).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/admin/api/settings/team", `{}`, adminKey).Code)
}

func TestSubmissionsInbox(t *testing.T) {
	s := newSite(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/contact", `{"name":"Ada","email":"ada@example.com","message":"Hi"}`, "").Code)

	body := decode(t, s.do(t, http.MethodGet, "/admin/api/dashboard", "", adminKey))
	assert.EqualValues(t, 1, body["unread"])

	list := items(t, decode(t, s.do(t, http.MethodGet, "/admin/api/submissions", "", adminKey)))
	require.Len(t, list, 1)
	id := list[0]["id"].(string)

	rec := s.do(t, http.MethodPost, "/admin/api/submissions/"+id+"/read", `{"read":true}`, adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "Marked as read", body["notice"].(map[string]any)["text"])

	body = decode(t, s.do(t, http.MethodGet, "/admin/api/dashboard", "", adminKey))
	assert.EqualValues(t, 0, body["unread"])
}

func TestMediaUploadAndServe(t *testing.T) {
	s := newSite(t)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "logo.png")
	require.NoError(t, err)
	_, err = fw.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/api/media", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+adminKey)
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	url := decode(t, rec)["url"].(string)

	rec = s.do(t, http.MethodGet, url, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, png, rec.Body.Bytes())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "sandbox")

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/media/nope", "", "").Code)
}

func TestMediaUploadRejectsSVG(t *testing.T) {
	s := newSite(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "logo.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/api/media", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+adminKey)
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestChangesEndpoint(t *testing.T) {
	s := newSite(t)
	rec := s.do(t, http.MethodPost, "/admin/api/content/services", `{"fields":{"title":"Backup","description":"Nightly"}}`, adminKey)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, s.do(t, http.MethodGet, "/admin/api/changes?since=0", "", adminKey))
	changes := body["changes"].([]any)
	require.Len(t, changes, 1)
	first := changes[0].(map[string]any)
	assert.Equal(t, "services", first["type"])
	assert.Equal(t, "create", first["action"])
	assert.EqualValues(t, 1, body["cursor"])

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/admin/api/changes?since=x", "", adminKey).Code)
}

func TestEventsWebsocketReplays(t *testing.T) {
	s := newSite(t)
	require.Equal(t, http.StatusCreated,
		s.do(t, http.MethodPost, "/admin/api/content/benefits", `{"fields":{"title":"Fast","description":"Quick fixes"}}`, adminKey).Code)

	ts := httptest.NewServer(s.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/admin/api/events?since=0&access_token=" + adminKey
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var c events.Change
	require.NoError(t, conn.ReadJSON(&c))
	assert.Equal(t, "benefits", c.Type)
	assert.Equal(t, int64(1), c.Seq)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/admin/api/settings/stats", `{"visible":false}`, adminKey).Code)
	require.NoError(t, conn.ReadJSON(&c))
	assert.Equal(t, content.TypeSectionSettings, c.Type)
	assert.Equal(t, int64(2), c.Seq)
}
