package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/logging"
	"github.com/dmitrijs2005/gophmaps/internal/netx"
	"github.com/dmitrijs2005/gophmaps/internal/server/auth"
	"github.com/dmitrijs2005/gophmaps/internal/server/authz"
	"github.com/dmitrijs2005/gophmaps/internal/server/media"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophmaps/internal/server/services"
	"github.com/dmitrijs2005/gophmaps/internal/server/storage"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiClient struct {
	t   *testing.T
	srv *httptest.Server
}

func newAPI(t *testing.T, cfg Config) *apiClient {
	t.Helper()
	var router http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	db := memory.NewStore()
	repos := memory.NewManager(db)
	objects := storage.NewMemoryStore(srv.URL + ObjectsPath)
	engine, err := authz.NewEngine(repos)
	require.NoError(t, err)
	log := logging.Nop()
	mgr := media.NewManager(media.Config{UploadTTL: time.Minute, DownloadTTL: time.Minute, MaxUploadSize: 1 << 20},
		db, repos, objects, engine, log)

	d := services.Deps{Tx: db, Repos: repos, Authz: engine, Media: mgr, Log: log}
	svc := Services{
		Users:       services.NewUserService(db, repos, auth.NewTokenService([]byte("secret"), time.Hour), time.Hour),
		Maps:        services.NewMapService(d),
		Grants:      services.NewGrantService(d),
		Collections: services.NewCollectionService(d),
		Markers:     services.NewMarkerService(d),
		Articles:    services.NewArticleService(d),
		Media:       services.NewMediaService(d),
		Folders:     services.NewFolderService(d),
	}
	if cfg.RateLimitRequests == 0 {
		cfg.RateLimitRequests, cfg.RateLimitWindow = 10000, time.Minute
	}
	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = []string{"*"}
	}
	cfg.Objects = objects
	router = NewRouter(cfg, svc, log)
	return &apiClient{t: t, srv: srv}
}

// do sends body as JSON and decodes the response into out when it is set.
func (c *apiClient) do(method, path, token string, body any, out any) int {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, rd)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *apiClient) signup(name string) string {
	c.t.Helper()
	status := c.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": name, "password": "password-" + name}, nil)
	require.Equal(c.t, http.StatusCreated, status)
	var tokens tokenResponse
	status = c.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": name, "password": "password-" + name}, &tokens)
	require.Equal(c.t, http.StatusOK, status)
	return tokens.AccessToken
}

func (c *apiClient) expectError(method, path, token string, body any, status int, kind string) errorBody {
	c.t.Helper()
	var e errorBody
	got := c.do(method, path, token, body, &e)
	assert.Equal(c.t, status, got, "%s %s", method, path)
	assert.Equal(c.t, kind, e.Error.Kind, "%s %s", method, path)
	return e
}

func TestHealthAndMetrics(t *testing.T) {
	c := newAPI(t, Config{})

	var health map[string]string
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/healthz", "", nil, &health))
	assert.Equal(t, "ok", health["status"])

	resp, err := c.srv.Client().Get(c.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `gophmaps_http_request_duration_seconds_count{method="GET",route="/healthz",status="200"}`)
}

func TestBearerAuth(t *testing.T) {
	c := newAPI(t, Config{})

	c.expectError(http.MethodGet, "/api/v1/maps", "", nil, http.StatusUnauthorized, common.KindTokenInvalid)
	c.expectError(http.MethodGet, "/api/v1/maps", "not-a-jwt", nil, http.StatusUnauthorized, common.KindTokenInvalid)

	token := c.signup("alice")
	var maps []mapResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/maps", token, nil, &maps))
	assert.Empty(t, maps)
}

func TestAuthEndpoints(t *testing.T) {
	c := newAPI(t, Config{})

	var user userResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"username": "alice", "password": "correct horse", "display_name": "Alice"}, &user))
	assert.Equal(t, "alice", user.UserName)
	assert.Equal(t, "Alice", user.DisplayName)
	assert.NotEmpty(t, user.ID)

	c.expectError(http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"username": "alice", "password": "another password"}, http.StatusConflict, common.KindConflict)
	e := c.expectError(http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"username": "bob", "password": "short"}, http.StatusBadRequest, common.KindValidation)
	require.Len(t, e.Error.Fields, 1)
	assert.Equal(t, "password", e.Error.Fields[0].Field)

	c.expectError(http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "alice", "password": "wrong password"}, http.StatusUnauthorized, common.KindInvalidCredentials)
	c.expectError(http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "nobody", "password": "wrong password"}, http.StatusUnauthorized, common.KindInvalidCredentials)

	var tokens tokenResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "alice", "password": "correct horse"}, &tokens))
	require.NotEmpty(t, tokens.RefreshToken)

	var rotated tokenResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/v1/auth/refresh", "",
		map[string]string{"refresh_token": tokens.RefreshToken}, &rotated))
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	c.expectError(http.MethodPost, "/api/v1/auth/refresh", "",
		map[string]string{"refresh_token": tokens.RefreshToken}, http.StatusUnauthorized, common.KindTokenInvalid)
}

// upload performs begin, PUT to the presigned URL and complete.
func (c *apiClient) upload(token, ownerPath string, data []byte) mediaResponse {
	c.t.Helper()
	return c.uploadVia(token, ownerPath+"/media", data)
}

func (c *apiClient) uploadVia(token, beginPath string, data []byte) mediaResponse {
	c.t.Helper()
	var ticket uploadResponse
	require.Equal(c.t, http.StatusCreated, c.do(http.MethodPost, beginPath, token,
		map[string]any{"content_type": "image/jpeg", "size": len(data)}, &ticket))
	assert.Equal(c.t, "pending", string(ticket.Asset.Status))

	header := http.Header{}
	for k, v := range ticket.Upload.Headers {
		header.Set(k, v)
	}
	_, err := netx.Presigned(context.Background(), c.srv.Client(), ticket.Upload.Method, ticket.Upload.URL, header, data)
	require.NoError(c.t, err)

	var asset mediaResponse
	require.Equal(c.t, http.StatusOK, c.do(http.MethodPost, "/api/v1/media/"+ticket.Asset.ID+"/complete", token, nil, &asset))
	assert.Equal(c.t, "committed", string(asset.Status))
	return asset
}

func TestBerlinTripOverHTTP(t *testing.T) {
	c := newAPI(t, Config{})
	alice, bob, eve := c.signup("alice"), c.signup("bob"), c.signup("eve")

	var m mapResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/maps", alice, map[string]string{"title": "Berlin Trip"}, &m))
	assert.Equal(t, "private", string(m.Visibility))

	var col collectionResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/maps/"+m.ID+"/collections", alice, map[string]string{"name": "Day 1"}, &col))

	var marker markerResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/collections/"+col.ID+"/markers", alice,
		map[string]any{"title": "Brandenburg Gate", "lat": 52.5163, "lon": 13.3777}, &marker))

	var article articleResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/api/v1/markers/"+marker.ID+"/article", alice,
		map[string]string{"body": "<p>Neoclassical gate.</p>"}, &article))

	asset := c.upload(alice, "/api/v1/articles/"+article.ID, []byte("jpeg-bytes"))

	var g grantResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/api/v1/maps/"+m.ID+"/grants/bob", alice, map[string]string{"permission": "view"}, &g))
	assert.Equal(t, "bob", g.UserName)

	var tree mapTreeResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/maps/"+m.ID, bob, nil, &tree))
	assert.Equal(t, "Berlin Trip", tree.Title)
	require.Len(t, tree.Collections, 1)
	require.Len(t, tree.Collections[0].Markers, 1)
	got := tree.Collections[0].Markers[0]
	assert.Equal(t, "Brandenburg Gate", got.Title)
	require.NotNil(t, got.Article)
	assert.Equal(t, "<p>Neoclassical gate.</p>", got.Article.Body)
	require.Len(t, got.Article.Media, 1)
	assert.Equal(t, asset.ID, got.Article.Media[0].ID)

	var dl downloadResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/media/"+asset.ID, bob, nil, &dl))
	data, err := netx.Presigned(context.Background(), c.srv.Client(), dl.Download.Method, dl.Download.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	c.expectError(http.MethodPost, "/api/v1/collections/"+col.ID+"/markers", bob,
		map[string]any{"title": "Reichstag", "lat": 52.5186, "lon": 13.3762}, http.StatusForbidden, common.KindForbidden)
	c.expectError(http.MethodPatch, "/api/v1/maps/"+m.ID, bob, map[string]string{"title": "Mine"}, http.StatusForbidden, common.KindForbidden)
	c.expectError(http.MethodDelete, "/api/v1/media/"+asset.ID, bob, nil, http.StatusForbidden, common.KindForbidden)

	c.expectError(http.MethodGet, "/api/v1/maps/"+m.ID, eve, nil, http.StatusNotFound, common.KindNotFound)
	c.expectError(http.MethodGet, "/api/v1/markers/"+marker.ID, eve, nil, http.StatusNotFound, common.KindNotFound)

	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/api/v1/maps/"+m.ID+"/visibility", alice, map[string]string{"visibility": "public"}, nil))
	var publicMaps []mapResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/maps?public=true", eve, nil, &publicMaps))
	require.Len(t, publicMaps, 1)
	assert.Equal(t, m.ID, publicMaps[0].ID)
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/markers/"+marker.ID, eve, nil, nil))

	require.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/v1/maps/"+m.ID+"/grants/bob", alice, nil, nil))
	require.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/v1/maps/"+m.ID, alice, nil, nil))
	c.expectError(http.MethodGet, "/api/v1/maps/"+m.ID, alice, nil, http.StatusNotFound, common.KindNotFound)
}

func TestPublicReadsWithoutToken(t *testing.T) {
	c := newAPI(t, Config{})
	alice := c.signup("alice")

	var m mapResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/maps", alice, map[string]string{"title": "Rome"}, &m))
	var col collectionResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/maps/"+m.ID+"/collections", alice, map[string]string{"name": "Day 1"}, &col))
	var marker markerResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/collections/"+col.ID+"/markers", alice,
		map[string]any{"title": "Colosseum", "lat": 41.8902, "lon": 12.4922}, &marker))
	asset := c.upload(alice, "/api/v1/markers/"+marker.ID, []byte("jpeg"))

	c.expectError(http.MethodGet, "/api/v1/public/maps/"+m.ID, "", nil, http.StatusNotFound, common.KindNotFound)

	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/api/v1/maps/"+m.ID+"/visibility", alice, map[string]string{"visibility": "public"}, nil))
	var tree mapTreeResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/public/maps/"+m.ID, "", nil, &tree))
	assert.Equal(t, "Rome", tree.Title)
	require.Len(t, tree.Collections, 1)
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/public/markers/"+marker.ID, "", nil, nil))
	var dl downloadResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/public/media/"+asset.ID, "", nil, &dl))
	assert.Equal(t, asset.ID, dl.Asset.ID)

	// Only the read routes are public.
	c.expectError(http.MethodGet, "/api/v1/maps/"+m.ID+"/collections", "", nil, http.StatusUnauthorized, common.KindTokenInvalid)
	c.expectError(http.MethodGet, "/api/v1/public/maps/not-a-uuid", "", nil, http.StatusNotFound, common.KindNotFound)
	c.expectError(http.MethodGet, "/api/v1/markers/abc", alice, nil, http.StatusNotFound, common.KindNotFound)
}

func TestLibraryOverHTTP(t *testing.T) {
	c := newAPI(t, Config{})
	alice, bob := c.signup("alice"), c.signup("bob")

	var found userResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/users/bob", alice, nil, &found))
	assert.Equal(t, "bob", found.UserName)
	c.expectError(http.MethodGet, "/api/v1/users/nobody", alice, nil, http.StatusNotFound, common.KindNotFound)

	var m mapResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/maps", alice, map[string]string{"title": "Office", "map_type": "custom_image"}, &m))
	assert.Equal(t, "custom_image", string(m.Type))
	c.expectError(http.MethodPost, "/api/v1/maps", alice, map[string]string{"title": "x", "map_type": "globe"}, http.StatusBadRequest, common.KindValidation)

	img := c.uploadVia(alice, "/api/v1/maps/"+m.ID+"/image", []byte("png-bytes"))
	var tree mapTreeResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/maps/"+m.ID, alice, nil, &tree))
	require.NotNil(t, tree.Image)
	assert.Equal(t, img.ID, tree.Image.ID)

	var shared []mapResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/maps/shared", alice, nil, &shared))
	assert.Empty(t, shared)
	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/api/v1/maps/"+m.ID+"/grants/bob", alice, map[string]string{"permission": "view"}, nil))
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/maps/shared", alice, nil, &shared))
	require.Len(t, shared, 1)

	var work, floors folderResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/folders", alice, map[string]string{"name": "Work"}, &work))
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/folders", alice, map[string]string{"name": "Floors", "parent_id": work.ID}, &floors))
	require.Equal(t, http.StatusNoContent, c.do(http.MethodPut, "/api/v1/maps/"+m.ID+"/folder", alice, map[string]string{"folder_id": floors.ID}, nil))

	var roots []folderTreeResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/folders/tree", alice, nil, &roots))
	require.Len(t, roots, 1)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, []string{m.ID}, roots[0].Children[0].MapIDs)

	c.expectError(http.MethodPut, "/api/v1/folders/"+work.ID+"/parent", alice, map[string]string{"parent_id": floors.ID},
		http.StatusBadRequest, common.KindValidation)
	c.expectError(http.MethodGet, "/api/v1/folders/"+work.ID, bob, nil, http.StatusNotFound, common.KindNotFound)

	require.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/v1/folders/"+floors.ID, alice, nil, nil))
	var content folderContentResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/folders/"+work.ID+"/content", alice, nil, &content))
	require.Len(t, content.Maps, 1)
	assert.Equal(t, m.ID, content.Maps[0].ID)

	var top folderContentResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/folders/content", alice, nil, &top))
	assert.Nil(t, top.Folder)
	require.Len(t, top.Folders, 1)
	assert.Empty(t, top.Maps)
}

func TestCollectionsAndMarkers(t *testing.T) {
	c := newAPI(t, Config{})
	alice := c.signup("alice")

	var m mapResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/maps", alice, map[string]string{"title": "London"}, &m))
	var day1, day2 collectionResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/maps/"+m.ID+"/collections", alice, map[string]string{"name": "Day 1"}, &day1))
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/maps/"+m.ID+"/collections", alice, map[string]string{"name": "Day 2"}, &day2))
	c.expectError(http.MethodPost, "/api/v1/maps/"+m.ID+"/collections", alice, map[string]string{"name": "Day 1"}, http.StatusConflict, common.KindConflict)

	var moved collectionResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/api/v1/collections/"+day2.ID+"/position", alice, map[string]int{"position": 0}, &moved))
	assert.Equal(t, 0, moved.Position)
	c.expectError(http.MethodPut, "/api/v1/collections/"+day2.ID+"/position", alice, map[string]string{}, http.StatusBadRequest, common.KindValidation)

	var list []collectionResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/maps/"+m.ID+"/collections", alice, nil, &list))
	require.Len(t, list, 2)
	assert.Equal(t, []string{"Day 2", "Day 1"}, []string{list[0].Name, list[1].Name})

	var marker markerResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/collections/"+day1.ID+"/markers", alice,
		map[string]any{"title": "Big Ben", "lat": 51.5, "lon": -0.12}, &marker))
	assert.Equal(t, 51.5, marker.Lat)
	assert.Equal(t, -0.12, marker.Lon)

	e := c.expectError(http.MethodPost, "/api/v1/collections/"+day1.ID+"/markers", alice,
		map[string]any{"title": "Nowhere", "lat": 91, "lon": 0}, http.StatusBadRequest, common.KindValidation)
	require.NotEmpty(t, e.Error.Fields)
	assert.Equal(t, "lat", e.Error.Fields[0].Field)

	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/api/v1/markers/"+marker.ID+"/collection", alice,
		map[string]string{"collection_id": day2.ID}, &marker))
	assert.Equal(t, day2.ID, marker.CollectionID)

	var markers []markerResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/collections/"+day2.ID+"/markers", alice, nil, &markers))
	require.Len(t, markers, 1)

	require.Equal(t, http.StatusOK, c.do(http.MethodPatch, "/api/v1/markers/"+marker.ID, alice,
		map[string]any{"title": "Elizabeth Tower", "lat": 51.5007, "lon": -0.1246}, &marker))
	assert.Equal(t, "Elizabeth Tower", marker.Title)

	require.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/v1/markers/"+marker.ID, alice, nil, nil))
	c.expectError(http.MethodGet, "/api/v1/markers/"+marker.ID+"/article", alice, nil, http.StatusNotFound, common.KindNotFound)
	require.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/v1/collections/"+day1.ID, alice, nil, nil))
}

func TestMediaVerificationFailure(t *testing.T) {
	c := newAPI(t, Config{})
	alice := c.signup("alice")

	var m mapResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/maps", alice, map[string]string{"title": "Paris"}, &m))
	var col collectionResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/maps/"+m.ID+"/collections", alice, map[string]string{"name": "Day 1"}, &col))
	var marker markerResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/collections/"+col.ID+"/markers", alice,
		map[string]any{"title": "Louvre", "lat": 48.8606, "lon": 2.3376}, &marker))

	var ticket uploadResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/markers/"+marker.ID+"/media", alice,
		map[string]any{"content_type": "image/png", "size": 10}, &ticket))
	assert.Equal(t, "image/png", ticket.Upload.Headers["Content-Type"])

	c.expectError(http.MethodGet, "/api/v1/media/"+ticket.Asset.ID, alice, nil, http.StatusNotFound, common.KindNotFound)
	c.expectError(http.MethodPost, "/api/v1/media/"+ticket.Asset.ID+"/complete", alice, nil,
		http.StatusUnprocessableEntity, common.KindMediaVerificationFailed)
	c.expectError(http.MethodPost, "/api/v1/markers/"+marker.ID+"/media", alice,
		map[string]any{"content_type": "image/png", "size": 0}, http.StatusBadRequest, common.KindValidation)
}

func TestMalformedBody(t *testing.T) {
	c := newAPI(t, Config{})
	alice := c.signup("alice")

	req, err := http.NewRequest(http.MethodPost, c.srv.URL+"/api/v1/maps", strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+alice)
	resp, err := c.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var e errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, common.KindValidation, e.Error.Kind)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	c := newAPI(t, Config{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	body := map[string]string{"username": "nobody", "password": "password"}
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/v1/auth/login", "", body, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/v1/auth/login", "", body, nil))
	assert.Equal(t, http.StatusTooManyRequests, c.do(http.MethodPost, "/api/v1/auth/login", "", body, nil))

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/healthz", "", nil, nil))
}

func TestCORSPreflight(t *testing.T) {
	c := newAPI(t, Config{CORSOrigins: []string{"https://maps.example"}})

	req, err := http.NewRequest(http.MethodOptions, c.srv.URL+"/api/v1/maps", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://maps.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	resp, err := c.srv.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "https://maps.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPatch)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
		msg    string
	}{
		{fmt.Errorf("authorize: %w", common.ErrForbidden), http.StatusForbidden, common.KindForbidden, "forbidden"},
		{fmt.Errorf("verify: %w", common.ErrTokenExpired), http.StatusUnauthorized, common.KindTokenExpired, "token expired"},
		{common.ErrRefreshTokenExpired, http.StatusUnauthorized, common.KindRefreshTokenExpired, "refresh token expired"},
		{fmt.Errorf("head object: %w", common.ErrStorageUnavailable), http.StatusServiceUnavailable, common.KindStorageUnavailable, "storage unavailable"},
		{common.ErrStorageFatal, http.StatusInternalServerError, common.KindStorageFatal, "storage fatal error"},
		{errors.New(`pq: relation "maps" does not exist`), http.StatusInternalServerError, common.KindInternal, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background())
			writeError(rec, req, logging.Nop(), tt.err)

			var e errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, e.Error.Kind)
			assert.Equal(t, tt.msg, e.Error.Message)
		})
	}
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", http.NotFoundHandler(), logging.Nop(), time.Second)
	assert.Equal(t, "http-server", s.String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
