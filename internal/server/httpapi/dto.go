package httpapi

import (
	"time"

	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/server/services"
	"github.com/dmitrijs2005/gophmaps/internal/server/storage"
)

type userResponse struct {
	ID          string    `json:"id"`
	UserName    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type mapResponse struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Visibility  models.Visibility `json:"visibility"`
	Type        models.MapType    `json:"map_type"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type mapTreeResponse struct {
	mapResponse
	Image       *mediaResponse           `json:"image,omitempty"`
	Collections []collectionTreeResponse `json:"collections"`
}

type collectionResponse struct {
	ID        string    `json:"id"`
	MapID     string    `json:"map_id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

type collectionTreeResponse struct {
	collectionResponse
	Markers []markerDetailResponse `json:"markers"`
}

type markerResponse struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collection_id"`
	Title        string    `json:"title"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type markerDetailResponse struct {
	markerResponse
	Article *articleResponse `json:"article"`
	Media   []mediaResponse  `json:"media"`
}

type articleResponse struct {
	ID        string          `json:"id"`
	MarkerID  string          `json:"marker_id"`
	Body      string          `json:"body"`
	Media     []mediaResponse `json:"media,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type mediaResponse struct {
	ID          string             `json:"id"`
	OwnerKind   models.OwnerKind   `json:"owner_kind"`
	OwnerID     string             `json:"owner_id"`
	ContentType string             `json:"content_type"`
	Size        int64              `json:"size"`
	Status      models.MediaStatus `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
}

type folderResponse struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type folderTreeResponse struct {
	folderResponse
	Children []folderTreeResponse `json:"children"`
	MapIDs   []string             `json:"map_ids"`
}

type folderContentResponse struct {
	Folder  *folderResponse  `json:"folder"`
	Folders []folderResponse `json:"folders"`
	Maps    []mapResponse    `json:"maps"`
}

type grantResponse struct {
	MapID      string            `json:"map_id"`
	UserID     string            `json:"user_id"`
	UserName   string            `json:"username"`
	Permission models.Permission `json:"permission"`
	CreatedAt  time.Time         `json:"created_at"`
}

// presignedResponse is the request a client must send to the object store.
type presignedResponse struct {
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}

type uploadResponse struct {
	Asset  mediaResponse     `json:"asset"`
	Upload presignedResponse `json:"upload"`
}

type downloadResponse struct {
	Asset    mediaResponse     `json:"asset"`
	Download presignedResponse `json:"download"`
}

func toUser(u *models.User) userResponse {
	return userResponse{ID: u.ID, UserName: u.UserName, DisplayName: u.DisplayName, CreatedAt: u.CreatedAt}
}

func toTokens(p *services.TokenPair) tokenResponse {
	return tokenResponse{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}

func toMap(m *models.Map) mapResponse {
	return mapResponse{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Title:       m.Title,
		Description: m.Description,
		Visibility:  m.Visibility,
		Type:        m.Type,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toMaps(ms []*models.Map) []mapResponse {
	out := make([]mapResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMap(m))
	}
	return out
}

func toMapTree(t *models.MapTree) mapTreeResponse {
	out := mapTreeResponse{mapResponse: toMap(t.Map), Collections: make([]collectionTreeResponse, 0, len(t.Collections))}
	if t.Image != nil {
		img := toMedia(t.Image)
		out.Image = &img
	}
	for _, c := range t.Collections {
		ct := collectionTreeResponse{collectionResponse: toCollection(c.Collection), Markers: make([]markerDetailResponse, 0, len(c.Markers))}
		for _, m := range c.Markers {
			ct.Markers = append(ct.Markers, toMarkerDetail(m))
		}
		out.Collections = append(out.Collections, ct)
	}
	return out
}

func toCollection(c *models.Collection) collectionResponse {
	return collectionResponse{ID: c.ID, MapID: c.MapID, Name: c.Name, Position: c.Position, CreatedAt: c.CreatedAt}
}

func toCollections(cs []*models.Collection) []collectionResponse {
	out := make([]collectionResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, toCollection(c))
	}
	return out
}

func toMarker(m *models.Marker) markerResponse {
	return markerResponse{
		ID:           m.ID,
		CollectionID: m.CollectionID,
		Title:        m.Title,
		Lat:          m.Lat,
		Lon:          m.Lon,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toMarkers(ms []*models.Marker) []markerResponse {
	out := make([]markerResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMarker(m))
	}
	return out
}

func toMarkerDetail(d *models.MarkerDetail) markerDetailResponse {
	out := markerDetailResponse{markerResponse: toMarker(d.Marker), Media: toMediaList(d.Media)}
	if d.Article != nil {
		a := toArticleDetail(d.Article)
		out.Article = &a
	}
	return out
}

func toArticle(a *models.Article) articleResponse {
	return articleResponse{ID: a.ID, MarkerID: a.MarkerID, Body: a.Body, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt}
}

func toArticleDetail(d *models.ArticleDetail) articleResponse {
	out := toArticle(d.Article)
	out.Media = toMediaList(d.Media)
	return out
}

func toMedia(a *models.MediaAsset) mediaResponse {
	return mediaResponse{
		ID:          a.ID,
		OwnerKind:   a.OwnerKind,
		OwnerID:     a.OwnerID,
		ContentType: a.ContentType,
		Size:        a.Size,
		Status:      a.Status,
		CreatedAt:   a.CreatedAt,
	}
}

func toMediaList(as []*models.MediaAsset) []mediaResponse {
	out := make([]mediaResponse, 0, len(as))
	for _, a := range as {
		out = append(out, toMedia(a))
	}
	return out
}

func toFolder(f *models.Folder) folderResponse {
	return folderResponse{ID: f.ID, ParentID: f.ParentID, Name: f.Name, CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt}
}

func toFolders(fs []*models.Folder) []folderResponse {
	out := make([]folderResponse, 0, len(fs))
	for _, f := range fs {
		out = append(out, toFolder(f))
	}
	return out
}

func toFolderTrees(ts []*models.FolderTree) []folderTreeResponse {
	out := make([]folderTreeResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, folderTreeResponse{folderResponse: toFolder(t.Folder), Children: toFolderTrees(t.Children), MapIDs: t.MapIDs})
	}
	return out
}

func toFolderContent(c *models.FolderContent) folderContentResponse {
	out := folderContentResponse{Folders: toFolders(c.Folders), Maps: toMaps(c.Maps)}
	if c.Folder != nil {
		f := toFolder(c.Folder)
		out.Folder = &f
	}
	return out
}

func toGrant(g *models.AccessGrant) grantResponse {
	return grantResponse{MapID: g.MapID, UserID: g.UserID, UserName: g.UserName, Permission: g.Permission, CreatedAt: g.CreatedAt}
}

func toGrants(gs []*models.AccessGrant) []grantResponse {
	out := make([]grantResponse, 0, len(gs))
	for _, g := range gs {
		out = append(out, toGrant(g))
	}
	return out
}

func toPresigned(p *storage.PresignedRequest) presignedResponse {
	out := presignedResponse{Method: p.Method, URL: p.URL, ExpiresAt: p.ExpiresAt}
	if len(p.Header) > 0 {
		out.Headers = make(map[string]string, len(p.Header))
		for k := range p.Header {
			out.Headers[k] = p.Header.Get(k)
		}
	}
	return out
}
