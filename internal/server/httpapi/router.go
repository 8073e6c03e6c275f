package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophmaps/internal/logging"
	"github.com/dmitrijs2005/gophmaps/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ObjectsPath is where Config.Objects is mounted.
const ObjectsPath = "/_objects"

type Config struct {
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// Objects serves presigned object-store URLs, for the in-memory store.
	Objects http.Handler
}

// Services are the domain operations behind the API.
type Services struct {
	Users       *services.UserService
	Maps        *services.MapService
	Grants      *services.GrantService
	Collections *services.CollectionService
	Markers     *services.MarkerService
	Articles    *services.ArticleService
	Media       *services.MediaService
	Folders     *services.FolderService
}

type handler struct {
	Services
	log logging.Logger
}

// NewRouter wires every endpoint of the API.
func NewRouter(cfg Config, svc Services, l logging.Logger) http.Handler {
	log := l.With("module", "httpapi")
	h := &handler{Services: svc, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())
	if cfg.Objects != nil {
		r.Mount(ObjectsPath, http.StripPrefix(ObjectsPath, cfg.Objects))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.register)
			r.Post("/login", h.login)
			r.Post("/refresh", h.refresh)
		})

		// Anonymous reads of public maps. Handlers see an empty UserID.
		r.Route("/public", func(r chi.Router) {
			r.Get("/maps/{mapID}", h.getMap)
			r.Get("/markers/{id}", h.getMarker)
			r.Get("/media/{id}", h.getMedia)
		})

		r.Group(func(r chi.Router) {
			r.Use(bearerAuth(svc.Users, log))

			r.Get("/users/{username}", h.lookupUser)

			r.Route("/maps", func(r chi.Router) {
				r.Get("/", h.listMaps)
				r.Post("/", h.createMap)
				r.Get("/shared", h.listSharedMaps)
				r.Route("/{mapID}", func(r chi.Router) {
					r.Get("/", h.getMap)
					r.Patch("/", h.updateMap)
					r.Delete("/", h.deleteMap)
					r.Put("/visibility", h.setVisibility)
					r.Put("/folder", h.placeMap)
					r.Post("/image", h.beginMapImageUpload)

					r.Get("/grants", h.listGrants)
					r.Put("/grants/{username}", h.grant)
					r.Delete("/grants/{username}", h.revoke)

					r.Get("/collections", h.listCollections)
					r.Post("/collections", h.createCollection)
				})
			})

			r.Route("/folders", func(r chi.Router) {
				r.Get("/", h.listFolders)
				r.Post("/", h.createFolder)
				r.Get("/tree", h.folderTree)
				r.Get("/content", h.folderContent)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.getFolder)
					r.Patch("/", h.renameFolder)
					r.Delete("/", h.deleteFolder)
					r.Put("/parent", h.moveFolder)
					r.Get("/content", h.folderContent)
				})
			})

			r.Route("/collections/{id}", func(r chi.Router) {
				r.Patch("/", h.renameCollection)
				r.Delete("/", h.deleteCollection)
				r.Put("/position", h.moveCollection)
				r.Get("/markers", h.listMarkers)
				r.Post("/markers", h.createMarker)
			})

			r.Route("/markers/{id}", func(r chi.Router) {
				r.Get("/", h.getMarker)
				r.Patch("/", h.updateMarker)
				r.Delete("/", h.deleteMarker)
				r.Put("/collection", h.moveMarker)

				r.Get("/article", h.getArticle)
				r.Put("/article", h.putArticle)
				r.Delete("/article", h.deleteArticle)

				r.Post("/media", h.beginMarkerUpload)
			})

			r.Post("/articles/{id}/media", h.beginArticleUpload)

			r.Route("/media/{id}", func(r chi.Router) {
				r.Get("/", h.getMedia)
				r.Delete("/", h.deleteMedia)
				r.Post("/complete", h.completeMedia)
			})
		})
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
