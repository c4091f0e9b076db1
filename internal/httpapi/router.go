package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"inmoveo/internal/httpapi/handlers"
	"inmoveo/internal/httpkit"
	"inmoveo/internal/jobs"
	"inmoveo/internal/pkg/logger"
	"inmoveo/internal/pkg/middleware"
	"inmoveo/internal/ports"
)

var defaultOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
}

type Deps struct {
	Jobs    *jobs.Service
	Store   ports.ArtifactStore
	Catalog handlers.JobIndex
	Checks  map[string]handlers.Check
	Log     *logger.Logger

	CORSAllowedOrigins []string
	MaxUploadBytes     int64
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logging(log))

	origins := d.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: origins,
		MaxAgeSeconds:  600,
	}))

	hd := handlers.Deps{
		Jobs:           d.Jobs,
		Store:          d.Store,
		Catalog:        d.Catalog,
		Checks:         d.Checks,
		Log:            log,
		MaxUploadBytes: d.MaxUploadBytes,
	}
	if fs, ok := d.Store.(handlers.FileStore); ok {
		hd.Files = fs
	}
	h := handlers.New(hd)
	wrap := func(fn middleware.ErrorHandlerFunc) http.HandlerFunc {
		return middleware.WrapHandler(log, fn)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpkit.WriteErr(w, http.StatusNotFound, "NOT_FOUND", "route not found", map[string]any{"path": r.URL.Path})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpkit.WriteErr(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	// ---- HEALTH ----
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httpkit.WriteJSON(w, http.StatusOK, map[string]any{"service": "inmoveo-api", "ok": true})
	})
	r.Get("/health", h.Health)
	r.Get("/healthz", h.Health)

	// ---- JOBS ----
	r.Post("/run", wrap(h.PostRun))
	r.Get("/jobs", wrap(h.ListJobs))

	// ---- ARTIFACTS ----
	r.Route("/artifacts/{slug}", func(r chi.Router) {
		r.Get("/", wrap(h.GetArtifacts))
		r.Get("/files", wrap(h.ListFiles))
		r.Get("/result_url", wrap(h.ResultURL))
	})

	// ---- CATALOG (postgres) ----
	r.Get("/catalog/jobs", wrap(h.ListCatalog))
	r.Get("/catalog/jobs/{slug}", wrap(h.GetCatalogJob))

	// ---- SIGNED DOWNLOADS (localfs) ----
	r.Get("/files/*", wrap(h.ServeFile))

	return r
}
