package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

// Options configure the API router.
type Options struct {
	App            *handlers.App
	Logger         infra.Logger
	AllowedOrigins []string
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup

	// Redis client for the distributed rate limiter; nil disables limiting.
	Redis           *redis.Client
	RateLimitPerMin int
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
		middleware.Identity,
	)

	app := opts.App
	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/images", func(r chi.Router) {
		if opts.Redis != nil && opts.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(opts.Redis, "imagegen:ratelimit:images", opts.RateLimitPerMin, time.Minute))
		}
		r.Post("/generations", app.ImagesGenerate)
		r.Get("/jobs/{job_id}", app.JobStatus)
		r.Get("/jobs/{job_id}/artifact", app.JobArtifact)
	})

	return r
}
