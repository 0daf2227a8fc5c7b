package api

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/Togather-Foundation/rsvp/internal/api/handlers"
	"github.com/Togather-Foundation/rsvp/internal/api/middleware"
	"github.com/Togather-Foundation/rsvp/internal/api/problem"
	"github.com/Togather-Foundation/rsvp/internal/config"
	"github.com/Togather-Foundation/rsvp/internal/domain/events"
	"github.com/Togather-Foundation/rsvp/internal/domain/users"
	"github.com/Togather-Foundation/rsvp/internal/metrics"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the HTTP boundary delegates to.
type Deps struct {
	Config config.Config
	Logger zerolog.Logger
	Events *events.Service
	Users  *users.Service
	Tokens middleware.TokenValidator
	// Uploads serves stored images below /uploads/.
	Uploads http.Handler
	Health  *handlers.HealthChecker
	Build   BuildInfo
}

var errRouteNotFound = errors.New("no route matches the request")

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	env := cfg.Environment

	eventsHandler := handlers.NewEventsHandler(d.Events, env)
	authHandler := handlers.NewAuthHandler(d.Users, env)
	userEvents := handlers.NewUserEventsHandler(d.Events, env)

	limit := middleware.RateLimit(cfg.RateLimit)
	requireAuth := middleware.RequireAuth(d.Tokens, env)
	jsonBody := middleware.PublicRequestSize()
	uploadBody := middleware.UploadRequestSize(cfg.Uploads.MaxBytes)

	public := func(h http.HandlerFunc) http.Handler {
		return middleware.WithRateLimitTierHandler(middleware.TierPublic)(limit(h))
	}
	login := func(h http.HandlerFunc) http.Handler {
		return middleware.WithRateLimitTierHandler(middleware.TierLogin)(limit(jsonBody(h)))
	}
	authed := func(h http.Handler) http.Handler {
		return requireAuth(middleware.WithRateLimitTierHandler(middleware.TierAuthenticated)(limit(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", handlers.Healthz())
	if d.Health != nil {
		mux.Handle("GET /readyz", d.Health.Readyz())
	}
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /version", VersionHandler(d.Build))
	if d.Uploads != nil {
		mux.Handle("GET /uploads/", d.Uploads)
	}

	mux.Handle("POST /api/v1/auth/register", login(authHandler.Register))
	mux.Handle("POST /api/v1/auth/login", login(authHandler.Login))
	mux.Handle("GET /api/v1/auth/me", authed(http.HandlerFunc(authHandler.Me)))

	update := authed(uploadBody(http.HandlerFunc(eventsHandler.Update)))
	reserve := authed(http.HandlerFunc(eventsHandler.Reserve))

	mux.Handle("/api/v1/events", methodMux(map[string]http.Handler{
		http.MethodGet:  public(eventsHandler.List),
		http.MethodPost: authed(uploadBody(http.HandlerFunc(eventsHandler.Create))),
	}))
	mux.Handle("/api/v1/events/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    public(eventsHandler.Get),
		http.MethodPut:    update,
		http.MethodPatch:  update,
		http.MethodDelete: authed(http.HandlerFunc(eventsHandler.Delete)),
	}))
	mux.Handle("/api/v1/events/{id}/rsvp", methodMux(map[string]http.Handler{
		http.MethodPut:  reserve,
		http.MethodPost: reserve,
	}))

	mux.Handle("GET /api/v1/users/{id}/events/created", authed(http.HandlerFunc(userEvents.Created)))
	mux.Handle("GET /api/v1/users/{id}/events/rsvpd", authed(http.HandlerFunc(userEvents.Attending)))

	mux.Handle("GET /api/v1/config/maps-key", public(handlers.MapsKey(cfg.Maps.APIKey, env).ServeHTTP))

	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", errRouteNotFound, env,
			problem.WithDetail(errRouteNotFound.Error()))
	}))

	var handler http.Handler = mux
	handler = middleware.CORS(cfg.CORS, d.Logger)(handler)
	handler = middleware.SecurityHeaders(cfg.Environment == "production")(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(d.Logger)(handler)
	handler = middleware.CorrelationID(d.Logger)(handler)
	handler = middleware.Tracing(handler)
	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
