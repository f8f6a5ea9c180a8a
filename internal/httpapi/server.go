// Package httpapi serves the booking wizard as a JSON API.
package httpapi

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"massagebook/internal/booking"
	"massagebook/internal/errlog"
	"massagebook/internal/metrics"
	"massagebook/internal/pricing"
)

// Options holds the server's collaborators. Limiter may be nil.
type Options struct {
	Sessions *booking.SessionStore
	Catalog  *pricing.Catalog
	Errors   *errlog.Handler
	Limiter  Limiter
	Logger   zerolog.Logger
	// Debug exposes the error log under /debug.
	Debug bool
}

type Server struct {
	sessions *booking.SessionStore
	catalog  *pricing.Catalog
	errors   *errlog.Handler
	limiter  Limiter
	log      zerolog.Logger
	debug    bool
}

func New(opts Options) *Server {
	return &Server{
		sessions: opts.Sessions,
		catalog:  opts.Catalog,
		errors:   opts.Errors,
		limiter:  opts.Limiter,
		log:      opts.Logger,
		debug:    opts.Debug,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.errors.Recover)
	if s.limiter != nil {
		r.Use(s.rateLimit)
	}

	r.Get("/api/services", s.handleServices)

	r.Route("/api/wizards", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.withWizard(s.handleGet))
			r.Delete("/", s.handleDelete)
			r.Get("/calendar", s.withWizard(s.handleCalendar))
			r.Post("/service", s.withWizard(s.handleService))
			r.Post("/date", s.withWizard(s.handleDate))
			r.Post("/time", s.withWizard(s.handleTime))
			r.Put("/contact", s.withWizard(s.handleContact))
			r.Post("/payment-method", s.withWizard(s.handlePaymentMethod))
			r.Post("/card", s.withWizard(s.handleCard))
			r.Post("/next", s.withWizard(s.handleNext))
			r.Post("/previous", s.withWizard(s.handlePrevious))
			r.Post("/submit", s.withWizard(s.handleSubmit))
			r.Post("/cancel", s.withWizard(s.handleCancel))
		})
	})

	if s.debug {
		r.Get("/debug/errors", s.handleErrors)
		r.Get("/debug/errors.xlsx", s.handleErrorsXLSX)
	}

	return r
}

// requestLogger attaches a request-scoped logger to the context and logs
// each completed request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		l := s.log.With().Str("request_id", reqID).Logger()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(l.WithContext(r.Context())))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := l.Debug()
		if status >= http.StatusInternalServerError {
			ev = l.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		ok, err := s.limiter.Allow(r.Context(), ip)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			ok = true
		}
		if !ok {
			metrics.IncRateLimited()
			zerolog.Ctx(r.Context()).Warn().Str("ip", ip).Msg("rate limit exceeded")
			writeFailure(w, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please slow down and try again.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP reads the address RealIP left in RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
