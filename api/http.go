// Package api exposes the chat services over HTTP.
//
//	GET  /participants            list participants
//	POST /participants            register {"name"}
//	GET  /messages?limit=N        messages visible to the User header
//	POST /messages                send {"to","text","type"} as the User header
//	POST /status                  heartbeat of the User header
package api

import (
	"chat-room/observability"
	"chat-room/services"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// UserHeader carries the caller identity, out of band from the payload.
const UserHeader = "User"

const maxBodyBytes = 1 << 20

type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

type Handler struct {
	log      *slog.Logger
	presence services.IPresenceService
	messages services.IMessageService
	metrics  *observability.ChatMetrics
	limiter  *limiterPool
}

func NewRouter(
	log *slog.Logger,
	presence services.IPresenceService,
	messages services.IMessageService,
	metrics *observability.ChatMetrics,
	options Options,
) http.Handler {
	h := &Handler{
		log:      log,
		presence: presence,
		messages: messages,
		metrics:  metrics,
		limiter:  newLimiterPool(options.RateLimitRPS, options.RateLimitBurst),
	}

	r := mux.NewRouter()
	r.Use(h.logRequests)
	h.route(r, http.MethodGet, "/participants", h.listParticipants)
	h.route(r, http.MethodPost, "/participants", h.registerParticipant)
	h.route(r, http.MethodGet, "/messages", h.listMessages)
	h.route(r, http.MethodPost, "/messages", h.sendMessage)
	h.route(r, http.MethodPost, "/status", h.heartbeat)

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	// Browser clients call the API from any origin.
	return cors.AllowAll().Handler(r)
}

// route registers a rate limited handler counted per route and status code.
func (h *Handler) route(r *mux.Router, method, path string, fn http.HandlerFunc) {
	counter := h.metrics.Requests.MustCurryWith(prometheus.Labels{"route": method + " " + path})
	r.Handle(path, promhttp.InstrumentHandlerCounter(counter, h.rateLimit(fn))).Methods(method)
}

func (h *Handler) rateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow(callerKey(r)) {
			h.metrics.RateLimited.Inc()
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next(w, r)
	}
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"user", r.Header.Get(UserHeader),
			"duration", time.Since(start).String())
	})
}

// callerKey identifies the caller for rate limiting by remote host.
// The User header is declared by the client, so it can't be trusted to separate callers.
func callerKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
