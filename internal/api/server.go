package api

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/sawdustofmind/matchcenter/internal/hub"
	"github.com/sawdustofmind/matchcenter/internal/log"
	"github.com/sawdustofmind/matchcenter/internal/matches"
	"github.com/sawdustofmind/matchcenter/internal/simulator"
)

const defaultKeepAlive = 15 * time.Second

// Simulator drives live matches.
type Simulator interface {
	Start(ctx context.Context, matchID string) (simulator.StartResult, error)
	Stop(ctx context.Context, matchID string) error
	StartMultiple(ctx context.Context, limit int) ([]string, error)
	IsActive(matchID string) bool
	Active() []string
}

// Presence counts the push-channel subscribers of a match.
type Presence interface {
	Count(ctx context.Context, matchID string) (int64, error)
}

type Options struct {
	Matches        *matches.Service
	Simulator      Simulator
	Streams        *hub.Streams
	Presence       Presence
	WebSocket      http.Handler
	AllowedOrigins []string
	KeepAlive      time.Duration
}

type Server struct {
	matches        *matches.Service
	sim            Simulator
	streams        *hub.Streams
	presence       Presence
	ws             http.Handler
	allowedOrigins []string
	keepAlive      time.Duration
	validate       *validator.Validate
}

func NewServer(opts Options) *Server {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	keepAlive := opts.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}

	return &Server{
		matches:        opts.Matches,
		sim:            opts.Simulator,
		streams:        opts.Streams,
		presence:       opts.Presence,
		ws:             opts.WebSocket,
		allowedOrigins: opts.AllowedOrigins,
		keepAlive:      keepAlive,
		validate:       v,
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	log.Debug("Health check")
}

// Handler builds the routed, CORS-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if s.ws != nil {
		r.Handle("/ws/matches", s.ws)
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/matches", s.listMatches).Methods(http.MethodGet)
	api.HandleFunc("/matches", s.createMatch).Methods(http.MethodPost)
	api.HandleFunc("/matches/{id}", s.getMatch).Methods(http.MethodGet)
	api.HandleFunc("/matches/{id}", s.updateMatch).Methods(http.MethodPut)
	api.HandleFunc("/matches/{id}", s.deleteMatch).Methods(http.MethodDelete)
	api.HandleFunc("/matches/{id}/events/stream", s.streamEvents).Methods(http.MethodGet)
	api.HandleFunc("/matches/{id}/events", s.createEvent).Methods(http.MethodPost)
	api.HandleFunc("/matches/{id}/events/{eventId}", s.updateEvent).Methods(http.MethodPut)
	api.HandleFunc("/matches/{id}/events/{eventId}", s.deleteEvent).Methods(http.MethodDelete)
	api.HandleFunc("/matches/{id}/statistics", s.upsertStatistics).Methods(http.MethodPost)
	api.HandleFunc("/matches/{id}/statistics", s.updateStatistics).Methods(http.MethodPut)
	api.HandleFunc("/matches/{id}/presence", s.presenceHandler).Methods(http.MethodGet)

	api.HandleFunc("/simulator/matches", s.activeSimulations).Methods(http.MethodGet)
	api.HandleFunc("/simulator/matches/start-multiple", s.startMultiple).Methods(http.MethodPost)
	api.HandleFunc("/simulator/matches/{id}/start", s.startSimulation).Methods(http.MethodPost)
	api.HandleFunc("/simulator/matches/{id}/stop", s.stopSimulation).Methods(http.MethodDelete)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Last-Event-ID"},
		AllowCredentials: true,
	})
	log.Debug("Routes registered", zap.Strings("allowed_origins", s.allowedOrigins))
	return c.Handler(r)
}
