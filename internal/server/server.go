// Package server exposes the engine over HTTP: health and capability
// endpoints, JSON event submission and query, and the bearer-gated
// administrative surface. The websocket session layer that normally fronts
// a relay is an external collaborator; this surface is what the engine
// itself owns.
package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/perchmsg/relaycore/internal/config"
	"github.com/perchmsg/relaycore/internal/event"
	"github.com/perchmsg/relaycore/internal/filter"
	"github.com/perchmsg/relaycore/internal/ingest"
	"github.com/perchmsg/relaycore/internal/query"
	"github.com/perchmsg/relaycore/internal/retention"
	"github.com/perchmsg/relaycore/internal/store"
)

// Server wires the engine components behind an echo router.
type Server struct {
	cfg       config.Config
	store     *store.Store
	pipeline  *ingest.Pipeline
	queries   *query.Engine
	retention *retention.Service
	logger    *slog.Logger
	echo      *echo.Echo
}

// New assembles the router. The retention service is only triggered, never
// scheduled, from here — the caller owns its timer loop.
func New(cfg config.Config, st *store.Store, p *ingest.Pipeline, q *query.Engine, r *retention.Service, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		store:     st,
		pipeline:  p,
		queries:   q,
		retention: r,
		logger:    logger,
		echo:      echo.New(),
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(requestLogger(logger))

	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.POST("/events", s.handleSubmit)
	s.echo.POST("/query", s.handleQuery)

	admin := s.echo.Group("/admin", s.requireAdmin)
	admin.POST("/init", s.handleAdminInit)
	admin.POST("/prune", s.handleAdminPrune)

	return s
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http surface listening", "addr", s.cfg.ListenAddr)
	return s.echo.Start(s.cfg.ListenAddr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleRoot serves the machine-readable capability document when the
// request asks for it, and a human banner otherwise.
func (s *Server) handleRoot(c echo.Context) error {
	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), "application/nostr+json") {
		return c.JSON(http.StatusOK, s.capabilityDocument())
	}
	return c.String(http.StatusOK, "relay core: connect a client, or request application/nostr+json for capabilities\n")
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.store.DB().PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleSubmit runs the write path for one JSON event. Outcomes are always
// HTTP 200 with the enumerated result body; HTTP errors are reserved for
// malformed requests.
func (s *Server) handleSubmit(c echo.Context) error {
	var ev event.Event
	if err := c.Bind(&ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed event")
	}

	ctx := c.Request().Context()

	if s.cfg.PaymentRequired {
		entitled, err := s.store.HasActivePayment(ctx, ev.PubKey, time.Now())
		if err != nil {
			s.logger.Error("payment lookup failed", "pubkey", ev.PubKey, "err", err)
			return c.JSON(http.StatusOK, ingest.Result{Accepted: false, Reason: "error: payment lookup failed"})
		}
		if !entitled {
			return c.JSON(http.StatusOK, ingest.Result{Accepted: false, Reason: "restricted: payment required"})
		}
	}

	return c.JSON(http.StatusOK, s.pipeline.Ingest(ctx, &ev))
}

// handleQuery answers a JSON array of filters with the merged result set.
func (s *Server) handleQuery(c echo.Context) error {
	var filters []filter.Filter
	if err := c.Bind(&filters); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed filters")
	}

	events := s.queries.Query(c.Request().Context(), filters)
	if events == nil {
		events = []*event.Event{}
	}
	return c.JSON(http.StatusOK, events)
}

// handleAdminInit re-applies the schema. Safe to call repeatedly.
func (s *Server) handleAdminInit(c echo.Context) error {
	// Open-time schema application is idempotent; re-running it picks up
	// anything a newer binary added.
	if _, err := s.store.DB().ExecContext(c.Request().Context(), store.SchemaSQL()); err != nil {
		s.logger.Error("schema init failed", "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "schema init failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "initialized"})
}

// handleAdminPrune triggers one retention pass outside the schedule.
func (s *Server) handleAdminPrune(c echo.Context) error {
	if err := s.retention.Prune(c.Request().Context()); err != nil {
		s.logger.Error("manual prune failed", "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "prune failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "pruned"})
}

// requireAdmin gates a route on the shared admin secret. An unset secret
// closes the surface entirely rather than opening it.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.cfg.AdminSecret == "" {
			return echo.NewHTTPError(http.StatusForbidden, "admin surface disabled")
		}
		token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminSecret)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "bad admin token")
		}
		return next(c)
	}
}
