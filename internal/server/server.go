package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/mertsyildirim/tasiapp-last-sub003/internal/auth"
	"github.com/mertsyildirim/tasiapp-last-sub003/internal/config"
	"github.com/mertsyildirim/tasiapp-last-sub003/internal/geoloc"
	"github.com/mertsyildirim/tasiapp-last-sub003/internal/route"
	"github.com/mertsyildirim/tasiapp-last-sub003/internal/stream"
	"github.com/mertsyildirim/tasiapp-last-sub003/internal/tracking"
)

// Server is the agent's local control surface: permission state, the
// tracking session, route resolution and the live fix feed, all on one
// fiber app.
type Server struct {
	App      *fiber.App
	Cfg      config.Config
	Gate     *geoloc.Gate
	Session  *tracking.Session
	Resolver *route.Resolver
	Stream   *stream.Hub
}

func NewServer(cfg config.Config, gate *geoloc.Gate, session *tracking.Session, resolver *route.Resolver, redisClient *redis.Client, hub *stream.Hub) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	if hub == nil {
		hub = stream.NewHub(redisClient)
	}

	s := &Server{
		App:      app,
		Cfg:      cfg,
		Gate:     gate,
		Session:  session,
		Resolver: resolver,
		Stream:   hub,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	keyMiddleware := auth.KeyMiddleware(s.Cfg.ControlKey)

	geo := s.App.Group("/geo", keyMiddleware)
	geo.Get("/permission", s.handlePermissionCheck)
	geo.Post("/permission", s.handlePermissionRequest)

	trk := s.App.Group("/tracking", keyMiddleware)
	trk.Post("/start", s.handleTrackingStart)
	trk.Post("/stop", s.handleTrackingStop)
	trk.Get("/status", s.handleTrackingStatus)

	routes := s.App.Group("/routes", keyMiddleware)
	routes.Post("/resolve", s.handleRouteResolve)

	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

func (s *Server) handlePermissionCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"state": s.Gate.Check(c.Context())})
}

func (s *Server) handlePermissionRequest(c *fiber.Ctx) error {
	state := s.Gate.Request(c.Context())
	resp := fiber.Map{"state": state}
	if msg := permissionMessage(state); msg != "" {
		resp["message"] = msg
	}
	return c.JSON(resp)
}

type startRequest struct {
	ReportIntervalMS int    `json:"report_interval_ms"`
	TaskID           string `json:"task_id"`
}

func (s *Server) handleTrackingStart(c *fiber.Ctx) error {
	var req startRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Request body could not be parsed.")
	}

	interval := time.Duration(req.ReportIntervalMS) * time.Millisecond
	if err := s.Session.Start(interval, req.TaskID); err != nil {
		kind := tracking.Kind(err)
		switch {
		case errors.Is(err, tracking.ErrSessionActive):
			return errorJSON(c, fiber.StatusConflict, "session_active", "Tracking is already running.")
		case errors.Is(err, tracking.ErrSessionClosed):
			return errorJSON(c, fiber.StatusConflict, "session_closed", "This tracking session has been shut down.")
		case errors.Is(err, tracking.ErrNotAuthorized):
			return errorJSON(c, fiber.StatusUnauthorized, kind, kindMessage(kind))
		default:
			return errorJSON(c, fiber.StatusInternalServerError, kind, kindMessage(kind))
		}
	}

	snap := s.Session.Snapshot()
	return c.JSON(fiber.Map{"session_id": snap.SessionID, "active": snap.Active})
}

func (s *Server) handleTrackingStop(c *fiber.Ctx) error {
	s.Session.Stop()
	return c.JSON(fiber.Map{"active": false})
}

func (s *Server) handleTrackingStatus(c *fiber.Ctx) error {
	snap := s.Session.Snapshot()
	resp := fiber.Map{
		"session_id": snap.SessionID,
		"active":     snap.Active,
		"send_count": snap.SendCount,
		"distance_m": snap.DistanceM,
	}
	if snap.TaskID != "" {
		resp["task_id"] = snap.TaskID
	}
	if snap.LastFix != nil {
		resp["last_fix"] = snap.LastFix
	}
	if !snap.StartedAt.IsZero() {
		resp["started_at"] = snap.StartedAt
	}
	if snap.LastError != "" {
		resp["last_error"] = snap.LastError
		resp["last_error_message"] = kindMessage(snap.LastError)
	}
	return c.JSON(resp)
}

type resolveRequest struct {
	Pickup   route.Descriptor `json:"pickup"`
	Delivery route.Descriptor `json:"delivery"`
}

func (s *Server) handleRouteResolve(c *fiber.Ctx) error {
	var req resolveRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Request body could not be parsed.")
	}

	result, err := s.Resolver.Resolve(c.Context(), req.Pickup, req.Delivery)
	switch {
	case errors.Is(err, route.ErrProviderLoad):
		return errorJSON(c, fiber.StatusServiceUnavailable, "provider_load", kindMessage("provider_load"))
	case errors.Is(err, route.ErrGeocodeFailure):
		return errorJSON(c, fiber.StatusUnprocessableEntity, "geocode_failure", kindMessage("geocode_failure"))
	case err != nil:
		return errorJSON(c, fiber.StatusInternalServerError, "error", "Route resolution failed.")
	}

	return c.JSON(result)
}

func errorJSON(c *fiber.Ctx, status int, kind, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": kind, "message": message})
}

// kindMessage maps an error kind to the short text shown to the driver. Raw
// provider errors never appear here.
func kindMessage(kind string) string {
	switch kind {
	case "capability_unavailable":
		return "Location is not available on this device."
	case "permission_denied":
		return "Location permission was denied. Allow location access to track deliveries."
	case "position_timeout":
		return "Getting a location fix is taking too long."
	case "not_authorized":
		return "Location permission is needed before tracking can start."
	case "auth_expired":
		return "Your sign-in has expired. Sign in again to keep reporting."
	case "transient_send":
		return "The reporting service could not be reached. The next fix will retry."
	case "geocode_failure":
		return "The address could not be found. Check it and try again."
	case "provider_load":
		return "The map service is unavailable right now. Try again in a moment."
	default:
		return "Something went wrong."
	}
}

func permissionMessage(state geoloc.PermissionState) string {
	switch state {
	case geoloc.PermissionDenied:
		return kindMessage("permission_denied")
	case geoloc.PermissionUnavailable:
		return kindMessage("capability_unavailable")
	default:
		return ""
	}
}
