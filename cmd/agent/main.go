package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/mertsyildirim/tasiapp-last-sub003/internal/auth"
	"github.com/mertsyildirim/tasiapp-last-sub003/internal/config"
	"github.com/mertsyildirim/tasiapp-last-sub003/internal/db"
	"github.com/mertsyildirim/tasiapp-last-sub003/internal/geoloc"
	"github.com/mertsyildirim/tasiapp-last-sub003/internal/route"
	"github.com/mertsyildirim/tasiapp-last-sub003/internal/server"
	"github.com/mertsyildirim/tasiapp-last-sub003/internal/stream"
	"github.com/mertsyildirim/tasiapp-last-sub003/internal/tracking"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	_ = godotenv.Load()

	cfg := deps.loadConfig()

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.Printf("postgres connection failed, geocode cache disabled: %v", err)
	}

	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, signals, nil); err != nil {
		log.Printf("agent exited with error: %v", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

var amqpDial = amqp.Dial

// Run wires the agent together, starts the control surface and waits for
// termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	srv, cleanup, err := buildAgent(cfg, pg, rdb)
	if err != nil {
		return err
	}
	defer cleanup()

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}

// buildAgent assembles the gate, source, session, resolver and control
// surface from config. The returned cleanup closes the session and any
// broker connection.
func buildAgent(cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client) (*server.Server, func(), error) {
	waypoints, err := geoloc.ParseWaypoints(cfg.SimWaypoints)
	if err != nil {
		return nil, nil, err
	}

	sim := geoloc.NewSimProvider(waypoints)
	gate := geoloc.NewGate(sim)

	profiles := geoloc.DefaultProfiles()
	if cfg.ProfileFile != "" {
		loaded, err := geoloc.LoadProfiles(cfg.ProfileFile)
		if err != nil {
			log.Printf("profile file unreadable, using defaults: %v", err)
		} else {
			profiles = loaded
		}
	}
	source := geoloc.NewSource(sim, geoloc.SelectProfile(profiles, cfg.ProfileName))

	var tokens auth.TokenSource = auth.StaticTokenSource(cfg.ReportToken)
	if cfg.ReportTokenFile != "" {
		tokens = auth.FileTokenSource{Path: cfg.ReportTokenFile}
	}

	var reporter tracking.Reporter = tracking.NewHTTPReporter(cfg.ReportURL, tokens)

	var amqpConn *amqp.Connection
	if cfg.AMQPURL != "" {
		conn, err := amqpDial(cfg.AMQPURL)
		if err != nil {
			log.Printf("amqp connection failed, mirror disabled: %v", err)
		} else if ch, err := conn.Channel(); err != nil {
			log.Printf("amqp channel failed, mirror disabled: %v", err)
			_ = conn.Close()
		} else {
			amqpConn = conn
			reporter = tracking.MirrorReporter{
				Primary: reporter,
				Mirror:  tracking.NewAMQPReporter(ch, ""),
			}
		}
	}

	hub := stream.NewHub(rdb)

	session := tracking.NewSession(gate, source, reporter, tracking.SessionConfig{
		Platform:  cfg.Platform,
		Broadcast: hub.BroadcastFix,
	})

	var provider route.Provider = unconfiguredRoutes{}
	if cfg.ORSAPIKey != "" {
		ors, err := route.NewORSClient(cfg.ORSBaseURL, cfg.ORSAPIKey)
		if err != nil {
			return nil, nil, err
		}
		provider = ors
	}

	var cache *route.GeocodeCache
	if pg != nil {
		cache = route.NewGeocodeCache(pg)
	}
	resolver := route.NewResolver(provider, cache)

	srv := server.NewServer(cfg, gate, session, resolver, rdb, hub)

	cleanup := func() {
		session.Close()
		if amqpConn != nil {
			_ = amqpConn.Close()
		}
	}
	return srv, cleanup, nil
}

// unconfiguredRoutes stands in when no routing API key is configured; every
// call reports the provider as unavailable.
type unconfiguredRoutes struct{}

func (unconfiguredRoutes) Ready(context.Context) error {
	return route.ErrProviderLoad
}

func (unconfiguredRoutes) Geocode(context.Context, string) (route.LatLng, error) {
	return route.LatLng{}, route.ErrProviderLoad
}

func (unconfiguredRoutes) Route(context.Context, route.LatLng, route.LatLng) (route.Directions, error) {
	return route.Directions{}, route.ErrProviderLoad
}
