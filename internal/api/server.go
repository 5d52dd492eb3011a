// Package api serves the mural protocol over HTTP.
//
// Reads are public. Every mutating operation is a POST to /v1/ops/:op carrying
// an EdDSA-signed bearer token bound to the operation name and the exact
// request body; the signer must be the operation's acting identity.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dyluth/mural/internal/auth"
	"github.com/dyluth/mural/internal/metrics"
	"github.com/dyluth/mural/internal/protocol"
	"github.com/dyluth/mural/internal/social"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// Options configures a Server. Social and Metrics are optional.
type Options struct {
	Engine     *protocol.Engine
	Verifier   *auth.Verifier
	Social     *social.Client
	Metrics    *metrics.Metrics
	AdminToken string        // enables POST /v1/admin/credit when set
	Timeout    time.Duration // per-request deadline, default 10s
	Logger     *logrus.Logger
}

// Server is the HTTP front end of the daemon.
type Server struct {
	engine     *protocol.Engine
	ledger     *ledger.Client
	verifier   *auth.Verifier
	social     *social.Client
	metrics    *metrics.Metrics
	adminToken string
	timeout    time.Duration
	log        *logrus.Entry
	echo       *echo.Echo
	server     *http.Server
}

// New builds a server and registers its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	s := &Server{
		engine:     opts.Engine,
		ledger:     opts.Engine.Ledger(),
		verifier:   opts.Verifier,
		social:     opts.Social,
		metrics:    opts.Metrics,
		adminToken: opts.AdminToken,
		timeout:    opts.Timeout,
		log:        opts.Logger.WithField("component", "api"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64K"))
	e.Use(s.observe)
	e.Use(s.deadline)
	s.registerRoutes(e)
	s.echo = e
	s.server = &http.Server{
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.timeout + 5*time.Second,
	}

	return s
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/healthz", s.health)
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := e.Group("/v1")
	v1.GET("/seasons/:addr", s.getSeason)
	v1.GET("/seasons/:addr/phase", s.getPhase)
	v1.GET("/seasons/:addr/regions", s.listRegions)
	v1.GET("/regions/:addr", s.getRegion)
	v1.GET("/regions/:addr/bids", s.listBids)
	v1.GET("/contributions/:addr", s.getContribution)
	v1.GET("/bids/:addr", s.getBid)
	v1.GET("/balances/:addr", s.getBalance)
	v1.GET("/resolve/:prefix", s.resolve)

	v1.POST("/ops/:op", s.submitOperation)
	v1.POST("/admin/credit", s.credit)

	sg := v1.Group("/social")
	sg.GET("/comments", s.listComments)
	sg.POST("/comments", s.postComment)
	sg.GET("/likes/:content_id", s.getLikes)
	sg.POST("/likes/:content_id", s.like)
	sg.DELETE("/likes/:content_id", s.unlike)
	sg.POST("/profiles", s.findOrCreateProfile)
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr and serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown is called. It returns nil after a
// graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.WithFields(logrus.Fields{
		"event_type": "api_started",
		"listen":     ln.Addr().String(),
	}).Info("serving HTTP API")

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. Serve calls made after Shutdown
// return immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
