package main

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dyluth/mural/internal/api"
	"github.com/dyluth/mural/internal/auth"
	"github.com/dyluth/mural/internal/config"
	"github.com/dyluth/mural/internal/metrics"
	"github.com/dyluth/mural/internal/protocol"
	"github.com/dyluth/mural/internal/relay"
	"github.com/dyluth/mural/internal/social"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// daemon wires the ledger, protocol engine, HTTP API and optional event relay.
type daemon struct {
	cfg       *config.MuralConfig
	log       *logrus.Logger
	ledger    *ledger.Client
	server    *api.Server
	relay     *relay.Relay
	publisher *relay.AMQPPublisher
}

// newDaemon connects to Redis (and the broker, if configured) and builds the
// components. Nothing is served until run.
func newDaemon(ctx context.Context, cfg *config.MuralConfig, logger *logrus.Logger, clock protocol.Clock) (*daemon, error) {
	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	lc, err := ledger.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger client: %w", err)
	}
	if err := lc.Ping(ctx); err != nil {
		lc.Close()
		return nil, fmt.Errorf("redis not accessible: %w", err)
	}

	m := metrics.New()

	var sc *social.Client
	if cfg.Social != nil {
		sc = social.New(social.Config{
			BaseURL:   cfg.Social.BaseURL,
			APIKey:    cfg.Social.APIKey,
			Namespace: cfg.Social.Namespace,
			Timeout:   cfg.Social.Timeout,
		}, logger).WithRecorder(m)
	}

	d := &daemon{
		cfg:    cfg,
		log:    logger,
		ledger: lc,
		server: api.New(api.Options{
			Engine:     protocol.NewEngine(lc, clock, logger),
			Verifier:   auth.NewVerifier(lc.RedisClient(), cfg.Instance, cfg.API.MaxClockSkew),
			Social:     sc,
			Metrics:    m,
			AdminToken: cfg.API.AdminToken,
			Timeout:    cfg.API.Timeout,
			Logger:     logger,
		}),
	}

	if cfg.Events != nil {
		pub, err := relay.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			lc.Close()
			return nil, fmt.Errorf("failed to connect to event broker: %w", err)
		}
		d.publisher = pub
		d.relay = relay.New(lc, pub, m, logger)
	}

	return d, nil
}

// run serves until ctx is cancelled or the API fails, then shuts down.
func (d *daemon) run(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.cfg.API.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.cfg.API.Listen, err)
	}
	return d.serve(ctx, ln)
}

func (d *daemon) serve(ctx context.Context, ln net.Listener) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if d.relay != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.relay.Run(runCtx); err != nil {
				d.log.WithError(err).WithField("event_type", "relay_failed").Error("event relay stopped")
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- d.server.Serve(ln)
	}()

	d.log.WithFields(logrus.Fields{
		"event_type": "daemon_started",
		"instance":   d.cfg.Instance,
		"relay":      d.relay != nil,
	}).Info("murald started")

	var runErr error
	select {
	case <-ctx.Done():
		d.log.WithField("event_type", "daemon_stopping").Info("shutting down gracefully")
	case runErr = <-serveErr:
		if runErr != nil {
			runErr = fmt.Errorf("api server failed: %w", runErr)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("api shutdown: %w", err)
	}

	cancel()
	wg.Wait()
	return runErr
}

// close releases the broker and Redis connections.
func (d *daemon) close() {
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			d.log.WithError(err).Warn("failed to close event broker connection")
		}
	}
	d.ledger.Close()
}
