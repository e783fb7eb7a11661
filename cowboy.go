package cowboy

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/zzet/cowboy/config"
	"github.com/zzet/cowboy/http/status"
	httpserver "github.com/zzet/cowboy/internal/server/http"
	"github.com/zzet/cowboy/internal/tcp"
	"github.com/zzet/cowboy/metrics"
	"github.com/zzet/cowboy/pipeline"
)

type listenerFactory func(network, addr string) (net.Listener, error)

type listenerSpec struct {
	addr      string
	factory   listenerFactory
	encrypted bool
}

// App collects listeners, the stage chain and the knobs, then serves until
// the context is done or Stop is called.
type App struct {
	addr       string
	cfg        *config.Config
	stages     []pipeline.Stage
	onRequest  httpserver.OnRequestCallback
	onResponse httpserver.OnResponseCallback
	onSuspend  func(*pipeline.Continuation)
	log        *slog.Logger
	metrics    *metrics.Metrics
	extra      []listenerSpec
	servers    []*tcp.Server
}

func New(addr string) *App {
	return &App{
		addr:    addr,
		cfg:     config.Default(),
		log:     slog.Default(),
		metrics: metrics.New(),
	}
}

// Tune replaces the default config.
func (a *App) Tune(cfg *config.Config) *App {
	a.cfg = cfg
	return a
}

func (a *App) Log(log *slog.Logger) *App {
	a.log = log
	return a
}

// Use appends stages to the pipeline in execution order.
func (a *App) Use(stages ...pipeline.Stage) *App {
	a.stages = append(a.stages, stages...)
	return a
}

// OnRequest installs the pre-dispatch callback. A non-nil response from it
// skips the pipeline for that request.
func (a *App) OnRequest(cb httpserver.OnRequestCallback) *App {
	a.onRequest = cb
	return a
}

// OnResponse installs the callback that may override any response right
// before serialization.
func (a *App) OnResponse(cb httpserver.OnResponseCallback) *App {
	a.onResponse = cb
	return a
}

// OnSuspend installs the hook that receives continuations of suspended
// pipeline runs.
func (a *App) OnSuspend(hook func(*pipeline.Continuation)) *App {
	a.onSuspend = hook
	return a
}

// Listen adds a plaintext listener besides the primary one.
func (a *App) Listen(addr string) *App {
	a.extra = append(a.extra, listenerSpec{addr: addr, factory: net.Listen})
	return a
}

// HTTPS adds a TLS listener backed by the certificate and key files.
func (a *App) HTTPS(addr, cert, key string) *App {
	a.extra = append(a.extra, listenerSpec{
		addr:      addr,
		factory:   tlsListener(cert, key),
		encrypted: true,
	})

	return a
}

// AutoHTTPS adds a TLS listener that obtains certificates via ACME, or
// generates a self-signed one when serving localhost.
func (a *App) AutoHTTPS(addr string, domains ...string) *App {
	if isLocalhost(addr) {
		cert, key, err := selfSignedCert()
		if err != nil {
			a.log.Warn("cannot generate a self-signed certificate, TLS listener disabled",
				slog.String("err", err.Error()),
			)

			return a
		}

		return a.HTTPS(addr, cert, key)
	}

	a.extra = append(a.extra, listenerSpec{
		addr:      addr,
		factory:   autoTLSListener(domains...),
		encrypted: true,
	})

	return a
}

// Metrics exposes the app's registry, e.g. to mount its handler somewhere.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Serve binds all the listeners and blocks until the context is done, Stop
// is called or a listener fails.
func (a *App) Serve(ctx context.Context) error {
	executor := pipeline.NewExecutor(a.stages...).OnSuspend(a.onSuspend)

	srv := httpserver.NewServer(a.cfg, executor, a.log, a.metrics)
	srv.OnRequest(a.onRequest)
	srv.OnResponse(a.onResponse)

	specs := append([]listenerSpec{{addr: a.addr, factory: net.Listen}}, a.extra...)

	for _, spec := range specs {
		sock, err := spec.factory("tcp", spec.addr)
		if err != nil {
			a.stopServers()
			return err
		}

		encrypted := spec.encrypted
		a.servers = append(a.servers, tcp.NewServer(sock, func(conn net.Conn) {
			client := tcp.NewClient(conn, encrypted, make([]byte, a.cfg.NET.ReadBufferSize))
			srv.Serve(client)
		}))

		a.log.Info("listening", slog.String("addr", spec.addr), slog.Bool("tls", encrypted))
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, server := range a.servers {
		server := server
		g.Go(server.Start)
	}

	g.Go(func() error {
		<-ctx.Done()
		a.stopServers()

		return ctx.Err()
	})

	err := g.Wait()
	if errors.Is(err, status.ErrShutdown) || errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// Stop shuts all the listeners and live connections down. Serve returns nil
// once everything is torn down.
func (a *App) Stop() {
	a.stopServers()
}

// GracefulStop stops accepting new connections while the live ones finish
// their keep-alive sessions.
func (a *App) GracefulStop() {
	for _, server := range a.servers {
		_ = server.GracefulShutdown()
	}
}

func (a *App) stopServers() {
	for _, server := range a.servers {
		_ = server.Stop()
	}
}

func isLocalhost(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	switch host {
	case "", "localhost", "127.0.0.1", "::1", "0.0.0.0":
		return true
	}

	return false
}
