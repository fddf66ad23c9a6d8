// Package internal runs the auxiliary HTTP servers of a process.
package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.eggybyte.com/orchid/core/log"
)

// Runtime manages the lifecycle of a set of named HTTP servers.
type Runtime struct {
	logger          log.Logger
	servers         []*namedServer
	shutdownTimeout time.Duration
	errs            chan error
}

type namedServer struct {
	name string
	srv  *http.Server
	ln   net.Listener
}

// NewRuntime creates a new runtime instance.
func NewRuntime(logger log.Logger, shutdownTimeout time.Duration) *Runtime {
	return &Runtime{
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}
}

// AddServer registers a server to run under name. Servers without an
// address are skipped.
func (r *Runtime) AddServer(name string, srv *http.Server) {
	if srv == nil || srv.Addr == "" {
		return
	}
	r.servers = append(r.servers, &namedServer{name: name, srv: srv})
}

// Start binds every server before serving any of them, so an address in use
// is reported here rather than from a goroutine. On a bind failure the
// listeners opened so far are closed.
func (r *Runtime) Start(context.Context) error {
	r.errs = make(chan error, len(r.servers))
	for i, s := range r.servers {
		ln, err := net.Listen("tcp", s.srv.Addr)
		if err != nil {
			for _, opened := range r.servers[:i] {
				opened.ln.Close()
			}
			return fmt.Errorf("%s server listen on %s: %w", s.name, s.srv.Addr, err)
		}
		s.ln = ln
	}

	for _, s := range r.servers {
		r.logger.Info("starting server", log.Str("server", s.name), log.Str("addr", s.ln.Addr().String()))
		go func() {
			if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.logger.Error(err, "server failed", log.Str("server", s.name))
				r.errs <- fmt.Errorf("%s server: %w", s.name, err)
			}
		}()
	}
	return nil
}

// Errors delivers serve failures that happen after Start.
func (r *Runtime) Errors() <-chan error {
	return r.errs
}

// Addrs returns the bound address of each started server.
func (r *Runtime) Addrs() map[string]string {
	addrs := make(map[string]string, len(r.servers))
	for _, s := range r.servers {
		if s.ln != nil {
			addrs[s.name] = s.ln.Addr().String()
		}
	}
	return addrs
}

// Stop shuts the servers down concurrently within the shutdown timeout.
func (r *Runtime) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, r.shutdownTimeout)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, s := range r.servers {
		if s.ln == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.srv.Shutdown(shutdownCtx); err != nil {
				r.logger.Error(err, "server shutdown failed", log.Str("server", s.name))
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s server shutdown: %w", s.name, err))
				mu.Unlock()
				return
			}
			r.logger.Info("server stopped", log.Str("server", s.name))
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
