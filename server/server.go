// Package server exposes the disassembler as a Connect service. Messages
// are CBOR-encoded Go structs; the same handlers answer the Connect, gRPC
// and gRPC-Web protocols, with HTTP/2 served in cleartext.
package server

import (
	"context"
	"net"
	"net/http"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/opdump/store"
)

var log = commonlog.GetLogger("opdump.server")

// Server hosts the disassembly service.
type Server struct {
	svc  *DumpService
	mux  *http.ServeMux
	http *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	store     *store.Store
	verbosity int
	workers   int
}

// WithStore lets clients dump and list stored units by ID or name.
func WithStore(s *store.Store) ServerOption {
	return func(c *serverConfig) { c.store = s }
}

// WithVerbosity sets the verbosity used when a request doesn't carry one.
func WithVerbosity(v int) ServerOption {
	return func(c *serverConfig) { c.verbosity = v }
}

// WithWorkers sets how many units one request renders concurrently.
func WithWorkers(n int) ServerOption {
	return func(c *serverConfig) { c.workers = n }
}

// New creates a Server.
func New(opts ...ServerOption) *Server {
	cfg := &serverConfig{verbosity: 1, workers: 1}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Server{
		svc: NewDumpService(cfg.store, cfg.verbosity, cfg.workers),
		mux: http.NewServeMux(),
	}

	codec := connect.WithCodec(cborCodec{})
	s.mux.Handle(DumpProcedure, connect.NewUnaryHandler(DumpProcedure, s.svc.Dump, codec))
	s.mux.Handle(ListProcedure, connect.NewUnaryHandler(ListProcedure, s.svc.List, codec))

	// gRPC clients need HTTP/2; serve it without TLS.
	p := new(http.Protocols)
	p.SetHTTP1(true)
	p.SetUnencryptedHTTP2(true)
	s.http = &http.Server{Handler: s.mux, Protocols: p}
	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *Server) ListenAndServe(addr string) error {
	log.Noticef("disassembly service listening on %s", addr)
	log.Infof("  Connect: http://%s%s", addr, DumpProcedure)
	log.Infof("  gRPC:    grpc://%s", addr)
	s.http.Addr = addr
	return s.http.ListenAndServe()
}

// Serve accepts connections on l until the server is shut down.
func (s *Server) Serve(l net.Listener) error {
	log.Noticef("disassembly service listening on %s", l.Addr())
	return s.http.Serve(l)
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
