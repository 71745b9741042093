package server

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chrisvdg/tourneyfilter/cache"
	"github.com/chrisvdg/tourneyfilter/remote"
	"github.com/chrisvdg/tourneyfilter/scheduler"
	"github.com/chrisvdg/tourneyfilter/tournament"
	"github.com/chrisvdg/tourneyfilter/tournament/sqlite"
)

// New creates a new server instance backed by the configured SQLite database
func New(c *Config) (*Server, error) {
	if c.DatabasePath == "" {
		return nil, errors.New("No database path provided")
	}
	if c.TLSOnly && (c.TLS == nil || c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return nil, errors.New("TLS only requires a certificate and key file")
	}

	store, err := sqlite.Open(c.DatabasePath, c.PageSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open tournament database")
	}
	if c.SeedFile != "" {
		err = seed(store, c.SeedFile)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	s := NewWithProvider(c, store)
	s.close = store.Close
	return s, nil
}

// NewWithProvider creates a server instance answering lookups from p
func NewWithProvider(c *Config, p scheduler.Provider) *Server {
	return &Server{
		c:        c,
		provider: p,
		cache:    cache.New(c.CacheSize),
		close:    func() error { return nil },
	}
}

// Server represents a server instance
type Server struct {
	c        *Config
	provider scheduler.Provider
	cache    *cache.Cache
	close    func() error
}

// Handler returns the routes of the listing API
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	h := newHandlers(s.provider, s.cache)

	r.Use(requestID)
	r.HandleFunc(remote.ListPath, h.ListHandler).Methods("GET")
	r.HandleFunc("/cache", h.CacheHandler).Methods("GET")
	r.HandleFunc("/cache", h.InvalidateHandler).Methods("DELETE")
	r.HandleFunc("/healthz", h.HealthHandler).Methods("GET")

	return r
}

// ListenAndServe listens for new requests and serves them
func (s *Server) ListenAndServe() {
	handler := s.Handler()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tlsEnabled := s.c.TLS != nil && s.c.TLS.CertFile != "" && s.c.TLS.KeyFile != ""
	if !s.c.TLSOnly {
		go listenAndServe(ctx, cancel, s.c.ListenAddr, handler)
	}

	if tlsEnabled {
		go listenAndServeTLS(ctx, cancel, s.c.TLSListenAddr, s.c.TLS, handler)
	}

	<-ctx.Done()
}

// Close releases the tournament database
func (s *Server) Close() error {
	return s.close()
}

// listenAndServe serves a plain http webserver
func listenAndServe(ctx context.Context, cancel func(), addr string, handler http.Handler) {
	defer cancel()
	addrStr := getAddrString(addr)
	log.Infof("http server listening on: http://%s", addrStr)
	log.Error(http.ListenAndServe(addr, handler))
}

// listenAndServeTLS serves a tls webserver
func listenAndServeTLS(ctx context.Context, cancel func(), addr string, tls *TLSConfig, handler http.Handler) {
	defer cancel()
	addrStr := getAddrString(addr)
	log.Infof("https server listening on: https://%s", addrStr)
	log.Error(http.ListenAndServeTLS(addr, tls.CertFile, tls.KeyFile, handler))
}

func seed(store *sqlite.Store, file string) error {
	data, err := ioutil.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "failed to read seed file")
	}
	ts, err := tournament.Decode(data)
	if err != nil {
		return errors.Wrapf(err, "invalid seed file %s", file)
	}
	err = store.PutAll(context.Background(), ts)
	if err != nil {
		return errors.Wrap(err, "failed to seed tournaments")
	}
	log.Infof("Seeded %d tournaments from %s", len(ts), file)
	return nil
}

func getAddrString(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = fmt.Sprintf("0.0.0.0%s", addr)
	}
	return addr
}
