// Package bridge exposes one television's remote control over HTTP. The
// daemon holds a single authenticated session, established lazily on the
// first key request and re-established after a write failure, so callers
// never deal with the pairing handshake themselves.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-limiter"
	"github.com/sethvargo/go-limiter/memorystore"

	"github.com/tvkit/samremote/internal/keys"
	"github.com/tvkit/samremote/internal/remote"
)

// Bridge is the HTTP daemon. Construct with New, serve with Run, or mount
// Handler() under an existing server.
type Bridge struct {
	cfg     Config
	log     *slog.Logger
	metrics *Metrics
	store   limiter.Store
	router  *mux.Router
	srv     *http.Server

	sessionMu sync.Mutex
	session   *remote.Client
}

// New builds a bridge from a validated config. Metrics land on reg.
func New(cfg Config, log *slog.Logger, reg *prometheus.Registry) (*Bridge, error) {
	store, err := memorystore.New(&memorystore.Config{
		Tokens:   cfg.RateLimit.RequestsPerSecond,
		Interval: time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	b := &Bridge{
		cfg:     cfg,
		log:     log.With("component", "bridge"),
		metrics: NewMetrics(reg),
		store:   store,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/key/{key}", b.limit(b.handleKey)).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/keys", b.handleKeys).Methods(http.MethodGet)
	r.HandleFunc("/healthz", b.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	b.router = r

	return b, nil
}

// Handler returns the bridge's HTTP handler.
func (b *Bridge) Handler() http.Handler {
	return b.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (b *Bridge) Run(ctx context.Context) error {
	b.srv = &http.Server{
		Addr:    b.cfg.Listen,
		Handler: b.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- b.srv.ListenAndServe()
	}()
	b.log.Info("bridge listening", "addr", b.cfg.Listen, "tv", b.cfg.TV.Host)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.srv.Shutdown(shutdownCtx); err != nil {
		b.srv.Close()
	}
	b.dropSession()
	b.store.Close(context.Background())
	return nil
}

// ensureSession returns an authenticated session, establishing one if the
// bridge does not currently hold it. The handshake blocks until the user
// answers the permission prompt on the TV.
func (b *Bridge) ensureSession(ctx context.Context) (*remote.Client, error) {
	b.sessionMu.Lock()
	defer b.sessionMu.Unlock()

	if b.session != nil && b.session.State() == remote.StateAuthenticated {
		return b.session, nil
	}
	if b.session != nil {
		b.session.Close()
		b.session = nil
	}

	c := remote.New(remote.Config{
		Port:     b.cfg.TV.Port,
		KeyDelay: b.cfg.TV.KeyDelay(),
		Logger:   b.log,
	})
	if err := c.Connect(ctx, b.cfg.TV.Host); err != nil {
		b.metrics.AuthAttempts.WithLabelValues("connect_error").Inc()
		return nil, err
	}
	if err := c.Authenticate(ctx, c.LocalIP(), b.cfg.Controller.ID, b.cfg.Controller.Name); err != nil {
		b.metrics.AuthAttempts.WithLabelValues(authResult(err)).Inc()
		c.Close()
		return nil, err
	}
	b.metrics.AuthAttempts.WithLabelValues("granted").Inc()
	b.log.Info("session authenticated", "tv", b.cfg.TV.Host)

	b.session = c
	return c, nil
}

// dropSession closes the held session, if any.
func (b *Bridge) dropSession() {
	b.sessionMu.Lock()
	defer b.sessionMu.Unlock()
	if b.session != nil {
		b.session.Close()
		b.session = nil
	}
}

func authResult(err error) string {
	switch {
	case errors.Is(err, remote.ErrAccessDenied):
		return "denied"
	case errors.Is(err, remote.ErrAuthTimeout):
		return "timeout"
	case errors.Is(err, remote.ErrAuthAborted):
		return "aborted"
	default:
		return "error"
	}
}

// --- Handlers ---

func (b *Bridge) handleKey(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if !keys.Known(key) {
		// Advisory only: identifiers are opaque to the wire protocol and
		// newer firmwares understand keys this table has never heard of.
		b.log.Warn("key not in table, sending anyway", "key", key)
	}

	session, err := b.ensureSession(r.Context())
	if err != nil {
		b.writeError(w, r, http.StatusBadGateway, fmt.Sprintf("session: %v", err))
		return
	}

	if err := session.SendKey(r.Context(), key); err != nil {
		// A failed write invalidated the session; drop it so the next
		// request pairs afresh.
		b.metrics.KeySendErrors.Inc()
		b.dropSession()
		b.writeError(w, r, http.StatusBadGateway, fmt.Sprintf("send key: %v", err))
		return
	}

	b.metrics.KeysSent.Inc()
	b.metrics.HTTPRequests.WithLabelValues(r.Method, "204").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (b *Bridge) handleKeys(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		ID          string `json:"id"`
		Description string `json:"description"`
	}
	list := keys.List()
	out := make([]entry, 0, len(list))
	for _, id := range list {
		out = append(out, entry{ID: id, Description: keys.Describe(id)})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
	b.metrics.HTTPRequests.WithLabelValues(r.Method, "200").Inc()
}

func (b *Bridge) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func (b *Bridge) writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	b.metrics.HTTPRequests.WithLabelValues(r.Method, fmt.Sprint(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// limit wraps a handler with per-client-IP rate limiting.
func (b *Bridge) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		_, _, _, ok, err := b.store.Take(r.Context(), ip)
		if err != nil {
			b.writeError(w, r, http.StatusInternalServerError, "rate limiter failure")
			return
		}
		if !ok {
			b.metrics.RateLimited.Inc()
			b.writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}
