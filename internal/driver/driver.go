// Package driver binds the daemon's HTTP surface: the WebSocket upgrade
// endpoint, sub-token issuance, the info route, and graceful shutdown of
// everything it accepted.
package driver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"

	"github.com/jg-phare/mcslauncherd/internal/auth"
	"github.com/jg-phare/mcslauncherd/internal/permission"
	"github.com/jg-phare/mcslauncherd/internal/wsconn"
)

// Info is the payload of GET /info.
type Info struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
}

// defaultSubtokenExpiry applies when POST /subtoken omits expires.
const defaultSubtokenExpiry = 30 * time.Second

// Config describes where and as whom the driver listens.
type Config struct {
	Host      string
	Port      int
	MainToken string
	Name      string
	Version   string

	// VerifyAdmin checks the bootstrap admin credential as an alternative
	// to the main token on /subtoken; nil disables that path.
	VerifyAdmin func(user, password string) bool
}

// Driver accepts connections and serves the daemon's HTTP/WS routes.
type Driver struct {
	cfg    Config
	issuer *auth.Issuer
	deps   wsconn.Deps

	wsWG sync.WaitGroup
}

// New creates a Driver.
func New(cfg Config, issuer *auth.Issuer, deps wsconn.Deps) *Driver {
	return &Driver{cfg: cfg, issuer: issuer, deps: deps}
}

// Run listens at the configured address and serves until ctx is canceled,
// then stops accepting, shuts down in-flight HTTP connections, and waits
// for every WebSocket task to observe the close.
func (d *Driver) Run(ctx context.Context) error {
	addr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("driver: listen %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:     d.Handler(ctx),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(listener) }()
	log.Info().Str("addr", addr).Msg("listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
		}
		d.wsWG.Wait()
		log.Info().Msg("driver stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler builds the daemon's route table. shutdownCtx is the process-wide
// stop signal every accepted WebSocket observes.
func (d *Driver) Handler(shutdownCtx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1", func(w http.ResponseWriter, r *http.Request) { d.handleUpgrade(shutdownCtx, w, r) })
	mux.HandleFunc("/subtoken", d.handleSubtoken)
	mux.HandleFunc("/info", d.handleInfo)
	mux.HandleFunc("/", d.handleFallback)
	return mux
}

// authenticate maps the upgrade request's token to a connection context.
func (d *Driver) authenticate(r *http.Request, connID uint64) (auth.ConnectionContext, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return auth.ConnectionContext{}, errors.New("missing token")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(d.cfg.MainToken)) == 1 {
		return auth.MainTokenContext(r.RemoteAddr, connID), nil
	}
	claims, err := d.issuer.Decode(token)
	if err != nil {
		return auth.ConnectionContext{}, err
	}
	return auth.ContextFromClaims(claims, r.RemoteAddr, connID)
}

func (d *Driver) handleUpgrade(shutdownCtx context.Context, w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		d.handleFallback(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	connID := d.deps.Registry.NextID()
	authCtx, err := d.authenticate(r, connID)
	if err != nil {
		log.Debug().Str("peer", r.RemoteAddr).Err(err).Msg("upgrade rejected")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Debug().Str("peer", r.RemoteAddr).Err(err).Msg("upgrade failed")
		return
	}

	d.wsWG.Add(1)
	defer d.wsWG.Done()
	wsconn.Serve(shutdownCtx, ws, authCtx, d.deps)
}

func (d *Driver) handleSubtoken(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		d.handleFallback(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	if !d.subtokenAuthorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	perms, err := permission.NewSet(strings.Fields(r.FormValue("permissions")))
	if err != nil {
		http.Error(w, "invalid permissions", http.StatusBadRequest)
		return
	}

	expiry := defaultSubtokenExpiry
	if v := r.FormValue("expires"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			http.Error(w, "invalid expires", http.StatusBadRequest)
			return
		}
		expiry = time.Duration(secs) * time.Second
	}

	signed, err := d.issuer.Encode(perms, time.Now().Add(expiry))
	if err != nil {
		http.Error(w, "token issuance failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, signed)
}

// subtokenAuthorized accepts either the main token or, when configured, the
// bootstrap admin user/password pair.
func (d *Driver) subtokenAuthorized(r *http.Request) bool {
	if subtle.ConstantTimeCompare([]byte(r.FormValue("token")), []byte(d.cfg.MainToken)) == 1 {
		return true
	}
	if user := r.FormValue("user"); user != "" && d.cfg.VerifyAdmin != nil {
		return d.cfg.VerifyAdmin(user, r.FormValue("password"))
	}
	return false
}

func (d *Driver) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		d.handleFallback(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Info{Name: d.cfg.Name, Version: d.cfg.Version, APIVersion: "v1"})
}

// handleFallback answers HEAD anywhere with the application header, and 404
// for everything else.
func (d *Driver) handleFallback(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("X-Application", d.cfg.Name)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.NotFound(w, r)
}
