package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/denzyldick/mediasafe/internal/relay"
)

// Options configure the relay HTTP surface.
type Options struct {
	// AllowedOrigins restricts browser origins. Empty allows any origin.
	AllowedOrigins []string

	Relay relay.Options
}

// NewRouter returns the relay's HTTP handler: a liveness check and the
// room-scoped WebSocket endpoint.
func NewRouter(registry *relay.Registry, opts Options) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthCheckHandler)
	mux.HandleFunc("GET /ws/{room_id}", ServeWs(registry, opts))
	return mux
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

func newUpgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  64 * 1024, // 64 KB
		WriteBufferSize: 64 * 1024, // 64 KB
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Native clients do not send an Origin.
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return slices.ContainsFunc(allowed, func(a string) bool {
				return strings.EqualFold(strings.TrimSuffix(a, "/"), u.Scheme+"://"+u.Host)
			})
		},
	}
}

// ServeWs returns an http.HandlerFunc that upgrades /ws/{room_id} requests
// and serves the connection until it closes.
func ServeWs(registry *relay.Registry, opts Options) http.HandlerFunc {
	upgrader := newUpgrader(opts.AllowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("room_id")
		if roomID == "" {
			http.Error(w, "room id is required", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Debug("failed to upgrade connection", "err", err)
			return
		}

		client := relay.NewClient(registry, conn, roomID, opts.Relay)
		if err := client.Run(r.Context()); err != nil {
			slog.Debug("connection ended", "room", roomID, "err", err)
		}
	}
}
