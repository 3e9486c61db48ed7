package relay

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Server upgrades HTTP requests to relay websocket connections and runs a
// session per connection. The credential travels in the "token" query
// parameter (or a Bearer Authorization header); verification happens before
// any room membership can be granted.
type Server struct {
	hub       *Hub
	verifier  CredentialVerifier
	access    AccessChecker
	publisher Publisher
	origin    string
	upgrader  websocket.Upgrader
	log       zerolog.Logger
}

// NewServer wires a relay server. origin identifies this server process on
// the cross-instance event channel; the bridge uses it to skip envelopes it
// already delivered locally.
func NewServer(hub *Hub, verifier CredentialVerifier, access AccessChecker, publisher Publisher, origin string, log zerolog.Logger) *Server {
	return &Server{
		hub:       hub,
		verifier:  verifier,
		access:    access,
		publisher: publisher,
		origin:    origin,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from arbitrary app origins; board
			// access is enforced per join, not per HTTP origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.With().Str("component", "relay-server").Logger(),
	}
}

// ServeHTTP implements http.Handler for the websocket endpoint.
func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
			token = auth[7:]
		}
	}
	if token == "" {
		http.Error(w, "missing credential", http.StatusUnauthorized)
		return
	}

	// Verify before upgrading: a rejected credential never gets a socket,
	// let alone room membership.
	identity, err := srv.verifier.VerifyCredential(r.Context(), token)
	if err != nil {
		srv.log.Info().Err(err).Msg("credential rejected")
		http.Error(w, "invalid credential", http.StatusUnauthorized)
		return
	}

	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := newSession(conn, *identity, srv.hub, srv.access, srv.publisher, srv.origin, srv.log)
	srv.log.Info().Str("conn_id", sess.id).Str("user_id", identity.UserID).Msg("connection established")

	// run blocks until the connection ends; the HTTP handler goroutine is
	// the read pump.
	sess.run(r.Context())
}
