package server

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// newUpgrader accepts same-origin and loopback origins only.
func newUpgrader(log zerolog.Logger) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin.
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				log.Warn().Str("origin", origin).Msg("Rejected WebSocket connection with malformed origin")
				return false
			}
			if u.Host == r.Host {
				return true
			}
			switch u.Hostname() {
			case "localhost", "127.0.0.1", "::1":
				return true
			}
			if ip := net.ParseIP(u.Hostname()); ip != nil && ip.IsLoopback() {
				return true
			}
			log.Warn().Str("origin", origin).Msg("Rejected WebSocket connection")
			return false
		},
	}
}

// parseArgs reads the comma separated stream parameters from the "args"
// query value, e.g. "0,44100,16,2".
func parseArgs(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		values = append(values, n)
	}
	return values, nil
}
