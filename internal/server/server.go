// Package server exposes the command surface over HTTP and streams
// captured audio over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/petems/micstream/internal/app"
	"github.com/petems/micstream/internal/capture"
)

const (
	writeWait       = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server serves /method calls and /stream captures.
type Server struct {
	app      *app.App
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func New(a *app.App, log zerolog.Logger) *Server {
	log = log.With().Str("component", "server").Logger()
	return &Server{
		app:      a,
		log:      log,
		upgrader: newUpgrader(log),
	}
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/method", s.handleMethod)
	mux.HandleFunc("/stream", s.handleStream)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}()

	s.log.Info().Str("addr", addr).Msg("Starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type methodRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments"`
}

type methodResponse struct {
	Result any              `json:"result"`
	Error  *app.MethodError `json:"error,omitempty"`
}

func (s *Server) handleMethod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, methodResponse{
			Error: &app.MethodError{Code: capture.CodeBadArgs, Message: "use POST"},
		})
		return
	}

	var req methodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method == "" {
		writeJSON(w, http.StatusBadRequest, methodResponse{
			Error: &app.MethodError{Code: capture.CodeBadArgs, Message: "body must be {\"method\": ..., \"arguments\": ...}"},
		})
		return
	}

	result, err := s.app.Handle(r.Context(), req.Method, req.Arguments)
	if err != nil {
		s.log.Debug().Err(err).Str("method", req.Method).Msg("Method failed")
		writeJSON(w, http.StatusOK, methodResponse{Error: app.ToMethodError(err)})
		return
	}
	writeJSON(w, http.StatusOK, methodResponse{Result: result})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleStream runs one capture for the lifetime of the connection. Each
// chunk is a binary frame; errors are JSON text frames. The capture stops
// when the client goes away, and the connection closes when the capture
// ends.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	args, err := parseArgs(r.URL.Query().Get("args"))
	if err != nil {
		s.closeWithError(conn, &app.MethodError{Code: capture.CodeBadArgs, Message: "args must be comma separated integers"})
		return
	}

	session, err := s.app.Listen(r.Context(), args)
	if err != nil {
		s.closeWithError(conn, app.ToMethodError(err))
		return
	}
	defer session.Stop()
	log := s.log.With().Str("session", session.ID()).Logger()
	log.Info().Str("remote", r.RemoteAddr).Msg("Stream opened")

	// The reader only notices the client closing; inbound frames are ignored.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			log.Info().Msg("Client closed stream")
			return
		case m, ok := <-session.Messages():
			if !ok {
				s.writeClose(conn, websocket.CloseNormalClosure, session.State().String())
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if m.Err != nil {
				err = conn.WriteJSON(app.ToMethodError(m.Err))
			} else {
				err = conn.WriteMessage(websocket.BinaryMessage, m.Data)
			}
			if err != nil {
				log.Debug().Err(err).Msg("Stream write failed")
				return
			}
		}
	}
}

func (s *Server) closeWithError(conn *websocket.Conn, me *app.MethodError) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(me); err != nil {
		s.log.Debug().Err(err).Msg("Failed to send stream error")
		return
	}
	s.writeClose(conn, websocket.CloseNormalClosure, me.Code)
}

func (s *Server) writeClose(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		s.log.Debug().Err(err).Msg("Failed to send close frame")
	}
}
