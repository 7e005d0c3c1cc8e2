// Package capture implements the microphone capture session state machine
// and the pipeline that turns hardware chunks into a stream of messages.
package capture

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/petems/micstream/internal/audio"
)

// DefaultQueueSize bounds a session's output stream.
const DefaultQueueSize = 64

// Manager owns capture sessions and allows at most one active at a time.
type Manager struct {
	capturer  audio.Capturer
	queueSize int
	log       zerolog.Logger

	mu     sync.Mutex
	active *Session
	last   *Session
}

// NewManager returns a manager opening streams through c. A queueSize
// below one uses DefaultQueueSize.
func NewManager(c audio.Capturer, queueSize int, log zerolog.Logger) *Manager {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Manager{
		capturer:  c,
		queueSize: queueSize,
		log:       log.With().Str("component", "capture").Logger(),
	}
}

// Start validates params, attaches deviceID and dispatches the hardware
// start. It returns as soon as the device is attached; the session turns
// Running when the first chunk arrives. While another session is active it
// returns ErrSessionActive and touches nothing.
func (m *Manager) Start(ctx context.Context, deviceID string, params Params) (*Session, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.active != nil {
		id := m.active.ID()
		m.mu.Unlock()
		m.log.Warn().Str("active", id).Msg("Ignoring start request while a session is active")
		return nil, &Error{Kind: ErrSessionActive, Code: CodeBusy, Message: "a capture session is already active: " + id}
	}
	s := newSession(uuid.NewString(), deviceID, params, m.queueSize, m.log)
	s.onEnd = m.release
	m.active = s
	m.last = s
	m.mu.Unlock()

	s.log.Info().
		Str("device", deviceID).
		Ints("params", params.Values()).
		Int("requested_rate", params.RequestedSampleRate()).
		Int("requested_format", int(params.RequestedFormat())).
		Msg("Starting capture")

	if err := s.attach(m.capturer); err != nil {
		return nil, err
	}
	go s.run()

	return s, nil
}

// Active returns the current session, if any.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Last returns the most recently started session, active or not.
func (m *Manager) Last() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Stop ends the active session, if there is one.
func (m *Manager) Stop() error {
	s := m.Active()
	if s == nil {
		return nil
	}
	return s.Stop()
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == s {
		m.active = nil
	}
}
