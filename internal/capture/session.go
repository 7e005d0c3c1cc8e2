package capture

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/micstream/internal/audio"
)

// State is a capture session's lifecycle state.
type State int

const (
	Idle State = iota
	Configuring
	Running
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Configuring:
		return "configuring"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == Stopped || s == Failed
}

// NegotiatedFormat is what the hardware actually delivers.
type NegotiatedFormat struct {
	SampleRate float64 `json:"sampleRate"`
	BitDepth   int     `json:"bitDepth"`
}

// Session is a single microphone capture. It is created by Manager.Start
// and ends with Stop or a stream failure; a new session is needed to retry.
type Session struct {
	id       string
	deviceID string
	params   Params
	log      zerolog.Logger
	onEnd    func(*Session)

	// lifecycle serializes the deferred hardware start against Stop.
	lifecycle sync.Mutex
	stream    audio.Stream

	// mu guards everything the capture callback touches.
	mu        sync.Mutex
	state     State
	out       *queue
	format    NegotiatedFormat
	formatSet bool
	chunks    uint64
	done      chan struct{}
}

func newSession(id, deviceID string, params Params, queueSize int, log zerolog.Logger) *Session {
	return &Session{
		id:       id,
		deviceID: deviceID,
		params:   params,
		log:      log.With().Str("session", id).Logger(),
		state:    Idle,
		out:      newQueue(queueSize),
		done:     make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// DeviceID returns the identifier the session was bound to. Empty means
// the system default input.
func (s *Session) DeviceID() string { return s.deviceID }

// Params returns the parameters the session was started with.
func (s *Session) Params() Params { return s.params }

// Messages is the output stream. It is closed when the session ends.
func (s *Session) Messages() <-chan Message { return s.out.ch }

// Done is closed when the session reaches Stopped or Failed.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Format returns the negotiated format once the first chunk has arrived.
func (s *Session) Format() (NegotiatedFormat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format, s.formatSet
}

// Chunks returns how many chunks were emitted as data messages.
func (s *Session) Chunks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks
}

// Dropped returns how many messages were discarded because the consumer
// fell behind.
func (s *Session) Dropped() uint64 { return s.out.dropped.Load() }

// attach opens the hardware stream. On failure the session is Failed.
func (s *Session) attach(c audio.Capturer) error {
	s.mu.Lock()
	s.state = Configuring
	s.mu.Unlock()

	stream, err := c.Open(s.deviceID, tap{s})
	if err != nil {
		s.log.Error().Err(err).Str("device", s.deviceID).Msg("Failed to attach input device")
		s.finish(Failed, nil)
		return &Error{
			Kind:    ErrDeviceUnavailable,
			Code:    CodeHardware,
			Message: "error encountered starting audio capture",
			Err:     err,
		}
	}

	s.lifecycle.Lock()
	s.stream = stream
	s.lifecycle.Unlock()
	return nil
}

// run starts the hardware. It is dispatched asynchronously so Start
// returns before the device is delivering.
func (s *Session) run() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() != Configuring {
		return
	}
	if err := s.stream.Start(); err != nil {
		s.log.Error().Err(err).Msg("Failed to start capture stream")
		s.finish(Failed, hardwareError(ErrDeviceUnavailable, "error encountered starting audio capture", err))
		if stopErr := s.stream.Stop(); stopErr != nil {
			s.log.Debug().Err(stopErr).Msg("Stream release after failed start")
		}
		return
	}
	s.log.Debug().Msg("Capture stream started")
}

// Stop halts the hardware session. It is safe to call more than once.
func (s *Session) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.finish(Stopped, nil) {
		return nil
	}
	s.log.Info().Uint64("chunks", s.Chunks()).Uint64("dropped", s.Dropped()).Msg("Capture stopped")

	if s.stream == nil {
		return nil
	}
	return s.stream.Stop()
}

// fail ends the session after the stream reported it cannot continue.
func (s *Session) fail(err error) {
	if !s.finish(Failed, hardwareError(ErrHardwareRead, "audio stream failed", err)) {
		return
	}
	s.log.Error().Err(err).Msg("Capture stream failed")

	// The backend may be calling us from its own callback thread, which
	// must not wait for itself to stop.
	go func() {
		s.lifecycle.Lock()
		defer s.lifecycle.Unlock()
		if s.stream != nil {
			if err := s.stream.Stop(); err != nil {
				s.log.Debug().Err(err).Msg("Stream release after failure")
			}
		}
	}()
}

// finish moves the session into a terminal state, emitting last first.
// It reports false if the session had already ended.
func (s *Session) finish(state State, last error) bool {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.state = state
	if last != nil {
		s.out.push(Message{Err: last})
	}
	s.out.close()
	close(s.done)
	s.mu.Unlock()

	if s.onEnd != nil {
		s.onEnd(s)
	}
	return true
}

// tap adapts a Session to audio.ChunkHandler without exporting the
// callback methods on Session itself.
type tap struct{ s *Session }

func (t tap) HandleChunk(c audio.Chunk) { t.s.handleChunk(c) }
func (t tap) HandleError(err error)     { t.s.fail(err) }
