package capture

import "github.com/petems/micstream/internal/audio"

// handleChunk runs on the backend's capture thread once per hardware chunk.
// Each chunk becomes at most one message, in delivery order. Nothing here
// blocks on the consumer.
func (s *Session) handleChunk(c audio.Chunk) {
	if !s.confirmRunning() {
		return
	}

	f, err := c.Format()
	if err != nil {
		s.log.Warn().Err(err).Msg("Dropping chunk without format description")
		s.emit(Message{Err: hardwareError(ErrHardwareFormat, "could not read chunk format description", err)})
		return
	}

	channels := f.Channels
	if channels < 1 {
		channels = 1
	}
	list := make([][]byte, channels)
	if err := c.CopyBuffers(list); err != nil {
		s.log.Error().Err(err).Msg("Failed to read chunk samples")
		s.emit(Message{Err: hardwareError(ErrHardwareRead, "could not read audio buffer list", err)})
		return
	}

	// No data pointer is an empty delivery, not an error.
	if list[0] == nil {
		return
	}

	data := make([]byte, len(list[0]))
	copy(data, list[0])

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return
	}
	if !s.formatSet {
		s.format = NegotiatedFormat{SampleRate: f.SampleRate, BitDepth: f.BitsPerChannel}
		s.formatSet = true
		s.log.Info().
			Float64("sample_rate", f.SampleRate).
			Int("bit_depth", f.BitsPerChannel).
			Int("channels", f.Channels).
			Int("requested_rate", s.params.RequestedSampleRate()).
			Msg("Negotiated capture format")
	}
	s.chunks++
	s.out.push(Message{Data: data})
}

// confirmRunning promotes a configuring session on its first callback and
// reports whether the chunk should be processed at all.
func (s *Session) confirmRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Configuring {
		s.state = Running
		s.log.Info().Str("device", s.deviceID).Msg("Capture running")
	}
	return s.state == Running
}

func (s *Session) emit(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return
	}
	s.out.push(m)
}
