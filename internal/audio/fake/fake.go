// Package fake provides scripted audio hardware for tests and for running
// the service on machines without a usable sound card.
package fake

import (
	"errors"
	"sync"
	"time"

	"github.com/petems/micstream/internal/audio"
)

// ErrNoDevice is returned by Open when the identifier matches no input.
var ErrNoDevice = errors.New("fake: no such input device")

// Hardware implements audio.Registry, audio.Capturer and audio.Aggregator.
type Hardware struct {
	mu      sync.Mutex
	inputs  []audio.Device
	system  []audio.Device
	streams []*Stream

	aggregates    map[audio.ObjectID]audio.AggregateDescription
	nextID        audio.ObjectID
	defaultOutput audio.ObjectID

	// InputErr and SystemErr make the matching enumeration fail.
	InputErr  error
	SystemErr error
	// OpenErr makes every Open fail, as if the device could not be locked.
	OpenErr error
	// StartErr makes every Stream.Start fail.
	StartErr error

	tick   time.Duration
	format audio.Format
	frames int
}

// Option configures a Hardware.
type Option func(*Hardware)

// WithTicker makes started streams deliver silent chunks of the given
// format every interval until stopped.
func WithTicker(interval time.Duration, format audio.Format, frames int) Option {
	return func(h *Hardware) {
		h.tick = interval
		h.format = format
		h.frames = frames
	}
}

// New returns hardware with no devices.
func New(opts ...Option) *Hardware {
	h := &Hardware{
		aggregates: make(map[audio.ObjectID]audio.AggregateDescription),
		nextID:     100,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewDemo returns hardware with one microphone, two speakers and a ticker,
// which is what the "fake" backend serves.
func NewDemo() *Hardware {
	h := New(WithTicker(20*time.Millisecond, audio.Format{SampleRate: 48000, BitsPerChannel: 16, Channels: 1}, 960))
	h.AddInput(audio.Device{UID: "fake-mic", Name: "Fake Microphone", InputChannels: 1, Default: true})
	h.AddOutput(audio.Device{UID: "fake-speakers", Name: "Fake Speakers", OutputChannels: 2, Default: true})
	h.AddOutput(audio.Device{UID: "fake-headphones", Name: "Fake Headphones", OutputChannels: 2})
	return h
}

// AddInput registers a capture device. It also appears in the system list.
func (h *Hardware) AddInput(d audio.Device) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inputs = append(h.inputs, d)
	h.system = append(h.system, d)
}

// AddOutput registers a device that only shows up in the system list.
func (h *Hardware) AddOutput(d audio.Device) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.system = append(h.system, d)
}

func (h *Hardware) InputDevices() ([]audio.Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.InputErr != nil {
		return nil, h.InputErr
	}
	return append([]audio.Device(nil), h.inputs...), nil
}

func (h *Hardware) SystemDevices() ([]audio.Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.SystemErr != nil {
		return nil, h.SystemErr
	}
	devices := append([]audio.Device(nil), h.system...)
	for _, desc := range h.aggregates {
		devices = append(devices, audio.Device{UID: desc.UID, Name: desc.Name, OutputChannels: 2})
	}
	return devices, nil
}

// Open attaches handler to a new stream on the resolved input.
func (h *Hardware) Open(deviceID string, handler audio.ChunkHandler) (audio.Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.OpenErr != nil {
		return nil, h.OpenErr
	}

	var device *audio.Device
	for i := range h.inputs {
		d := &h.inputs[i]
		if (deviceID == "" && d.Default) || (deviceID != "" && d.UID == deviceID) {
			device = d
			break
		}
	}
	if device == nil && deviceID == "" && len(h.inputs) > 0 {
		device = &h.inputs[0]
	}
	if device == nil {
		return nil, ErrNoDevice
	}

	s := &Stream{
		hw:       h,
		handler:  handler,
		DeviceID: device.UID,
		started:  make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	h.streams = append(h.streams, s)
	return s, nil
}

// Streams returns every stream opened so far.
func (h *Hardware) Streams() []*Stream {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Stream(nil), h.streams...)
}

// ActiveStreams counts streams that are started and not stopped.
func (h *Hardware) ActiveStreams() int {
	n := 0
	for _, s := range h.Streams() {
		if s.Running() {
			n++
		}
	}
	return n
}

// Stream is a fake hardware capture stream.
type Stream struct {
	hw       *Hardware
	handler  audio.ChunkHandler
	DeviceID string

	mu        sync.Mutex
	started   chan struct{}
	stopped   chan struct{}
	isStarted bool
	isStopped bool
}

func (s *Stream) Start() error {
	s.hw.mu.Lock()
	startErr := s.hw.StartErr
	tick, format, frames := s.hw.tick, s.hw.format, s.hw.frames
	s.hw.mu.Unlock()

	if startErr != nil {
		return startErr
	}

	s.mu.Lock()
	if s.isStarted {
		s.mu.Unlock()
		return nil
	}
	s.isStarted = true
	close(s.started)
	s.mu.Unlock()

	if tick > 0 {
		go s.generate(tick, format, frames)
	}
	return nil
}

func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isStopped {
		return audio.StatusIllegalOperation
	}
	s.isStopped = true
	close(s.stopped)
	return nil
}

// Started is closed once Start succeeds.
func (s *Stream) Started() <-chan struct{} { return s.started }

// Running reports whether the stream is started and not stopped.
func (s *Stream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isStarted && !s.isStopped
}

// Stopped reports whether Stop was called.
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isStopped
}

// Deliver hands c to the attached handler, regardless of stream state, the
// way a misbehaving driver might.
func (s *Stream) Deliver(c audio.Chunk) {
	s.handler.HandleChunk(c)
}

// Fail reports a stream-level failure such as device removal.
func (s *Stream) Fail(err error) {
	s.handler.HandleError(err)
}

func (s *Stream) generate(tick time.Duration, format audio.Format, frames int) {
	t := time.NewTicker(tick)
	defer t.Stop()

	bytesPerFrame := format.BitsPerChannel / 8
	for {
		select {
		case <-s.stopped:
			return
		case <-t.C:
			buffers := make([][]byte, format.Channels)
			for i := range buffers {
				buffers[i] = make([]byte, frames*bytesPerFrame)
			}
			s.Deliver(&Chunk{Fmt: format, Buffers: buffers})
		}
	}
}

// Chunk is a scripted hardware chunk.
type Chunk struct {
	Fmt       audio.Format
	FormatErr error
	ReadErr   error
	Buffers   [][]byte
}

func (c *Chunk) Format() (audio.Format, error) {
	if c.FormatErr != nil {
		return audio.Format{}, c.FormatErr
	}
	return c.Fmt, nil
}

func (c *Chunk) CopyBuffers(list [][]byte) error {
	if c.ReadErr != nil {
		return c.ReadErr
	}
	for i := range list {
		if i < len(c.Buffers) {
			list[i] = c.Buffers[i]
		} else {
			list[i] = nil
		}
	}
	return nil
}

// Mono returns a single-channel chunk carrying data.
func Mono(rate float64, bits int, data []byte) *Chunk {
	return &Chunk{
		Fmt:     audio.Format{SampleRate: rate, BitsPerChannel: bits, Channels: 1},
		Buffers: [][]byte{data},
	}
}

// CreateAggregate fails with StatusBadDevice unless every sub device is an
// output-capable entry of the system list.
func (h *Hardware) CreateAggregate(desc audio.AggregateDescription) (audio.ObjectID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, uid := range desc.SubDevices {
		if !h.hasOutputLocked(uid) {
			return 0, audio.StatusBadDevice
		}
	}
	for _, existing := range h.aggregates {
		if existing.UID == desc.UID {
			return 0, audio.StatusIllegalOperation
		}
	}

	id := h.nextID
	h.nextID++
	h.aggregates[id] = desc
	return id, nil
}

func (h *Hardware) DestroyAggregate(id audio.ObjectID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.aggregates[id]; !ok {
		return audio.StatusBadObject
	}
	delete(h.aggregates, id)
	if h.defaultOutput == id {
		h.defaultOutput = 0
	}
	return nil
}

func (h *Hardware) SetDefaultOutput(id audio.ObjectID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.aggregates[id]; !ok {
		return audio.StatusBadObject
	}
	h.defaultOutput = id
	return nil
}

// Aggregate returns the description registered under id.
func (h *Hardware) Aggregate(id audio.ObjectID) (audio.AggregateDescription, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	desc, ok := h.aggregates[id]
	return desc, ok
}

// AggregateCount returns the number of live aggregate devices.
func (h *Hardware) AggregateCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.aggregates)
}

// DefaultOutput returns the current system default output set through
// SetDefaultOutput, or 0.
func (h *Hardware) DefaultOutput() audio.ObjectID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.defaultOutput
}

func (h *Hardware) hasOutputLocked(uid string) bool {
	for _, d := range h.system {
		if d.UID == uid && d.OutputChannels > 0 {
			return true
		}
	}
	return false
}
