// Package portaudio captures microphone audio through PortAudio callback
// streams and lists the devices PortAudio can see.
package portaudio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/petems/micstream/internal/audio"
)

// Resolver maps a caller-facing device identifier to a PortAudio device
// name. Backends with stable hardware UIDs install one.
type Resolver func(id string) (string, error)

// Backend implements audio.Registry and audio.Capturer.
type Backend struct {
	log     zerolog.Logger
	resolve Resolver
	useFloat bool
}

// New initializes PortAudio. Call Close to release it.
func New(log zerolog.Logger) (*Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &Backend{log: log.With().Str("component", "portaudio").Logger()}, nil
}

// UseFloat32 opens streams with 32-bit float samples. Hosts whose mixer
// format is float (CoreAudio) then deliver their native samples unconverted.
func (b *Backend) UseFloat32() {
	b.useFloat = true
}

// SetResolver installs r for Open. A nil resolver matches device names.
func (b *Backend) SetResolver(r Resolver) {
	b.resolve = r
}

func (b *Backend) InputDevices() ([]audio.Device, error) {
	devices, err := b.SystemDevices()
	if err != nil {
		return nil, err
	}
	result := make([]audio.Device, 0, len(devices))
	for _, d := range devices {
		if d.InputChannels > 0 {
			result = append(result, d)
		}
	}
	return result, nil
}

func (b *Backend) SystemDevices() ([]audio.Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultIn, _ := portaudio.DefaultInputDevice()
	defaultOut, _ := portaudio.DefaultOutputDevice()

	result := make([]audio.Device, 0, len(devices))
	for _, d := range devices {
		result = append(result, audio.Device{
			UID:            d.Name,
			Name:           d.Name,
			InputChannels:  d.MaxInputChannels,
			OutputChannels: d.MaxOutputChannels,
			Default:        d == defaultIn || d == defaultOut,
		})
	}
	return result, nil
}

// Open attaches h to a callback stream on the resolved device. The stream
// runs at the device's native rate and channel count, with int16 samples
// unless UseFloat32 was called. A stream that stops delivering callbacks
// is reported to h.HandleError as ErrStalled.
func (b *Backend) Open(deviceID string, h audio.ChunkHandler) (audio.Stream, error) {
	device, err := b.findDevice(deviceID)
	if err != nil {
		return nil, err
	}
	if device.MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %q has no input channels: %w", device.Name, audio.StatusBadDevice)
	}

	channels := device.MaxInputChannels
	format := audio.Format{
		SampleRate:     device.DefaultSampleRate,
		BitsPerChannel: 16,
		Channels:       channels,
	}

	dog := newWatchdog(stallTimeout, h.HandleError)
	var callback any = func(in []int16) {
		dog.kick()
		h.HandleChunk(&chunk{samples: in, format: format})
	}
	if b.useFloat {
		format.BitsPerChannel = 32
		callback = func(in []float32) {
			dog.kick()
			h.HandleChunk(&chunk{floats: in, format: format})
		}
	}

	pas, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      device.DefaultSampleRate,
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream on %q: %w", device.Name, err)
	}

	// The stream may settle on a rate other than the one requested.
	if info := pas.Info(); info != nil && info.SampleRate > 0 {
		format.SampleRate = info.SampleRate
	}

	b.log.Debug().
		Str("device", device.Name).
		Int("channels", channels).
		Int("bits", format.BitsPerChannel).
		Float64("sample_rate", format.SampleRate).
		Msg("Opened input stream")
	return &stream{pa: pas, dog: dog}, nil
}

func (b *Backend) findDevice(deviceID string) (*portaudio.DeviceInfo, error) {
	if deviceID == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	name := deviceID
	if b.resolve != nil {
		var err error
		if name, err = b.resolve(deviceID); err != nil {
			return nil, err
		}
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == name && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", deviceID)
}

// Close terminates PortAudio.
func (b *Backend) Close() error {
	return portaudio.Terminate()
}

// paStream is the part of *portaudio.Stream a stream drives.
type paStream interface {
	Start() error
	Stop() error
	Close() error
}

type stream struct {
	pa  paStream
	dog *watchdog

	mu      sync.Mutex
	started bool
	closed  bool
}

func (s *stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pa.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	s.started = true
	s.dog.start()
	return nil
}

// Stop stops a started stream and releases it. A stream that never
// started is only closed.
func (s *stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dog.halt()
	if s.closed {
		return nil
	}
	s.closed = true

	var stopErr error
	if s.started {
		stopErr = s.pa.Stop()
	}
	if err := s.pa.Close(); err != nil && stopErr == nil {
		return fmt.Errorf("failed to close audio stream: %w", err)
	}
	if stopErr != nil {
		return fmt.Errorf("failed to stop audio stream: %w", stopErr)
	}
	return nil
}
