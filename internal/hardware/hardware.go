// Package hardware picks the audio backends for the running platform.
package hardware

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/petems/micstream/internal/audio"
	"github.com/petems/micstream/internal/audio/coreaudio"
	"github.com/petems/micstream/internal/audio/fake"
	"github.com/petems/micstream/internal/audio/portaudio"
)

// Backend names accepted by Open.
const (
	BackendPortAudio = "portaudio"
	BackendFake      = "fake"
)

// Host bundles the three hardware roles the service needs.
type Host struct {
	Registry   audio.Registry
	Capturer   audio.Capturer
	Aggregator audio.Aggregator

	close func() error
}

// Close releases backend resources.
func (h *Host) Close() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}

// Open returns the named backend. On macOS the PortAudio backend lists
// devices and builds aggregates through the HAL, so identifiers are stable
// hardware UIDs.
func Open(name string, log zerolog.Logger) (*Host, error) {
	switch name {
	case "", BackendPortAudio:
		pa, err := portaudio.New(log)
		if err != nil {
			return nil, err
		}
		hal := coreaudio.New(log)
		host := &Host{
			Registry:   pa,
			Capturer:   pa,
			Aggregator: hal,
			close:      pa.Close,
		}
		if coreaudio.Supported {
			host.Registry = hal
			pa.SetResolver(hal.NameForUID)
			// The HAL mixes in float32; capture in it so nothing is converted.
			pa.UseFloat32()
		}
		return host, nil
	case BackendFake:
		hw := fake.NewDemo()
		return &Host{Registry: hw, Capturer: hw, Aggregator: hw}, nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", name)
	}
}
