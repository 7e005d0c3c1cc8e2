//go:build !darwin

// Package coreaudio talks to the macOS audio HAL. On other platforms every
// operation reports audio.ErrNotSupported.
package coreaudio

import (
	"github.com/rs/zerolog"

	"github.com/petems/micstream/internal/audio"
)

// Supported reports whether the HAL is available on this platform.
const Supported = false

// HAL is a stand-in that implements audio.Registry and audio.Aggregator.
type HAL struct{}

// New returns a HAL stub.
func New(zerolog.Logger) *HAL {
	return &HAL{}
}

func (h *HAL) InputDevices() ([]audio.Device, error)  { return nil, audio.ErrNotSupported }
func (h *HAL) SystemDevices() ([]audio.Device, error) { return nil, audio.ErrNotSupported }

func (h *HAL) NameForUID(string) (string, error) { return "", audio.ErrNotSupported }

func (h *HAL) CreateAggregate(audio.AggregateDescription) (audio.ObjectID, error) {
	return 0, audio.ErrNotSupported
}

func (h *HAL) DestroyAggregate(audio.ObjectID) error { return audio.ErrNotSupported }
func (h *HAL) SetDefaultOutput(audio.ObjectID) error { return audio.ErrNotSupported }
