package hardware

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/micstream/internal/audio"
)

func TestOpenFake(t *testing.T) {
	host, err := Open(BackendFake, zerolog.Nop())
	require.NoError(t, err)
	defer host.Close()

	devices := audio.ListDevices(zerolog.Nop(), host.Registry)
	require.NotEmpty(t, devices)
	assert.Equal(t, audio.In, devices[0].Direction)
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open("alsa-direct", zerolog.Nop())
	assert.ErrorContains(t, err, "unknown audio backend")
}
