package audio_test

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/micstream/internal/audio"
	"github.com/petems/micstream/internal/audio/fake"
)

func TestListDevicesExcludesSilentOutputs(t *testing.T) {
	hw := fake.New()
	hw.AddInput(audio.Device{UID: "mic", Name: "Built-in Microphone", InputChannels: 1})
	hw.AddOutput(audio.Device{UID: "spk", Name: "Built-in Speakers", OutputChannels: 2})
	hw.AddOutput(audio.Device{UID: "hdmi", Name: "HDMI (no streams)", OutputChannels: 0})

	got := audio.ListDevices(zerolog.Nop(), hw)

	assert.Equal(t, []audio.Descriptor{
		{ID: "mic", Name: "Built-in Microphone", Direction: audio.In},
		{ID: "spk", Name: "Built-in Speakers", Direction: audio.Out},
	}, got)
	for _, d := range got {
		if d.Direction == audio.Out {
			assert.NotEqual(t, "hdmi", d.ID)
			assert.NotEqual(t, "mic", d.ID, "input-only device listed as output")
		}
	}
}

func TestListDevicesBothDirections(t *testing.T) {
	hw := fake.New()
	hw.AddInput(audio.Device{UID: "usb", Name: "USB Headset", InputChannels: 1, OutputChannels: 2})

	got := audio.ListDevices(zerolog.Nop(), hw)

	require.Len(t, got, 2)
	assert.Equal(t, audio.In, got[0].Direction)
	assert.Equal(t, audio.Out, got[1].Direction)
	assert.Equal(t, "usb", got[1].ID)
}

func TestListDevicesPartialFailure(t *testing.T) {
	tests := []struct {
		name      string
		inputErr  error
		systemErr error
		want      []audio.Direction
	}{
		{name: "input enumeration fails", inputErr: errors.New("boom"), want: []audio.Direction{audio.Out}},
		{name: "system enumeration fails", systemErr: errors.New("boom"), want: []audio.Direction{audio.In}},
		{name: "both fail", inputErr: errors.New("a"), systemErr: errors.New("b"), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hw := fake.New()
			hw.AddInput(audio.Device{UID: "mic", Name: "Mic", InputChannels: 1})
			hw.AddOutput(audio.Device{UID: "spk", Name: "Speakers", OutputChannels: 2})
			hw.InputErr = tt.inputErr
			hw.SystemErr = tt.systemErr

			var dirs []audio.Direction
			for _, d := range audio.ListDevices(zerolog.Nop(), hw) {
				dirs = append(dirs, d.Direction)
			}
			assert.Equal(t, tt.want, dirs)
		})
	}
}

func TestFindOutput(t *testing.T) {
	hw := fake.New()
	hw.AddInput(audio.Device{UID: "mic", Name: "Mic", InputChannels: 1})
	hw.AddOutput(audio.Device{UID: "spk", Name: "Speakers", OutputChannels: 2})

	d, ok, err := audio.FindOutput(hw, "spk")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Speakers", d.Name)

	_, ok, err = audio.FindOutput(hw, "mic")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatusError(t *testing.T) {
	assert.Equal(t, "audio hardware status 560227702 ('!dev')", audio.StatusBadDevice.Error())
	assert.Equal(t, "audio hardware status -50", audio.Status(-50).Error())
}
