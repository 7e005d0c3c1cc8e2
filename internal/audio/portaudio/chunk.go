package portaudio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/petems/micstream/internal/audio"
)

// chunk wraps one callback's interleaved samples, either int16 or float32
// depending on how the stream was opened. PortAudio reuses the slice after
// the callback returns, so CopyBuffers copies.
type chunk struct {
	samples []int16
	floats  []float32
	format  audio.Format
}

func (c *chunk) Format() (audio.Format, error) {
	return c.format, nil
}

func (c *chunk) len() int {
	if c.floats != nil {
		return len(c.floats)
	}
	return len(c.samples)
}

// CopyBuffers splits the interleaved samples into one little-endian byte
// buffer per channel, keeping the sample encoding.
func (c *chunk) CopyBuffers(list [][]byte) error {
	channels := c.format.Channels
	if len(list) < channels {
		return fmt.Errorf("buffer list holds %d channels, stream has %d", len(list), channels)
	}
	n := c.len()
	if n == 0 {
		for i := range list {
			list[i] = nil
		}
		return nil
	}
	if n%channels != 0 {
		return fmt.Errorf("%d samples do not divide into %d channels", n, channels)
	}

	frames := n / channels
	width := 2
	if c.floats != nil {
		width = 4
	}
	for ch := 0; ch < channels; ch++ {
		buf := make([]byte, frames*width)
		for f := 0; f < frames; f++ {
			i := f*channels + ch
			if c.floats != nil {
				binary.LittleEndian.PutUint32(buf[f*4:], math.Float32bits(c.floats[i]))
			} else {
				binary.LittleEndian.PutUint16(buf[f*2:], uint16(c.samples[i]))
			}
		}
		list[ch] = buf
	}
	return nil
}
