package portaudio

import (
	"testing"

	"github.com/petems/micstream/internal/audio"
)

func TestChunkMono(t *testing.T) {
	c := &chunk{
		samples: []int16{1, -1, 256},
		format:  audio.Format{SampleRate: 48000, BitsPerChannel: 16, Channels: 1},
	}

	list := make([][]byte, 1)
	if err := c.CopyBuffers(list); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x01}
	if string(list[0]) != string(expected) {
		t.Fatalf("expected %v, got %v", expected, list[0])
	}

	c.samples[0] = 99
	if list[0][0] != 0x01 {
		t.Fatal("expected samples to be copied out of the callback buffer")
	}
}

func TestChunkStereoSplitsChannels(t *testing.T) {
	c := &chunk{
		samples: []int16{
			1, 2,
			3, 4,
		},
		format: audio.Format{SampleRate: 44100, BitsPerChannel: 16, Channels: 2},
	}

	list := make([][]byte, 2)
	if err := c.CopyBuffers(list); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	left := []byte{1, 0, 3, 0}
	right := []byte{2, 0, 4, 0}
	if string(list[0]) != string(left) {
		t.Fatalf("left channel mismatch: expected %v, got %v", left, list[0])
	}
	if string(list[1]) != string(right) {
		t.Fatalf("right channel mismatch: expected %v, got %v", right, list[1])
	}
}

func TestChunkEmpty(t *testing.T) {
	c := &chunk{format: audio.Format{Channels: 1}}
	list := [][]byte{{1}}
	if err := c.CopyBuffers(list); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list[0] != nil {
		t.Fatal("expected an empty delivery to leave no data pointer")
	}
}

func TestChunkShortList(t *testing.T) {
	c := &chunk{samples: []int16{1, 2}, format: audio.Format{Channels: 2}}
	if err := c.CopyBuffers(make([][]byte, 1)); err == nil {
		t.Fatal("expected an error for a list smaller than the channel count")
	}
}

func TestChunkRaggedFrames(t *testing.T) {
	c := &chunk{samples: []int16{1, 2, 3}, format: audio.Format{Channels: 2}}
	if err := c.CopyBuffers(make([][]byte, 2)); err == nil {
		t.Fatal("expected an error when samples do not fill whole frames")
	}
}

func TestChunkFloat32KeepsEncoding(t *testing.T) {
	c := &chunk{
		floats: []float32{0.5, -1, 0.25, 1},
		format: audio.Format{SampleRate: 48000, BitsPerChannel: 32, Channels: 2},
	}

	list := make([][]byte, 2)
	if err := c.CopyBuffers(list); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	left := []byte{0x00, 0x00, 0x00, 0x3f, 0x00, 0x00, 0x80, 0x3e}  // 0.5, 0.25
	right := []byte{0x00, 0x00, 0x80, 0xbf, 0x00, 0x00, 0x80, 0x3f} // -1, 1
	if string(list[0]) != string(left) {
		t.Errorf("expected left %v, got %v", left, list[0])
	}
	if string(list[1]) != string(right) {
		t.Errorf("expected right %v, got %v", right, list[1])
	}
}

func TestChunkFloat32Empty(t *testing.T) {
	c := &chunk{
		floats: []float32{},
		format: audio.Format{SampleRate: 48000, BitsPerChannel: 32, Channels: 1},
	}

	list := [][]byte{{1}}
	if err := c.CopyBuffers(list); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list[0] != nil {
		t.Errorf("expected nil buffer, got %v", list[0])
	}
}
