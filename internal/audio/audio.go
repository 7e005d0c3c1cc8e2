// Package audio holds the hardware model shared by the capture pipeline,
// the device directory and the aggregate device manager.
package audio

import "errors"

// ErrNotSupported is returned by backends for operations the platform lacks.
var ErrNotSupported = errors.New("operation not supported on this platform")

// Direction tells whether a device is a source or a sink.
type Direction string

const (
	In  Direction = "IN"
	Out Direction = "OUT"
)

// Device is a raw entry from a backend's device registry.
type Device struct {
	UID            string
	Name           string
	InputChannels  int
	OutputChannels int
	Default        bool
}

// Descriptor is what the device directory hands to callers.
type Descriptor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Direction Direction `json:"direction"`
}

// Registry enumerates devices known to the OS audio subsystem.
type Registry interface {
	// InputDevices returns every connected capture device.
	InputDevices() ([]Device, error)
	// SystemDevices returns every device registered with the system,
	// including ones without output channels.
	SystemDevices() ([]Device, error)
}

// Format describes the samples carried by a hardware chunk.
type Format struct {
	SampleRate     float64
	BitsPerChannel int
	Channels       int
}

// Chunk is one hardware-delivered unit of audio. It is only valid for the
// duration of the callback it was handed to.
type Chunk interface {
	// Format returns the stream description attached to the chunk.
	Format() (Format, error)
	// CopyBuffers fills list with one byte slice per channel. A nil entry
	// means the hardware attached no data for that channel.
	CopyBuffers(list [][]byte) error
}

// ChunkHandler receives callbacks from a running hardware stream. Calls are
// serialized per stream and arrive on a backend-owned thread.
type ChunkHandler interface {
	HandleChunk(Chunk)
	// HandleError reports that the stream can no longer deliver audio,
	// for example because its device disappeared.
	HandleError(error)
}

// Stream is an attached but not necessarily running hardware capture.
type Stream interface {
	Start() error
	// Stop halts delivery and releases the stream. No callback begins
	// after Stop returns.
	Stop() error
}

// Capturer attaches input devices to capture streams.
type Capturer interface {
	// Open resolves deviceID (empty means the system default input),
	// locks it and attaches h as the output tap.
	Open(deviceID string, h ChunkHandler) (Stream, error)
}

// ObjectID is an OS-level audio object handle.
type ObjectID uint32

// AggregateDescription is the request for a virtual combined device.
type AggregateDescription struct {
	Name       string
	UID        string
	Master     string
	SubDevices []string
	Stacked    bool
}

// Aggregator creates and destroys OS-level aggregate devices.
type Aggregator interface {
	CreateAggregate(desc AggregateDescription) (ObjectID, error)
	DestroyAggregate(id ObjectID) error
	SetDefaultOutput(id ObjectID) error
}
