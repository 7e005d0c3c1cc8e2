// Package app is the command surface hosts drive: device selection,
// aggregate outputs, format queries and the capture stream.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/micstream/internal/aggregate"
	"github.com/petems/micstream/internal/audio"
	"github.com/petems/micstream/internal/capture"
	"github.com/petems/micstream/internal/config"
	"github.com/petems/micstream/internal/permissions"
)

// Method names accepted by Handle.
const (
	MethodSetUID                   = "setUid"
	MethodGetDevices               = "getDevices"
	MethodRequestMicrophoneAccess  = "requestMicrophoneAccess"
	MethodCreateMultiOutputDevice  = "createMultiOutputDevice"
	MethodDestroyMultiOutputDevice = "destroyMultiOutputDevice"
	MethodGetSampleRate            = "getSampleRate"
	MethodGetBitDepth              = "getBitDepth"
	MethodGetBufferSize            = "getBufferSize"
)

// Error codes that are not capture codes.
const (
	CodeNotImplemented = "not implemented"
	CodeError          = "error"
)

// MethodError is the error shape reported to hosts.
type MethodError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

func (e *MethodError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// ToMethodError maps any error onto the host error shape.
func ToMethodError(err error) *MethodError {
	if err == nil {
		return nil
	}
	var me *MethodError
	if errors.As(err, &me) {
		return me
	}

	out := &MethodError{Code: CodeError, Message: err.Error()}
	var ce *capture.Error
	switch {
	case errors.As(err, &ce):
		out.Code = ce.Code
		out.Details = ce.Param
	case errors.Is(err, aggregate.ErrInvalidArgument),
		errors.Is(err, aggregate.ErrDuplicate),
		errors.Is(err, aggregate.ErrUnknownAggregate):
		out.Code = capture.CodeBadArgs
	}

	var status audio.Status
	if errors.As(err, &status) {
		if out.Code == CodeError {
			out.Code = capture.CodeHardware
		}
		out.Details = fmt.Sprintf("%d", int32(status))
	}
	return out
}

type Config struct {
	Registry    audio.Registry
	Capture     *capture.Manager
	Aggregates  *aggregate.Manager
	Permissions *permissions.Prompter // Optional - defaults to the system prompt
	Config      *config.Config
	Logger      zerolog.Logger
}

type App struct {
	registry   audio.Registry
	capture    *capture.Manager
	aggregates *aggregate.Manager
	perms      permissions.Prompter
	cfg        *config.Config
	log        zerolog.Logger

	mu       sync.Mutex
	inputUID string
}

func New(cfg Config) *App {
	perms := permissions.System
	if cfg.Permissions != nil {
		perms = *cfg.Permissions
	}
	c := cfg.Config
	if c == nil {
		c = config.Default()
	}
	return &App{
		registry:   cfg.Registry,
		capture:    cfg.Capture,
		aggregates: cfg.Aggregates,
		perms:      perms,
		cfg:        c,
		log:        cfg.Logger,
		inputUID:   c.Audio.DeviceID,
	}
}

// SetInputDevice stores the device used by the next Listen. It does not
// affect a stream that is already running. Empty means system default.
func (a *App) SetInputDevice(uid string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inputUID = uid
	a.log.Info().Str("uid", uid).Msg("Input device selected")
}

// InputDevice returns the stored input device hint.
func (a *App) InputDevice() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inputUID
}

func (a *App) Devices() []audio.Descriptor {
	return audio.ListDevices(a.log, a.registry)
}

func (a *App) RequestMicrophoneAccess() bool {
	granted := a.perms.RequestAccess()
	a.log.Info().Bool("granted", granted).Msg("Microphone access requested")
	return granted
}

// CreateAggregateOutput builds an aggregate of master and second and makes
// it the system default output. The aggregate stays tracked even when the
// default output cannot be changed.
func (a *App) CreateAggregateOutput(master, second, publicUID string) (aggregate.Handle, error) {
	h, err := a.aggregates.Create(master, second, publicUID)
	if err != nil {
		return aggregate.Handle{}, err
	}
	if err := a.aggregates.SetDefaultOutput(h); err != nil {
		return h, err
	}
	return h, nil
}

// DestroyAggregateOutput destroys every aggregate this process created.
func (a *App) DestroyAggregateOutput() error {
	return a.aggregates.DestroyAll()
}

// SampleRate is the negotiated rate of the latest session, unset until
// its first buffer arrives.
func (a *App) SampleRate() (float64, bool) {
	f, ok := a.format()
	return f.SampleRate, ok
}

// BitDepth is the negotiated bit depth of the latest session.
func (a *App) BitDepth() (int, bool) {
	f, ok := a.format()
	return f.BitDepth, ok
}

func (a *App) format() (capture.NegotiatedFormat, bool) {
	s := a.capture.Last()
	if s == nil {
		return capture.NegotiatedFormat{}, false
	}
	return s.Format()
}

// CaptureState is the state of the latest session, Idle if there is none.
func (a *App) CaptureState() capture.State {
	s := a.capture.Last()
	if s == nil {
		return capture.Idle
	}
	return s.State()
}

func (a *App) BufferSize() int {
	return a.cfg.Audio.BufferSize
}

// Listen opens a capture stream with the positional parameter list
// [source, sampleRate, channelConfig, sampleFormat] on the stored device.
func (a *App) Listen(ctx context.Context, args []int) (*capture.Session, error) {
	params, err := capture.ParseParams(args)
	if err != nil {
		return nil, err
	}
	return a.capture.Start(ctx, a.InputDevice(), params)
}

// Cancel stops the active stream, if any.
func (a *App) Cancel() error {
	return a.capture.Stop()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.Cancel()
	return errors.Join(err, a.DestroyAggregateOutput())
}

type setUIDArgs struct {
	UID *string `json:"uid"`
}

type createArgs struct {
	Master    *string `json:"masterUID"`
	Second    *string `json:"secondUID"`
	PublicUID *string `json:"multiOutUID"`
}

// Handle dispatches a method call. Results are JSON-encodable; a nil
// result with no error means the value is not known yet.
func (a *App) Handle(ctx context.Context, method string, args json.RawMessage) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch method {
	case MethodSetUID:
		var in setUIDArgs
		if err := decodeArgs(args, &in); err != nil || in.UID == nil {
			return nil, &MethodError{Code: capture.CodeBadArgs, Message: "uid is required"}
		}
		a.SetInputDevice(*in.UID)
		return 0, nil
	case MethodGetDevices:
		return a.Devices(), nil
	case MethodRequestMicrophoneAccess:
		return a.RequestMicrophoneAccess(), nil
	case MethodCreateMultiOutputDevice:
		var in createArgs
		if err := decodeArgs(args, &in); err != nil || in.Master == nil || in.Second == nil || in.PublicUID == nil {
			return nil, &MethodError{Code: capture.CodeBadArgs, Message: "masterUID, secondUID and multiOutUID are required"}
		}
		if _, err := a.CreateAggregateOutput(*in.Master, *in.Second, *in.PublicUID); err != nil {
			return nil, ToMethodError(err)
		}
		return 0, nil
	case MethodDestroyMultiOutputDevice:
		if err := a.DestroyAggregateOutput(); err != nil {
			return nil, ToMethodError(err)
		}
		return 0, nil
	case MethodGetSampleRate:
		if rate, ok := a.SampleRate(); ok {
			return rate, nil
		}
		return nil, nil
	case MethodGetBitDepth:
		if depth, ok := a.BitDepth(); ok {
			return depth, nil
		}
		return nil, nil
	case MethodGetBufferSize:
		return a.BufferSize(), nil
	default:
		return nil, &MethodError{Code: CodeNotImplemented, Message: method}
	}
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing arguments")
	}
	return json.Unmarshal(raw, v)
}
