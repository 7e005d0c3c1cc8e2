package capture

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrArgument             = errors.New("bad arguments")
	ErrUnsupportedParameter = errors.New("unsupported parameter")
	ErrDeviceUnavailable    = errors.New("device unavailable")
	ErrHardwareRead         = errors.New("hardware read failed")
	ErrHardwareFormat       = errors.New("hardware format unavailable")
	ErrSessionActive        = errors.New("a capture session is already active")
)

// Codes reported to hosts alongside an Error.
const (
	CodeUnsupported = "-3"
	CodeBadArgs     = "bad args"
	CodeHardware    = "-3"
	CodeBusy        = "busy"
)

// Error is a structured capture failure.
type Error struct {
	Kind    error
	Code    string
	Param   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func argumentError(msg string) *Error {
	return &Error{Kind: ErrArgument, Code: CodeBadArgs, Message: msg}
}

func unsupported(param, msg string) *Error {
	return &Error{Kind: ErrUnsupportedParameter, Code: CodeUnsupported, Param: param, Message: msg}
}

func hardwareError(kind error, msg string, err error) *Error {
	return &Error{Kind: kind, Code: CodeHardware, Message: msg, Err: err}
}
