// Package permissions checks and requests microphone access.
package permissions

import "fmt"

// Status mirrors AVAuthorizationStatus.
type Status int

const (
	NotDetermined Status = 0
	Restricted    Status = 1
	Denied        Status = 2
	Authorized    Status = 3
)

func (s Status) String() string {
	switch s {
	case NotDetermined:
		return "not determined"
	case Restricted:
		return "restricted"
	case Denied:
		return "denied"
	case Authorized:
		return "authorized"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Prompter is the platform permission API.
type Prompter struct {
	Check   func() Status
	Request func()
}

// System uses the platform permission API.
var System = Prompter{Check: CheckMicrophone, Request: RequestMicrophone}

// RequestAccess reports whether capture is allowed right now. When the
// user has not been asked yet it fires the prompt and returns false; the
// grant applies to later calls.
func (p Prompter) RequestAccess() bool {
	switch p.Check() {
	case Authorized:
		return true
	case NotDetermined:
		p.Request()
		return false
	default:
		return false
	}
}
