package audio

import "fmt"

// Status is an OS audio subsystem status code.
type Status int32

// Status codes reported by the HAL. Fakes reuse them so callers see the
// same values on every backend.
const (
	StatusBadDevice        Status = 0x21646576 // '!dev'
	StatusBadObject        Status = 0x216F626A // '!obj'
	StatusIllegalOperation Status = 0x6E6F7065 // 'nope'
)

func (s Status) Error() string {
	if cc, ok := s.fourCC(); ok {
		return fmt.Sprintf("audio hardware status %d ('%s')", int32(s), cc)
	}
	return fmt.Sprintf("audio hardware status %d", int32(s))
}

func (s Status) fourCC() (string, bool) {
	b := []byte{byte(uint32(s) >> 24), byte(uint32(s) >> 16), byte(uint32(s) >> 8), byte(uint32(s))}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return "", false
		}
	}
	return string(b), true
}
