package capture

import "fmt"

// Source selects where audio is captured from.
type Source int

const SourceDefault Source = 0

// ChannelConfig values use the Android AudioFormat constants hosts send.
type ChannelConfig int

const (
	ChannelMono   ChannelConfig = 16
	ChannelStereo ChannelConfig = 12
)

// SampleFormat is the requested encoding. It documents intent only.
type SampleFormat int

const (
	FormatPCM16 SampleFormat = 2
	FormatPCM8  SampleFormat = 3
)

// DefaultSampleRate is assumed when a host omits the rate.
const DefaultSampleRate = 44100

// Params is the set of optional capture parameters. A field is only
// meaningful when every field before it is present.
type Params struct {
	Source     *Source
	SampleRate *int
	Channel    *ChannelConfig
	Format     *SampleFormat
}

// ParseParams builds Params from a positional list of up to four values:
// source, sample rate, channel config, sample format.
func ParseParams(values []int) (Params, error) {
	var p Params
	if len(values) > 4 {
		return p, argumentError(fmt.Sprintf("at most 4 arguments accepted, got %d", len(values)))
	}
	if len(values) > 0 {
		s := Source(values[0])
		p.Source = &s
	}
	if len(values) > 1 {
		r := values[1]
		p.SampleRate = &r
	}
	if len(values) > 2 {
		c := ChannelConfig(values[2])
		p.Channel = &c
	}
	if len(values) > 3 {
		f := SampleFormat(values[3])
		p.Format = &f
	}
	return p, nil
}

// Values is the inverse of ParseParams.
func (p Params) Values() []int {
	var v []int
	if p.Source == nil {
		return v
	}
	v = append(v, int(*p.Source))
	if p.SampleRate == nil {
		return v
	}
	v = append(v, *p.SampleRate)
	if p.Channel == nil {
		return v
	}
	v = append(v, int(*p.Channel))
	if p.Format == nil {
		return v
	}
	return append(v, int(*p.Format))
}

// Validate checks the parameters in positional order. It never touches
// hardware.
func (p Params) Validate() error {
	if p.Source == nil {
		if p.SampleRate != nil || p.Channel != nil || p.Format != nil {
			return argumentError("audio source must be provided before other parameters")
		}
		return argumentError("at least one argument (audio source) must be provided")
	}
	if (p.Channel != nil || p.Format != nil) && p.SampleRate == nil {
		return argumentError("sample rate must be provided before channel config")
	}
	if p.Format != nil && p.Channel == nil {
		return argumentError("channel config must be provided before sample format")
	}

	if *p.Source != SourceDefault {
		return unsupported("source", fmt.Sprintf("currently only default audio source (id: %d) is supported, got %d", SourceDefault, *p.Source))
	}
	// The sample rate is advisory and never reaches the hardware.
	if p.Channel != nil && *p.Channel != ChannelMono {
		return unsupported("channelConfig", fmt.Sprintf("currently only channel config CHANNEL_IN_MONO (%d) is supported, got %d", ChannelMono, *p.Channel))
	}
	if p.Format != nil && *p.Format != FormatPCM16 && *p.Format != FormatPCM8 {
		return unsupported("sampleFormat", fmt.Sprintf("unknown sample format %d", *p.Format))
	}
	return nil
}

// RequestedSampleRate returns the advisory rate, or DefaultSampleRate.
func (p Params) RequestedSampleRate() int {
	if p.SampleRate == nil || *p.SampleRate <= 0 {
		return DefaultSampleRate
	}
	return *p.SampleRate
}

// RequestedFormat returns the documented sample format, or FormatPCM16.
func (p Params) RequestedFormat() SampleFormat {
	if p.Format == nil {
		return FormatPCM16
	}
	return *p.Format
}
